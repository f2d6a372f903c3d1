package audio

import (
	"encoding/binary"
	"math"
	"os"
	"testing"
)

const (
	testOGG = "testdata/mono.ogg"
	// First samples of testOGG as decoded by the reference decoder
	testOGGReference = "testdata/mono.f32"
)

func readReference(t *testing.T) []float32 {
	t.Helper()
	data, err := os.ReadFile(testOGGReference)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", testOGGReference, err)
	}
	ref := make([]float32, len(data)/4)
	for i := range ref {
		ref[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return ref
}

func TestOGGReaderDecodes(t *testing.T) {
	r, err := OpenOGG(testOGG)
	if err != nil {
		t.Fatalf("OpenOGG failed: %v", err)
	}
	defer r.Close()

	if r.SampleRate() != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", r.SampleRate())
	}
	if r.Channels() != 1 {
		t.Errorf("Expected 1 channel, got %d", r.Channels())
	}

	got := decodeAll(t, r, 1000)
	if len(got) != 44100 {
		t.Fatalf("Expected 44100 samples, got %d", len(got))
	}
	assertSampleRange(t, got)

	ref := readReference(t)
	for i, want := range ref {
		if diff := math.Abs(float64(got[i] - want)); diff > 0.00002 {
			t.Fatalf("Sample %d: expected %f, got %f", i, want, got[i])
		}
	}
}

func TestOGGReaderRewind(t *testing.T) {
	r, err := OpenOGG(testOGG)
	if err != nil {
		t.Fatalf("OpenOGG failed: %v", err)
	}
	defer r.Close()

	head := make([]float32, 2048)
	if _, err := r.Read(head); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	// Run to the end before rewinding
	decodeAll(t, r, 4096)

	if err := r.Rewind(); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}

	again := make([]float32, len(head))
	n, err := r.Read(again)
	if err != nil {
		t.Fatalf("Read after rewind failed: %v", err)
	}
	if n != len(head) {
		t.Fatalf("Expected %d samples after rewind, got %d", len(head), n)
	}
	for i := range head {
		if diff := math.Abs(float64(again[i] - head[i])); diff > 0.00002 {
			t.Fatalf("Sample %d after rewind: expected %f, got %f", i, head[i], again[i])
		}
	}
}
