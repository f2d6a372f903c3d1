package audio

import (
	"testing"
)

func TestNewSampleBuffer(t *testing.T) {
	buffer := NewSampleBuffer(2048, 2)

	if buffer == nil {
		t.Fatal("NewSampleBuffer returned nil")
	}

	if buffer.Cap() != 2048 {
		t.Errorf("Expected capacity 2048, got %d", buffer.Cap())
	}

	if buffer.Channels() != 2 {
		t.Errorf("Expected 2 channels, got %d", buffer.Channels())
	}

	if buffer.Len() != 0 {
		t.Errorf("Expected initial size 0, got %d", buffer.Len())
	}

	if buffer.Full() {
		t.Error("Expected new buffer not to be full")
	}
}

func TestAppendEmpty(t *testing.T) {
	buffer := NewSampleBuffer(8, 2)

	if n := buffer.Append(nil); n != 0 {
		t.Errorf("Expected 0 frames for nil input, got %d", n)
	}
	if n := buffer.Append([]float32{}); n != 0 {
		t.Errorf("Expected 0 frames for empty input, got %d", n)
	}
	if buffer.Len() != 0 {
		t.Errorf("Expected empty buffer, got %d samples", buffer.Len())
	}
}

func TestStereoDownmix(t *testing.T) {
	buffer := NewSampleBuffer(4, 2)

	// Frames: (1, 0) (0.5, 0.5) (-1, 1) (0.25, 0.75)
	n := buffer.Append([]float32{1, 0, 0.5, 0.5, -1, 1, 0.25, 0.75})
	if n != 4 {
		t.Fatalf("Expected 4 mono frames, got %d", n)
	}

	window := make([]float64, 4)
	if !buffer.Window(window) {
		t.Fatal("Expected a full window")
	}

	expected := []float64{0.5, 0.5, 0, 0.5}
	for i := range expected {
		if window[i] != expected[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, expected[i], window[i])
		}
	}
}

func TestPartialFrameDropped(t *testing.T) {
	buffer := NewSampleBuffer(8, 2)

	n := buffer.Append([]float32{1, 1, 0.5})
	if n != 1 {
		t.Errorf("Expected 1 complete frame, got %d", n)
	}

	stats := buffer.Stats()
	if stats.PartialFrames != 1 {
		t.Errorf("Expected 1 partial frame recorded, got %d", stats.PartialFrames)
	}
	if buffer.Len() != 1 {
		t.Errorf("Expected 1 sample in buffer, got %d", buffer.Len())
	}
}

func TestWindowNotAvailableUntilFull(t *testing.T) {
	buffer := NewSampleBuffer(4, 1)
	window := []float64{9, 9, 9, 9}

	buffer.Append([]float32{1, 2, 3})
	if buffer.Window(window) {
		t.Error("Expected no window with 3 of 4 samples")
	}
	for i, v := range window {
		if v != 9 {
			t.Errorf("Expected dst untouched at %d, got %f", i, v)
		}
	}

	buffer.Append([]float32{4})
	if !buffer.Window(window) {
		t.Fatal("Expected a window once full")
	}
	for i, v := range []float64{1, 2, 3, 4} {
		if window[i] != v {
			t.Errorf("Sample %d: expected %f, got %f", i, v, window[i])
		}
	}
}

func TestFIFOEviction(t *testing.T) {
	buffer := NewSampleBuffer(4, 1)

	// Append across several calls of irregular size.
	buffer.Append([]float32{1, 2, 3})
	buffer.Append([]float32{4, 5})
	buffer.Append([]float32{6, 7, 8, 9, 10})

	if buffer.Len() != 4 {
		t.Errorf("Length must never exceed capacity, got %d", buffer.Len())
	}

	window := make([]float64, 4)
	if !buffer.Window(window) {
		t.Fatal("Expected a full window")
	}

	for i, v := range []float64{7, 8, 9, 10} {
		if window[i] != v {
			t.Errorf("Sample %d: expected %f, got %f", i, v, window[i])
		}
	}

	stats := buffer.Stats()
	if stats.TotalFrames != 10 {
		t.Errorf("Expected 10 total frames, got %d", stats.TotalFrames)
	}
}

func TestWindowWrongLength(t *testing.T) {
	buffer := NewSampleBuffer(4, 1)
	buffer.Append([]float32{1, 2, 3, 4})

	if buffer.Window(make([]float64, 3)) {
		t.Error("Expected Window to reject a destination of the wrong length")
	}
}

func TestLatest(t *testing.T) {
	buffer := NewSampleBuffer(5, 1)
	buffer.AppendMono([]float64{1, 2, 3, 4, 5, 6, 7})

	latest := buffer.Latest(3)
	if len(latest) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(latest))
	}
	for i, v := range []float64{5, 6, 7} {
		if latest[i] != v {
			t.Errorf("Sample %d: expected %f, got %f", i, v, latest[i])
		}
	}

	if got := buffer.Latest(100); len(got) != 5 {
		t.Errorf("Expected Latest to cap at fill level 5, got %d", len(got))
	}

	if got := NewSampleBuffer(5, 1).Latest(3); got != nil {
		t.Errorf("Expected nil from an empty buffer, got %v", got)
	}
}

func TestReset(t *testing.T) {
	buffer := NewSampleBuffer(4, 1)
	buffer.Append([]float32{1, 2, 3, 4, 5})
	buffer.Reset()

	if buffer.Len() != 0 || buffer.Full() {
		t.Errorf("Expected empty buffer after reset, got %d samples", buffer.Len())
	}

	buffer.Append([]float32{1, 1, 1, 1})
	window := make([]float64, 4)
	if !buffer.Window(window) {
		t.Fatal("Expected window after refill")
	}
	for i, v := range window {
		if v != 1 {
			t.Errorf("Sample %d: expected 1, got %f", i, v)
		}
	}
}
