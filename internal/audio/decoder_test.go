package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenDispatchesByExtension(t *testing.T) {
	path := writeTestWAV(t, 8000, 1, []int{100, 200, 300, 400})

	// Upper-case extension on a copy of the same file
	upper := filepath.Join(t.TempDir(), "TEST.WAV")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read WAV file: %v", err)
	}
	if err := os.WriteFile(upper, data, 0644); err != nil {
		t.Fatalf("Failed to write WAV file: %v", err)
	}

	for _, p := range []string{path, upper} {
		dec, err := Open(p)
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", p, err)
		}
		if _, ok := dec.(*WAVReader); !ok {
			t.Errorf("Expected *WAVReader for %s, got %T", p, dec)
		}
		if dec.SampleRate() != 8000 || dec.Channels() != 1 {
			t.Errorf("Expected 8000 Hz mono, got %d Hz %d channels", dec.SampleRate(), dec.Channels())
		}
		dec.Close()
	}
}

func TestOpenDecodesEachFormat(t *testing.T) {
	flacPath := writeTestFLAC(t, 8000, 256, stereoTestSignal(8000, 300))

	tests := []struct {
		path       string
		sampleRate int
		channels   int
		wantType   string
	}{
		{flacPath, 8000, 2, "*audio.FLACReader"},
		{testMP3, 22050, 2, "*audio.MP3Reader"},
		{testOGG, 44100, 1, "*audio.OGGReader"},
	}

	for _, tt := range tests {
		t.Run(filepath.Ext(tt.path), func(t *testing.T) {
			dec, err := Open(tt.path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer dec.Close()

			if got := fmt.Sprintf("%T", dec); got != tt.wantType {
				t.Errorf("Expected %s, got %s", tt.wantType, got)
			}
			if dec.SampleRate() != tt.sampleRate || dec.Channels() != tt.channels {
				t.Errorf("Expected %d Hz %d channels, got %d Hz %d channels",
					tt.sampleRate, tt.channels, dec.SampleRate(), dec.Channels())
			}

			buf := make([]float32, 512)
			n, err := dec.Read(buf)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if n == 0 || n%tt.channels != 0 {
				t.Errorf("Expected whole frames, got %d samples", n)
			}
		})
	}
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "track.aiff"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestOpenCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	junk := []byte("definitely not audio data")

	for _, name := range []string{"bad.mp3", "bad.flac", "bad.ogg", "empty.mp3"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			content := junk
			if name == "empty.mp3" {
				content = nil
			}
			if err := os.WriteFile(path, content, 0644); err != nil {
				t.Fatalf("Failed to write file: %v", err)
			}

			dec, err := Open(path)
			if err == nil {
				dec.Close()
				t.Fatalf("Expected error opening %s", name)
			}
			if dec != nil {
				t.Errorf("Expected nil decoder on error, got %T", dec)
			}
		})
	}
}

func TestOpenMissingFile(t *testing.T) {
	for _, name := range []string{"missing.wav", "missing.mp3", "missing.flac", "missing.ogg"} {
		if _, err := Open(filepath.Join(t.TempDir(), name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Expected os.ErrNotExist for %s, got %v", name, err)
		}
	}
}

func TestWholeFrames(t *testing.T) {
	tests := []struct {
		n, channels, want int
	}{
		{0, 2, 0},
		{7, 2, 6},
		{8, 2, 8},
		{5, 1, 5},
		{11, 6, 6},
	}

	for _, tt := range tests {
		if got := wholeFrames(tt.n, tt.channels); got != tt.want {
			t.Errorf("wholeFrames(%d, %d): expected %d, got %d", tt.n, tt.channels, tt.want, got)
		}
	}
}

// decodeAll reads dec to the end in chunks of chunk samples.
func decodeAll(t *testing.T, dec Decoder, chunk int) []float32 {
	t.Helper()

	var out []float32
	buf := make([]float32, chunk)
	for {
		n, err := dec.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Read failed after %d samples: %v", len(out), err)
		}
		if n == 0 {
			t.Fatalf("Read returned no samples and no error after %d samples", len(out))
		}
		if n%dec.Channels() != 0 {
			t.Fatalf("Read returned a partial frame of %d samples", n)
		}
	}
}

func assertSampleRange(t *testing.T, samples []float32) {
	t.Helper()
	for i, v := range samples {
		if v < -1 || v > 1 {
			t.Fatalf("Sample %d out of range: %f", i, v)
		}
	}
}
