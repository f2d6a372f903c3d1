package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned by Open for file types it cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported audio file format")

// Decoder yields interleaved float32 samples in [-1, 1] from an audio file.
type Decoder interface {
	SampleRate() int
	Channels() int
	// Read fills dst with whole frames and returns the number of samples
	// written. It returns io.EOF once the stream is exhausted.
	Read(dst []float32) (int, error)
	// Rewind seeks back to the first sample.
	Rewind() error
	Close() error
}

// Open picks a decoder by file extension.
func Open(path string) (Decoder, error) {
	var (
		dec Decoder
		err error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		dec, err = OpenWAV(path)
	case ".mp3":
		dec, err = OpenMP3(path)
	case ".flac":
		dec, err = OpenFLAC(path)
	case ".ogg", ".oga":
		dec, err = OpenOGG(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	return dec, nil
}

// openFile is shared by the Open* helpers.
func openFile(kind, path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, path, err)
	}
	return f, nil
}

// wholeFrames truncates n samples down to a multiple of channels.
func wholeFrames(n, channels int) int {
	return n - n%channels
}
