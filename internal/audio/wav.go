package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupportedWAV is returned for WAV files that are not integer PCM
// at 16, 24 or 32 bits.
var ErrUnsupportedWAV = errors.New("unsupported WAV encoding")

const wavFormatPCM = 1

// WAVReader decodes an integer PCM WAV stream into interleaved float32 samples
// in [-1, 1).
type WAVReader struct {
	dec    *wav.Decoder
	closer io.Closer

	sampleRate int
	channels   int
	bitDepth   int
	scale      float32

	buf *goaudio.IntBuffer
}

// OpenWAV opens the WAV file at path.
func OpenWAV(path string) (*WAVReader, error) {
	f, err := openFile("WAV", path)
	if err != nil {
		return nil, err
	}

	r, err := NewWAVReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read WAV file %s: %w", path, err)
	}
	r.closer = f

	return r, nil
}

// NewWAVReader wraps rs. The caller keeps ownership of rs.
func NewWAVReader(rs io.ReadSeeker) (*WAVReader, error) {
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupportedWAV, dec.WavAudioFormat)
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: bit depth %d", ErrUnsupportedWAV, bitDepth)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedWAV, channels)
	}

	return &WAVReader{
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		channels:   channels,
		bitDepth:   bitDepth,
		scale:      1 / float32(int64(1)<<(bitDepth-1)),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: int(dec.SampleRate)},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// SampleRate returns the stream sample rate in Hz
func (r *WAVReader) SampleRate() int { return r.sampleRate }

// Channels returns the interleaved channel count
func (r *WAVReader) Channels() int { return r.channels }

// BitDepth returns the source bit depth
func (r *WAVReader) BitDepth() int { return r.bitDepth }

// Read fills dst with interleaved float32 samples and returns how many were
// written. It returns io.EOF once the PCM data is exhausted.
func (r *WAVReader) Read(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	if cap(r.buf.Data) < len(dst) {
		r.buf.Data = make([]int, len(dst))
	}
	r.buf.Data = r.buf.Data[:len(dst)]

	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil {
		return 0, fmt.Errorf("decoding WAV PCM data: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		dst[i] = float32(r.buf.Data[i]) * r.scale
	}
	return n, nil
}

// Rewind seeks back to the first PCM sample.
func (r *WAVReader) Rewind() error {
	// The decoder re-parses the header and forwards to the PCM chunk itself.
	if err := r.dec.Rewind(); err != nil {
		return fmt.Errorf("rewinding WAV: %w", err)
	}
	return nil
}

// Close releases the underlying file when the reader was opened by OpenWAV.
func (r *WAVReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
