package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit little-endian stereo
const (
	mp3Channels      = 2
	mp3BytesPerFrame = 4
)

// MP3Reader decodes an MP3 stream.
type MP3Reader struct {
	dec    *mp3.Decoder
	closer io.Closer
	raw    []byte
}

// OpenMP3 opens the MP3 file at path.
func OpenMP3(path string) (*MP3Reader, error) {
	f, err := openFile("MP3", path)
	if err != nil {
		return nil, err
	}

	r, err := NewMP3Reader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read MP3 file %s: %w", path, err)
	}
	r.closer = f

	return r, nil
}

// NewMP3Reader wraps rs. The caller keeps ownership of rs.
func NewMP3Reader(rs io.ReadSeeker) (*MP3Reader, error) {
	dec, err := mp3.NewDecoder(rs)
	if err != nil {
		return nil, fmt.Errorf("decoding MP3: %w", err)
	}
	return &MP3Reader{dec: dec}, nil
}

// SampleRate returns the stream sample rate in Hz
func (r *MP3Reader) SampleRate() int { return r.dec.SampleRate() }

// Channels returns the interleaved channel count
func (r *MP3Reader) Channels() int { return mp3Channels }

// Read implements Decoder.
func (r *MP3Reader) Read(dst []float32) (int, error) {
	frames := len(dst) / mp3Channels
	if frames == 0 {
		return 0, nil
	}

	size := frames * mp3BytesPerFrame
	if cap(r.raw) < size {
		r.raw = make([]byte, size)
	}
	raw := r.raw[:size]

	n, err := io.ReadFull(r.dec, raw)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("decoding MP3 data: %w", err)
	}

	n = n / mp3BytesPerFrame * mp3Channels
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}
	return n, nil
}

// Rewind implements Decoder.
func (r *MP3Reader) Rewind() error {
	if _, err := r.dec.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding MP3: %w", err)
	}
	return nil
}

// Close releases the file opened by OpenMP3.
func (r *MP3Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
