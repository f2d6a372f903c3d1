package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// OGGReader decodes an Ogg Vorbis stream.
type OGGReader struct {
	reader *oggvorbis.Reader
	closer io.Closer
}

// OpenOGG opens the Ogg Vorbis file at path.
func OpenOGG(path string) (*OGGReader, error) {
	f, err := openFile("OGG", path)
	if err != nil {
		return nil, err
	}

	r, err := NewOGGReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read OGG file %s: %w", path, err)
	}
	r.closer = f

	return r, nil
}

// NewOGGReader wraps rs. The caller keeps ownership of rs.
func NewOGGReader(rs io.ReadSeeker) (*OGGReader, error) {
	reader, err := oggvorbis.NewReader(rs)
	if err != nil {
		return nil, fmt.Errorf("decoding OGG: %w", err)
	}
	return &OGGReader{reader: reader}, nil
}

// SampleRate returns the stream sample rate in Hz
func (r *OGGReader) SampleRate() int { return r.reader.SampleRate() }

// Channels returns the interleaved channel count
func (r *OGGReader) Channels() int { return r.reader.Channels() }

// Read implements Decoder. Vorbis already decodes to float32.
func (r *OGGReader) Read(dst []float32) (int, error) {
	want := wholeFrames(len(dst), r.reader.Channels())
	written := 0

	for written < want {
		n, err := r.reader.Read(dst[written:want])
		written += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return written, fmt.Errorf("decoding OGG data: %w", err)
		}
		if n == 0 {
			break
		}
	}

	if written == 0 && want > 0 {
		return 0, io.EOF
	}
	return written, nil
}

// Rewind implements Decoder.
func (r *OGGReader) Rewind() error {
	if err := r.reader.SetPosition(0); err != nil {
		return fmt.Errorf("rewinding OGG: %w", err)
	}
	return nil
}

// Close releases the file opened by OpenOGG.
func (r *OGGReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
