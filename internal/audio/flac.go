package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// FLACReader decodes a FLAC stream frame by frame.
type FLACReader struct {
	stream *flac.Stream
	closer io.Closer

	sampleRate int
	channels   int
	scale      float32

	// Decoded samples of the current frame not yet handed out
	pending []float32
}

// OpenFLAC opens the FLAC file at path.
func OpenFLAC(path string) (*FLACReader, error) {
	f, err := openFile("FLAC", path)
	if err != nil {
		return nil, err
	}

	r, err := NewFLACReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read FLAC file %s: %w", path, err)
	}
	r.closer = f

	return r, nil
}

// NewFLACReader wraps rs. The caller keeps ownership of rs.
func NewFLACReader(rs io.ReadSeeker) (*FLACReader, error) {
	stream, err := flac.NewSeek(rs)
	if err != nil {
		return nil, fmt.Errorf("decoding FLAC: %w", err)
	}

	info := stream.Info
	if info.NChannels < 1 || info.BitsPerSample < 1 {
		return nil, fmt.Errorf("%w: FLAC with %d channels at %d bits",
			ErrUnsupportedFormat, info.NChannels, info.BitsPerSample)
	}

	return &FLACReader{
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
		scale:      1 / float32(int64(1)<<(info.BitsPerSample-1)),
	}, nil
}

// SampleRate returns the stream sample rate in Hz
func (r *FLACReader) SampleRate() int { return r.sampleRate }

// Channels returns the interleaved channel count
func (r *FLACReader) Channels() int { return r.channels }

// Read implements Decoder.
func (r *FLACReader) Read(dst []float32) (int, error) {
	want := wholeFrames(len(dst), r.channels)
	written := 0

	for written < want {
		if len(r.pending) == 0 {
			if err := r.decodeFrame(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return written, err
			}
			continue
		}

		n := copy(dst[written:want], r.pending)
		r.pending = r.pending[n:]
		written += n
	}

	if written == 0 && want > 0 {
		return 0, io.EOF
	}
	return written, nil
}

// decodeFrame interleaves the next FLAC frame into pending.
func (r *FLACReader) decodeFrame() error {
	frame, err := r.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("decoding FLAC frame: %w", err)
	}

	n := len(frame.Subframes[0].Samples)
	pending := r.pending[:0]
	if cap(pending) < n*r.channels {
		pending = make([]float32, 0, n*r.channels)
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < r.channels; ch++ {
			pending = append(pending, float32(frame.Subframes[ch].Samples[i])*r.scale)
		}
	}
	r.pending = pending

	return nil
}

// Rewind implements Decoder.
func (r *FLACReader) Rewind() error {
	if _, err := r.stream.Seek(0); err != nil {
		return fmt.Errorf("rewinding FLAC: %w", err)
	}
	r.pending = r.pending[:0]
	return nil
}

// Close releases the file opened by OpenFLAC.
func (r *FLACReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
