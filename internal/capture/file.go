package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/NikitaSH999/AudioViz/internal/audio"
)

// FileSource plays an audio file at real-time pace, optionally looping.
type FileSource struct {
	path            string
	loop            bool
	framesPerBuffer int
	logger          *slog.Logger

	reader audio.Decoder
	format Format
	pacer  pacer
	buffer []float32

	closeOnce sync.Once
	closeErr  error
}

// NewFileSource opens the audio file at path, choosing the decoder by
// extension. The file's own sample rate and channel count become the source
// format.
func NewFileSource(path string, framesPerBuffer int, loop bool, logger *slog.Logger) (*FileSource, error) {
	if framesPerBuffer < 1 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}

	reader, err := audio.Open(path)
	if err != nil {
		return nil, err
	}

	format := Format{SampleRate: reader.SampleRate(), Channels: reader.Channels()}
	return &FileSource{
		path:            path,
		loop:            loop,
		framesPerBuffer: framesPerBuffer,
		logger:          logger,
		reader:          reader,
		format:          format,
		buffer:          make([]float32, framesPerBuffer*format.Channels),
	}, nil
}

// Name implements Source.
func (s *FileSource) Name() string {
	return "file(" + s.path + ")"
}

// Format implements Source.
func (s *FileSource) Format() Format { return s.format }

// Start implements Source.
func (s *FileSource) Start(ctx context.Context, sink Sink) error {
	interval := time.Duration(s.framesPerBuffer) * time.Second / time.Duration(s.format.SampleRate)
	return s.pacer.start(ctx, interval, func() bool {
		n, err := s.fill()
		if n > 0 {
			sink.Write(s.buffer[:n])
		}
		if err != nil {
			sink.Fail(err)
			return false
		}
		return true
	})
}

// fill reads up to one buffer, rewinding at the end of the file when looping.
func (s *FileSource) fill() (int, error) {
	n, err := s.reader.Read(s.buffer)
	if !errors.Is(err, io.EOF) {
		return n, err
	}

	if !s.loop {
		return 0, fmt.Errorf("%w: end of %s", ErrSourceExhausted, s.path)
	}

	s.logger.Debug("Looping capture file", slog.String("path", s.path))
	if err := s.reader.Rewind(); err != nil {
		return 0, err
	}

	n, err = s.reader.Read(s.buffer)
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: %s has no samples", ErrSourceExhausted, s.path)
	}
	return n, err
}

// Stop implements Source. The file is closed; a stopped FileSource cannot be
// restarted.
func (s *FileSource) Stop() error {
	s.pacer.stop()
	s.closeOnce.Do(func() {
		s.closeErr = s.reader.Close()
	})
	return s.closeErr
}
