package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/NikitaSH999/AudioViz/internal/capture"
)

// PortAudioSource streams the default input device into a capture sink.
type PortAudioSource struct {
	format          capture.Format
	framesPerBuffer int
	logger          *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
}

// NewPortAudioSource creates a source for the default input device. The device
// is opened by Start.
func NewPortAudioSource(format capture.Format, framesPerBuffer int, logger *slog.Logger) (*PortAudioSource, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if framesPerBuffer < 1 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}

	return &PortAudioSource{
		format:          format,
		framesPerBuffer: framesPerBuffer,
		logger:          logger,
	}, nil
}

// Name implements capture.Source.
func (s *PortAudioSource) Name() string { return "portaudio(default input)" }

// Format implements capture.Source.
func (s *PortAudioSource) Format() capture.Format { return s.format }

// Start initializes PortAudio and opens the default input stream. The stream
// callback runs on PortAudio's audio thread and hands the interleaved buffer
// straight to sink.
func (s *PortAudioSource) Start(ctx context.Context, sink capture.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return errors.New("portaudio stream already running")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(
		s.format.Channels, 0,
		float64(s.format.SampleRate),
		s.framesPerBuffer,
		func(in []float32) {
			sink.Write(in)
		},
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open default input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	s.stream = stream

	info := stream.Info()
	s.logger.Info("PortAudio input stream started",
		slog.Int("channels", s.format.Channels),
		slog.Int("sample_rate", s.format.SampleRate),
		slog.Int("frames_per_buffer", s.framesPerBuffer),
		slog.Duration("input_latency", info.InputLatency),
	)

	return nil
}

// Stop stops and closes the stream, then releases PortAudio. It waits for an
// in-flight callback to return.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return nil
	}

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping input stream: %w", err))
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing input stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminating PortAudio: %w", err))
	}
	s.stream = nil

	return errors.Join(errs...)
}
