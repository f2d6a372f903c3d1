package capture

import (
	"context"
	"fmt"
	"math"
	"time"
)

// ToneSource synthesizes a sine wave at real-time pace. The same signal is
// written to every channel.
type ToneSource struct {
	format          Format
	frequency       float64
	amplitude       float64
	framesPerBuffer int

	pacer  pacer
	phase  float64
	buffer []float32
}

// NewToneSource creates a sine generator
func NewToneSource(format Format, frequency, amplitude float64, framesPerBuffer int) (*ToneSource, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frequency <= 0 || frequency >= float64(format.SampleRate)/2 {
		return nil, fmt.Errorf("tone frequency must be in (0, %d) Hz, got %f", format.SampleRate/2, frequency)
	}
	if amplitude < 0 || amplitude > 1 {
		return nil, fmt.Errorf("tone amplitude must be in [0, 1], got %f", amplitude)
	}
	if framesPerBuffer < 1 {
		return nil, fmt.Errorf("frames per buffer must be positive, got %d", framesPerBuffer)
	}

	return &ToneSource{
		format:          format,
		frequency:       frequency,
		amplitude:       amplitude,
		framesPerBuffer: framesPerBuffer,
		buffer:          make([]float32, framesPerBuffer*format.Channels),
	}, nil
}

// Name implements Source.
func (s *ToneSource) Name() string {
	return fmt.Sprintf("tone(%g Hz)", s.frequency)
}

// Format implements Source.
func (s *ToneSource) Format() Format { return s.format }

// Start implements Source.
func (s *ToneSource) Start(ctx context.Context, sink Sink) error {
	interval := time.Duration(s.framesPerBuffer) * time.Second / time.Duration(s.format.SampleRate)
	return s.pacer.start(ctx, interval, func() bool {
		sink.Write(s.Next())
		return true
	})
}

// Stop implements Source.
func (s *ToneSource) Stop() error {
	s.pacer.stop()
	return nil
}

// Next generates the next buffer of interleaved samples. The returned slice is
// reused by the following call.
func (s *ToneSource) Next() []float32 {
	step := 2 * math.Pi * s.frequency / float64(s.format.SampleRate)
	channels := s.format.Channels

	for i := 0; i < s.framesPerBuffer; i++ {
		v := float32(s.amplitude * math.Sin(s.phase))
		for c := 0; c < channels; c++ {
			s.buffer[i*channels+c] = v
		}
		s.phase += step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	return s.buffer
}
