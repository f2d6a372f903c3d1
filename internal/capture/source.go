package capture

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSourceExhausted is reported when a non-looping source reaches the end
	// of its input.
	ErrSourceExhausted = errors.New("capture source exhausted")

	// ErrFormatMismatch is returned when a source's format does not match what
	// the analyzer was configured for.
	ErrFormatMismatch = errors.New("capture format mismatch")
)

// Format describes interleaved sample frames.
type Format struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// Validate checks the format fields
func (f Format) Validate() error {
	if f.SampleRate < 1 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels < 1 {
		return fmt.Errorf("channel count must be positive, got %d", f.Channels)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch", f.SampleRate, f.Channels)
}

// Sink receives captured audio.
type Sink interface {
	// Write delivers interleaved samples. The slice is only valid for the
	// duration of the call.
	Write(samples []float32)
	// Fail reports an unrecoverable source error.
	Fail(err error)
}

// Source produces interleaved float32 frames at its own cadence.
type Source interface {
	Name() string
	Format() Format
	// Start begins delivering audio to sink. It returns once the source is
	// running; delivery continues until Stop or ctx is done.
	Start(ctx context.Context, sink Sink) error
	// Stop halts delivery. No Write happens after Stop returns.
	Stop() error
}
