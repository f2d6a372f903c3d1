package capture

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSink collects everything a source pushes.
type recordingSink struct {
	mu      sync.Mutex
	writes  [][]float32
	samples int
	err     error
}

func (s *recordingSink) Write(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, append([]float32(nil), samples...))
	s.samples += len(samples)
}

func (s *recordingSink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *recordingSink) snapshot() ([][]float32, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]float32(nil), s.writes...), s.samples, s.err
}

// manualSource hands its sink to the test instead of producing audio itself.
type manualSource struct {
	format   Format
	startErr error
	onStop   func()

	mu      sync.Mutex
	sink    Sink
	started bool
	stopped bool
}

func (s *manualSource) Name() string   { return "manual" }
func (s *manualSource) Format() Format { return s.format }

func (s *manualSource) Start(ctx context.Context, sink Sink) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
	s.started = true
	return nil
}

func (s *manualSource) Stop() error {
	if s.onStop != nil {
		s.onStop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
