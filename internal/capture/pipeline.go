package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NikitaSH999/AudioViz/internal/analysis"
	"github.com/NikitaSH999/AudioViz/internal/audio"
	"github.com/NikitaSH999/AudioViz/internal/metrics"
)

// Pipeline feeds a Source into the analyzer. It implements Sink.
//
// Every Write appends to the rolling buffer and, once the buffer holds a full
// window, analyses the most recent BlockSize samples. Consecutive windows
// overlap by however much the source's push size leaves them; there is no
// fixed hop.
type Pipeline struct {
	source   Source
	analyzer *analysis.Analyzer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// Capture domain. Held only for the duration of a Write.
	mu      sync.Mutex
	buffer  *audio.SampleBuffer
	window  []float64
	stopped bool

	errCh   chan error
	errOnce sync.Once

	writes   atomic.Uint64
	analyses atomic.Uint64
}

// PipelineStats represents pipeline counters
type PipelineStats struct {
	Source   string            `json:"source"`
	Format   Format            `json:"format"`
	Buffer   audio.BufferStats `json:"buffer"`
	Writes   uint64            `json:"writes"`
	Analyses uint64            `json:"analyses"`
}

// NewPipeline creates a pipeline from source into analyzer. The source format
// must match the analyzer sample rate.
func NewPipeline(source Source, analyzer *analysis.Analyzer, logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	format := source.Format()
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format for source %s: %w", source.Name(), err)
	}

	cfg := analyzer.Config()
	if format.SampleRate != cfg.SampleRate {
		return nil, fmt.Errorf("%w: source %s runs at %d Hz, analyzer expects %d Hz",
			ErrFormatMismatch, source.Name(), format.SampleRate, cfg.SampleRate)
	}

	return &Pipeline{
		source:   source,
		analyzer: analyzer,
		logger:   logger,
		metrics:  m,
		buffer:   audio.NewSampleBuffer(cfg.BlockSize, format.Channels),
		window:   make([]float64, cfg.BlockSize),
		errCh:    make(chan error, 1),
	}, nil
}

// Start starts the source. A failure here is a startup failure: there is no
// degraded mode without audio input.
func (p *Pipeline) Start(ctx context.Context) error {
	format := p.source.Format()
	p.logger.Info("Starting capture",
		slog.String("source", p.source.Name()),
		slog.Int("sample_rate", format.SampleRate),
		slog.Int("channels", format.Channels),
		slog.Int("block_size", len(p.window)),
	)

	if err := p.source.Start(ctx, p); err != nil {
		p.metrics.RecordCaptureError()
		return fmt.Errorf("failed to start capture source %s: %w", p.source.Name(), err)
	}
	return nil
}

// Write implements Sink.
func (p *Pipeline) Write(samples []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	n := p.buffer.Append(samples)
	p.writes.Add(1)
	p.metrics.RecordCapture(n)

	if !p.buffer.Window(p.window) {
		return
	}

	start := time.Now()
	p.analyzer.Update(p.window)
	p.analyses.Add(1)
	p.metrics.RecordAnalysis(time.Since(start).Seconds())
}

// Fail implements Sink. Only the first error is kept.
func (p *Pipeline) Fail(err error) {
	p.errOnce.Do(func() {
		p.logger.Error("Capture source failed",
			slog.String("source", p.source.Name()),
			slog.String("error", err.Error()),
		)
		p.metrics.RecordCaptureError()
		p.errCh <- err
	})
}

// Err returns a channel that receives the first fatal capture error.
func (p *Pipeline) Err() <-chan error {
	return p.errCh
}

// Stop stops the source, then tears down the buffer.
func (p *Pipeline) Stop() error {
	err := p.source.Stop()

	p.mu.Lock()
	p.stopped = true
	stats := p.buffer.Stats()
	p.buffer.Reset()
	p.mu.Unlock()

	p.logger.Info("Capture stopped",
		slog.String("source", p.source.Name()),
		slog.Uint64("total_frames", stats.TotalFrames),
		slog.Uint64("analyses", p.analyses.Load()),
	)

	if err != nil {
		return fmt.Errorf("failed to stop capture source %s: %w", p.source.Name(), err)
	}
	return nil
}

// Stats returns current pipeline counters
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	buffer := p.buffer.Stats()
	p.mu.Unlock()

	return PipelineStats{
		Source:   p.source.Name(),
		Format:   p.source.Format(),
		Buffer:   buffer,
		Writes:   p.writes.Load(),
		Analyses: p.analyses.Load(),
	}
}

// Source returns the capture source.
func (p *Pipeline) Source() Source {
	return p.source
}
