package server

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NikitaSH999/AudioViz/internal/analysis"
	"github.com/NikitaSH999/AudioViz/internal/capture"
	"github.com/NikitaSH999/AudioViz/internal/config"
	"github.com/NikitaSH999/AudioViz/internal/metrics"
	"github.com/NikitaSH999/AudioViz/internal/publish"
	"github.com/NikitaSH999/AudioViz/internal/track"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDeps wires the full component graph around an idle tone source.
func newTestDeps(t *testing.T) Deps {
	t.Helper()

	cfg := config.Default()
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	analyzer, err := analysis.NewAnalyzer(analysis.DefaultAnalyzerConfig(cfg.Capture.SampleRate))
	if err != nil {
		t.Fatalf("Failed to create analyzer: %v", err)
	}
	normalizer, err := analysis.NewNormalizer(analyzer, analysis.DefaultNormalizerConfig(), m)
	if err != nil {
		t.Fatalf("Failed to create normalizer: %v", err)
	}

	tone, err := capture.NewToneSource(capture.Format{SampleRate: cfg.Capture.SampleRate, Channels: 2}, 1000, 0.5, 512)
	if err != nil {
		t.Fatalf("Failed to create tone source: %v", err)
	}
	pipeline, err := capture.NewPipeline(tone, analyzer, testLogger(), m)
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	publisher, err := publish.NewPublisher(normalizer, publish.Config{Rate: 60, WriteTimeout: time.Second}, testLogger(), m)
	if err != nil {
		t.Fatalf("Failed to create publisher: %v", err)
	}
	t.Cleanup(publisher.Close)

	return Deps{
		Config:     cfg,
		Tracks:     track.NewStore(),
		Publisher:  publisher,
		Pipeline:   pipeline,
		Analyzer:   analyzer,
		Normalizer: normalizer,
		Metrics:    m,
		Gatherer:   registry,
	}
}

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
