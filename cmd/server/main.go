package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NikitaSH999/AudioViz/internal/analysis"
	"github.com/NikitaSH999/AudioViz/internal/audio"
	"github.com/NikitaSH999/AudioViz/internal/capture"
	"github.com/NikitaSH999/AudioViz/internal/config"
	"github.com/NikitaSH999/AudioViz/internal/device"
	"github.com/NikitaSH999/AudioViz/internal/metrics"
	"github.com/NikitaSH999/AudioViz/internal/publish"
	"github.com/NikitaSH999/AudioViz/internal/server"
	"github.com/NikitaSH999/AudioViz/internal/track"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "audioviz"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("capture_source", cfg.Capture.Source),
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Int("channels", cfg.Capture.Channels),
		slog.Int("block_size", cfg.Analysis.BlockSize),
		slog.Int("num_bands", cfg.Analysis.NumBands),
		slog.Int("broadcast_rate", cfg.Broadcast.Rate),
		slog.Int("websocket_port", cfg.WebSocket.Port),
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	source, err := newSource(cfg.Capture, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create capture source", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// An audio file dictates its own sample rate
	sampleRate := source.Format().SampleRate

	analyzer, err := analysis.NewAnalyzer(analysis.AnalyzerConfig{
		BlockSize:    cfg.Analysis.BlockSize,
		NumBands:     cfg.Analysis.NumBands,
		SampleRate:   sampleRate,
		MinFrequency: cfg.Analysis.MinFrequency,
		MaxFrequency: cfg.Analysis.MaxFrequency,
		Smoothing:    cfg.Analysis.Smoothing,
	})
	if err != nil {
		logger.Error("Failed to create analyzer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Spectral analyzer initialized",
		slog.Int("sample_rate", sampleRate),
		slog.Float64("frequency_per_bin", analyzer.Layout().FrequencyPerBin()),
	)

	normalizer, err := analysis.NewNormalizer(analyzer, analysis.NormalizerConfig{
		BoostExponent: cfg.Normalizer.BoostExponent,
		PeakDecay:     cfg.Normalizer.PeakDecay,
		PeakFloor:     cfg.Normalizer.PeakFloor,
		Gamma:         cfg.Normalizer.Gamma,
	}, appMetrics)
	if err != nil {
		logger.Error("Failed to create normalizer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	publisher, err := publish.NewPublisher(normalizer, publish.Config{
		Rate:         cfg.Broadcast.Rate,
		WriteTimeout: cfg.Broadcast.GetWriteTimeout(),
	}, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create publisher", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pipeline, err := capture.NewPipeline(source, analyzer, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create capture pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// No audio, no service
	if err := pipeline.Start(ctx); err != nil {
		logger.Error("Failed to start capture", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tracks := track.NewStore()
	if cfg.Capture.Source == "file" {
		announced := tracks.Update(track.FilePayload(audio.ReadMetadata(cfg.Capture.FilePath)))
		logger.Info("Now playing from file",
			slog.String("title", announced.Title),
			slog.String("album", announced.Album),
		)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, server.Deps{
			Config:     cfg,
			Tracks:     tracks,
			Publisher:  publisher,
			Pipeline:   pipeline,
			Analyzer:   analyzer,
			Normalizer: normalizer,
			Metrics:    appMetrics,
		})
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			stopCapture(pipeline, logger)
			os.Exit(1)
		}
	}

	wsServer := server.NewWebSocketServer(cfg.WebSocket, publisher, logger)
	if err := wsServer.Start(); err != nil {
		logger.Error("Failed to start WebSocket server", slog.String("error", err.Error()))
		stopCapture(pipeline, logger)
		os.Exit(1)
	}

	broadcastCtx, stopBroadcast := context.WithCancel(ctx)
	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		publisher.Run(broadcastCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("websocket_address", wsServer.Addr().String()),
	)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-pipeline.Err():
		logger.Error("Capture failed, shutting down", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("Starting graceful shutdown...")

	// Stop the broadcast loop before tearing down subscribers
	stopBroadcast()
	<-broadcastDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := wsServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping WebSocket server", slog.String("error", err.Error()))
	}

	publisher.Close()

	if httpServer != nil {
		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	stopCapture(pipeline, logger)

	stats := pipeline.Stats()
	broadcast := publisher.Stats()
	logger.Info("Final service statistics",
		slog.Uint64("capture_writes", stats.Writes),
		slog.Uint64("analyses", stats.Analyses),
		slog.Uint64("broadcast_ticks", broadcast.Ticks),
		slog.Uint64("frames_delivered", broadcast.Delivered),
		slog.Uint64("frames_dropped", broadcast.Dropped),
	)

	logger.Info("Service stopped")
	cancel()
	os.Exit(exitCode)
}

func stopCapture(pipeline *capture.Pipeline, logger *slog.Logger) {
	if err := pipeline.Stop(); err != nil {
		logger.Error("Error stopping capture", slog.String("error", err.Error()))
	}
}

// newSource builds the capture source selected in the configuration
func newSource(cfg config.CaptureConfig, logger *slog.Logger, m *metrics.Metrics) (capture.Source, error) {
	format := capture.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}

	var (
		source capture.Source
		err    error
	)

	switch cfg.Source {
	case "portaudio":
		source, err = device.NewPortAudioSource(format, cfg.FramesPerBuffer, logger)
	case "udp":
		source, err = capture.NewUDPSource(capture.UDPSourceConfig{
			BindAddress: cfg.UDP.BindAddress,
			Port:        cfg.UDP.Port,
			BufferSize:  cfg.UDP.BufferSize,
			Format:      format,
		}, logger, m)
	case "file":
		source, err = capture.NewFileSource(cfg.FilePath, cfg.FramesPerBuffer, cfg.Loop, logger)
	case "tone":
		source, err = capture.NewToneSource(format, cfg.ToneFrequency, cfg.ToneAmplitude, cfg.FramesPerBuffer)
	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.Source)
	}
	if err != nil {
		return nil, err
	}

	return source, nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
