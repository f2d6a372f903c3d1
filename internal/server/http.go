package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/NikitaSH999/AudioViz/internal/analysis"
	"github.com/NikitaSH999/AudioViz/internal/capture"
	"github.com/NikitaSH999/AudioViz/internal/config"
	"github.com/NikitaSH999/AudioViz/internal/metrics"
	"github.com/NikitaSH999/AudioViz/internal/publish"
	"github.com/NikitaSH999/AudioViz/internal/track"
)

// Deps are the components the HTTP API reports on
type Deps struct {
	Config     *config.Config
	Tracks     *track.Store
	Publisher  *publish.Publisher
	Pipeline   *capture.Pipeline
	Analyzer   *analysis.Analyzer
	Normalizer *analysis.Normalizer
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// HTTPServer provides the track API plus monitoring endpoints
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	deps     Deps

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, deps Deps) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		deps:      deps,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	// The userscript posts from arbitrary music sites.
	c := cors.New(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"*"},
		OptionsSuccessStatus: http.StatusOK,
	})

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the root handler, CORS included
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Track API (Tuna-compatible)
	tracks := track.NewHandler(h.deps.Tracks, h.logger, h.deps.Metrics)
	mux.HandleFunc("/", h.withMetrics("/", tracks.ServeHTTP))

	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/spectrum", h.withMetrics("/spectrum", h.handleSpectrum))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	gatherer := h.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Capture the status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.deps.Metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.deps.Metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start binds the listening socket and serves in the background. Bind errors
// are returned to the caller.
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}
	h.listener = ln

	h.logger.Info("Starting HTTP API server",
		slog.String("address", ln.Addr().String()),
	)

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start
func (h *HTTPServer) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	captureStats := h.deps.Pipeline.Stats()
	broadcast := h.deps.Publisher.Stats()
	trackUpdates, _ := h.deps.Tracks.Updates()

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    "audioviz",
			"version": "1.0.0",
		},
		"components": map[string]any{
			"capture": map[string]any{
				"status":   "running",
				"source":   captureStats.Source,
				"analyses": captureStats.Analyses,
			},
			"broadcast": map[string]any{
				"status":      "running",
				"subscribers": broadcast.Subscribers,
				"ticks":       broadcast.Ticks,
			},
			"track": map[string]any{
				"status":  h.deps.Tracks.Get().Status,
				"updates": trackUpdates,
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]any{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"capture":   h.deps.Pipeline.Stats(),
		"analysis": map[string]any{
			"updates":         h.deps.Analyzer.Updates(),
			"normalizer_peak": h.deps.Normalizer.Peak(),
		},
		"broadcast": h.deps.Publisher.Stats(),
	}

	if udp, ok := h.deps.Pipeline.Source().(*capture.UDPSource); ok {
		stats["udp"] = udp.Statistics()
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.deps.Config
	layout := h.deps.Analyzer.Layout()
	format := h.deps.Pipeline.Source().Format()

	response := map[string]any{
		"websocket": map[string]any{
			"address": cfg.WebSocket.Address,
			"port":    cfg.WebSocket.Port,
			"path":    cfg.WebSocket.Path,
		},
		"capture": map[string]any{
			"source":            cfg.Capture.Source,
			"sample_rate":       format.SampleRate,
			"channels":          format.Channels,
			"frames_per_buffer": cfg.Capture.FramesPerBuffer,
		},
		"analysis": map[string]any{
			"block_size":        cfg.Analysis.BlockSize,
			"num_bands":         layout.NumBands(),
			"min_frequency":     cfg.Analysis.MinFrequency,
			"max_frequency":     cfg.Analysis.MaxFrequency,
			"smoothing":         cfg.Analysis.Smoothing,
			"frequency_per_bin": layout.FrequencyPerBin(),
			"band_edges":        layout.Edges(),
		},
		"normalizer": map[string]any{
			"boost_exponent": cfg.Normalizer.BoostExponent,
			"peak_decay":     cfg.Normalizer.PeakDecay,
			"peak_floor":     cfg.Normalizer.PeakFloor,
			"gamma":          cfg.Normalizer.Gamma,
		},
		"broadcast": map[string]any{
			"rate":             cfg.Broadcast.Rate,
			"write_timeout_ms": cfg.Broadcast.WriteTimeoutMs,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
			"output": cfg.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, response)
}

// handleSpectrum implements the /spectrum endpoint: the last broadcast frame
func (h *HTTPServer) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame, ok := h.deps.Publisher.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "no spectrum broadcast yet",
		})
		return
	}

	writeJSON(w, http.StatusOK, frame)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
