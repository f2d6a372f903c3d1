package track

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/NikitaSH999/AudioViz/internal/metrics"
)

// maxBodySize bounds a single track update
const maxBodySize = 1 << 20

// Handler serves the track record: GET returns it, POST replaces it.
type Handler struct {
	store   *Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler creates a track API handler backed by store
func NewHandler(store *Store, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{store: store, logger: logger, metrics: m}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.store.Get())
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		h.writeError(w, err)
		return
	}

	payload, err := DecodePayload(body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	t := h.store.Update(payload)
	h.metrics.RecordTrackUpdate()
	h.logger.Info("Track updated",
		slog.String("status", t.Status),
		slog.String("title", t.Title),
		slog.String("artists", strings.Join(t.Artists, ", ")),
		slog.String("source", t.Source),
	)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.logger.Warn("Rejected track update", slog.String("error", err.Error()))
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"status":  "error",
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
