package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NikitaSH999/AudioViz/internal/config"
	"github.com/NikitaSH999/AudioViz/internal/publish"
)

// maxClientMessage bounds what a client may send; clients are not expected to
// send anything.
const maxClientMessage = 4096

// WebSocketServer accepts spectrum subscribers
type WebSocketServer struct {
	server    *http.Server
	listener  net.Listener
	upgrader  websocket.Upgrader
	path      string
	publisher *publish.Publisher
	logger    *slog.Logger
}

// NewWebSocketServer creates a WebSocket server feeding from publisher
func NewWebSocketServer(cfg config.WebSocketConfig, publisher *publish.Publisher, logger *slog.Logger) *WebSocketServer {
	s := &WebSocketServer{
		path:      cfg.Path,
		publisher: publisher,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser overlays connect from file:// and arbitrary hosts.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// ServeHTTP upgrades the request and keeps the subscriber until the client
// goes away or the publisher drops it.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.path {
		http.NotFound(w, r)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		s.logger.Debug("WebSocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	sub, err := s.publisher.Subscribe(publish.NewWebSocketConn(ws))
	if err != nil {
		s.logger.Warn("Rejecting WebSocket client",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		ws.Close()
		return
	}

	// Discard anything the client sends; a read error means it is gone.
	ws.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	s.publisher.Unsubscribe(sub)
}

// Start binds the listening socket and serves in the background
func (s *WebSocketServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("Starting WebSocket server",
		slog.String("address", ln.Addr().String()),
		slog.String("path", s.path),
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start
func (s *WebSocketServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops accepting new clients. Upgraded connections are owned by the
// publisher and are closed by Publisher.Close.
func (s *WebSocketServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping WebSocket server...")

	return s.server.Shutdown(ctx)
}
