package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/NikitaSH999/AudioViz/internal/metrics"
	"github.com/NikitaSH999/AudioViz/internal/protocol"
)

// Drop reasons reported to metrics
const (
	dropQueueFull      = "queue_full"
	dropForeignSource  = "foreign_source"
	dropFormatMismatch = "format_mismatch"
	dropOutOfOrder     = "out_of_order"
)

// sourceTimeout is how long the current sender may stay silent before another
// source ID may take over the stream.
const sourceTimeout = 2 * time.Second

// sequenceRestartWindow is the largest backwards sequence step still treated
// as reordering. Anything further back is a restarted sender.
const sequenceRestartWindow = 1024

// UDPSourceConfig contains UDP ingest parameters
type UDPSourceConfig struct {
	BindAddress string
	Port        int // 0 picks an ephemeral port
	BufferSize  int
	Format      Format
}

// UDPSource receives PCM packets from a single remote sender and pushes their
// samples to the sink in sequence order.
type UDPSource struct {
	config  UDPSourceConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	conn *net.UDPConn
	sink Sink

	ctx    context.Context
	cancel context.CancelFunc

	receiverDone  chan struct{}
	processorDone chan struct{}
	stopOnce      sync.Once

	packetChan chan *incomingPacket

	// Owned by the processor goroutine
	activeSource uint32
	haveSource   bool
	lastPacket   time.Time
	lastSequence uint32
	haveSequence bool
	rejected     map[uint32]bool // source IDs that announced an incompatible format

	mu    sync.RWMutex
	stats UDPStatistics
}

// incomingPacket represents a received UDP packet with metadata
type incomingPacket struct {
	data       []byte
	remoteAddr *net.UDPAddr
	timestamp  time.Time
}

// UDPStatistics represents UDP ingest counters
type UDPStatistics struct {
	PacketsReceived  uint64 `json:"packets_received"`
	PacketsProcessed uint64 `json:"packets_processed"`
	ParseErrors      uint64 `json:"parse_errors"`
	QueueDrops       uint64 `json:"queue_drops"`
	ForeignDrops     uint64 `json:"foreign_drops"`
	FormatMismatches uint64 `json:"format_mismatches"`
	OutOfOrderDrops  uint64 `json:"out_of_order_drops"`
	ActiveSourceID   uint32 `json:"active_source_id"`
	QueueSize        int    `json:"queue_size"`
	QueueCapacity    int    `json:"queue_capacity"`
}

// NewUDPSource creates a UDP ingest source. The socket is opened by Start.
func NewUDPSource(cfg UDPSourceConfig, logger *slog.Logger, m *metrics.Metrics) (*UDPSource, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if cfg.Format.Channels > protocol.MaxChannels {
		return nil, fmt.Errorf("channel count %d exceeds protocol maximum %d", cfg.Format.Channels, protocol.MaxChannels)
	}
	if cfg.BufferSize < protocol.HeaderSize {
		return nil, fmt.Errorf("buffer size must be at least %d, got %d", protocol.HeaderSize, cfg.BufferSize)
	}

	return &UDPSource{
		config:     cfg,
		logger:     logger,
		metrics:    m,
		packetChan: make(chan *incomingPacket, 1000),
		rejected:   make(map[uint32]bool),
	}, nil
}

// Name implements Source.
func (s *UDPSource) Name() string {
	return fmt.Sprintf("udp(%s:%d)", s.config.BindAddress, s.config.Port)
}

// Format implements Source.
func (s *UDPSource) Format() Format { return s.config.Format }

// Addr returns the bound address, or nil before Start.
func (s *UDPSource) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Start implements Source.
func (s *UDPSource) Start(ctx context.Context, sink Sink) error {
	if s.conn != nil {
		return errAlreadyRunning
	}

	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	s.conn = conn
	s.sink = sink

	if err := s.conn.SetReadBuffer(s.config.BufferSize); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", s.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.receiverDone = make(chan struct{})
	s.processorDone = make(chan struct{})

	s.logger.Info("UDP capture started",
		slog.String("address", conn.LocalAddr().String()),
		slog.Int("buffer_size", s.config.BufferSize),
	)

	// One processor keeps samples in arrival order.
	go s.packetProcessor()
	go s.receiveLoop()

	return nil
}

// Stop implements Source.
func (s *UDPSource) Stop() error {
	if s.conn == nil {
		return nil
	}

	s.stopOnce.Do(func() {
		s.cancel()

		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
		}

		// The receiver is the only sender on packetChan.
		<-s.receiverDone
		close(s.packetChan)
		<-s.processorDone

		stats := s.Statistics()
		s.logger.Info("UDP capture stopped",
			slog.Uint64("packets_received", stats.PacketsReceived),
			slog.Uint64("packets_processed", stats.PacketsProcessed),
			slog.Uint64("parse_errors", stats.ParseErrors),
		)
	})

	return nil
}

// receiveLoop is the main packet receiving loop
func (s *UDPSource) receiveLoop() {
	defer close(s.receiverDone)

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		// Periodic deadline so cancellation is observed
		if err := s.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Failed to read UDP packet", slog.String("error", err.Error()))
			continue
		}

		s.mu.Lock()
		s.stats.PacketsReceived++
		s.mu.Unlock()
		s.metrics.RecordPacketReceived()

		// The read buffer is reused
		packetData := make([]byte, n)
		copy(packetData, buffer[:n])

		packet := &incomingPacket{
			data:       packetData,
			remoteAddr: remoteAddr,
			timestamp:  time.Now(),
		}

		select {
		case s.packetChan <- packet:
		default:
			s.drop(dropQueueFull)
			s.logger.Warn("Packet processing queue full, dropping packet",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("packet_size", n),
			)
		}
	}
}

// packetProcessor processes packets from the packet channel
func (s *UDPSource) packetProcessor() {
	defer close(s.processorDone)

	for packet := range s.packetChan {
		s.handlePacket(packet)
	}
}

// handlePacket processes a single incoming packet
func (s *UDPSource) handlePacket(packet *incomingPacket) {
	parsed, err := protocol.ParsePacket(packet.data)
	if err != nil {
		s.mu.Lock()
		s.stats.ParseErrors++
		s.mu.Unlock()
		s.metrics.RecordParseError()

		s.logger.Warn("Failed to parse packet",
			slog.String("remote_addr", packet.remoteAddr.String()),
			slog.Int("packet_size", len(packet.data)),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.stats.PacketsProcessed++
	s.mu.Unlock()
	s.metrics.RecordPacketProcessed()

	header := parsed.Header
	switch header.PacketType {
	case protocol.PacketTypeFormat:
		s.processFormatPacket(header, parsed.Format, packet.timestamp)
	case protocol.PacketTypeAudio:
		s.processAudioPacket(header, parsed.Audio, packet.timestamp)
	}
}

// claim makes sourceID the active sender if there is none or the current one
// has gone quiet. It reports whether sourceID is the active sender. Only
// accepted packets refresh lastPacket.
func (s *UDPSource) claim(sourceID uint32, now time.Time) bool {
	if s.haveSource && s.activeSource == sourceID {
		return true
	}
	if s.haveSource && now.Sub(s.lastPacket) < sourceTimeout {
		return false
	}

	if s.haveSource {
		s.logger.Info("UDP sender changed",
			slog.Uint64("previous_source_id", uint64(s.activeSource)),
			slog.Uint64("source_id", uint64(sourceID)),
		)
	}
	s.activeSource = sourceID
	s.haveSource = true
	s.haveSequence = false
	s.lastPacket = now

	s.mu.Lock()
	s.stats.ActiveSourceID = sourceID
	s.mu.Unlock()
	return true
}

// restarted reports whether seq looks like a sender that restarted its
// sequence counter rather than a reordered packet.
func (s *UDPSource) restarted(seq uint32, now time.Time) bool {
	if now.Sub(s.lastPacket) >= sourceTimeout {
		return true
	}
	return int32(seq-s.lastSequence) < -sequenceRestartWindow
}

// processFormatPacket validates a sender's announced format
func (s *UDPSource) processFormatPacket(header *protocol.Header, payload *protocol.FormatPayload, now time.Time) {
	want := s.config.Format
	if int(payload.SampleRate) != want.SampleRate || int(header.Channels) != want.Channels {
		if !s.rejected[header.SourceID] {
			s.logger.Warn("UDP sender format does not match capture format, dropping its audio",
				slog.Uint64("source_id", uint64(header.SourceID)),
				slog.String("source_name", payload.GetSourceName()),
				slog.Int("sample_rate", int(payload.SampleRate)),
				slog.Int("channels", int(header.Channels)),
				slog.String("expected", want.String()),
			)
		}
		s.rejected[header.SourceID] = true
		s.drop(dropFormatMismatch)
		return
	}

	delete(s.rejected, header.SourceID)
	if !s.claim(header.SourceID, now) {
		s.drop(dropForeignSource)
		return
	}
	// A new announcement starts a new sequence
	s.haveSequence = false
	s.lastPacket = now

	s.logger.Info("UDP sender announced",
		slog.Uint64("source_id", uint64(header.SourceID)),
		slog.String("source_name", payload.GetSourceName()),
		slog.String("format", want.String()),
	)
}

// processAudioPacket forwards the samples of the active sender to the sink
func (s *UDPSource) processAudioPacket(header *protocol.Header, payload *protocol.AudioPayload, now time.Time) {
	if s.rejected[header.SourceID] || int(header.Channels) != s.config.Format.Channels {
		s.drop(dropFormatMismatch)
		return
	}

	if !s.claim(header.SourceID, now) {
		s.drop(dropForeignSource)
		return
	}

	if s.haveSequence && s.restarted(payload.Sequence, now) {
		s.logger.Info("UDP sender restarted its sequence",
			slog.Uint64("source_id", uint64(header.SourceID)),
			slog.Uint64("sequence", uint64(payload.Sequence)),
			slog.Uint64("last_sequence", uint64(s.lastSequence)),
		)
		s.haveSequence = false
	}

	// Serial-number comparison tolerates wraparound
	if s.haveSequence && int32(payload.Sequence-s.lastSequence) <= 0 {
		s.drop(dropOutOfOrder)
		s.logger.Debug("Dropping out-of-order audio packet",
			slog.Uint64("source_id", uint64(header.SourceID)),
			slog.Uint64("sequence", uint64(payload.Sequence)),
			slog.Uint64("last_sequence", uint64(s.lastSequence)),
		)
		return
	}
	s.lastSequence = payload.Sequence
	s.haveSequence = true
	s.lastPacket = now

	if len(payload.Samples) > 0 {
		s.sink.Write(payload.Samples)
	}
}

func (s *UDPSource) drop(reason string) {
	s.mu.Lock()
	switch reason {
	case dropQueueFull:
		s.stats.QueueDrops++
	case dropForeignSource:
		s.stats.ForeignDrops++
	case dropFormatMismatch:
		s.stats.FormatMismatches++
	case dropOutOfOrder:
		s.stats.OutOfOrderDrops++
	}
	s.mu.Unlock()
	s.metrics.RecordPacketDropped(reason)
}

// Statistics returns current ingest counters
func (s *UDPSource) Statistics() UDPStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.stats
	stats.QueueSize = len(s.packetChan)
	stats.QueueCapacity = cap(s.packetChan)
	return stats
}
