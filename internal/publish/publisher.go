package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NikitaSH999/AudioViz/internal/metrics"
)

// ErrPublisherClosed is returned by Subscribe after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Removal reasons reported to metrics
const (
	removedClientClosed = "client_closed"
	removedWriteFailed  = "write_failed"
	removedShutdown     = "shutdown"
)

// SnapshotSource provides the normalized spectrum for each tick.
type SnapshotSource interface {
	Snapshot() []float64
}

// Config contains publisher parameters
type Config struct {
	Rate         int           // ticks per second
	WriteTimeout time.Duration // per-subscriber write deadline
}

// Validate checks the publisher parameters
func (c Config) Validate() error {
	if c.Rate < 1 {
		return fmt.Errorf("broadcast rate must be positive, got %d", c.Rate)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", c.WriteTimeout)
	}
	return nil
}

// Interval returns the tick period
func (c Config) Interval() time.Duration {
	return time.Second / time.Duration(c.Rate)
}

// Publisher owns the subscriber set and the broadcast schedule.
type Publisher struct {
	source  SnapshotSource
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	closed      bool

	writers sync.WaitGroup
	nextID  atomic.Uint64

	latest    atomic.Pointer[Frame]
	latestMsg atomic.Pointer[[]byte]

	ticks     atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	removed   atomic.Uint64
}

// Stats represents publisher counters
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Ticks       uint64 `json:"ticks"`
	Delivered   uint64 `json:"frames_delivered"`
	Dropped     uint64 `json:"frames_dropped"`
	Removed     uint64 `json:"subscribers_removed"`
	Rate        int    `json:"rate"`
}

// NewPublisher creates a publisher pulling frames from source
func NewPublisher(source SnapshotSource, config Config, logger *slog.Logger, m *metrics.Metrics) (*Publisher, error) {
	if source == nil {
		return nil, fmt.Errorf("publisher source is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid publisher config: %w", err)
	}

	return &Publisher{
		source:      source,
		config:      config,
		logger:      logger,
		metrics:     m,
		subscribers: make(map[*Subscriber]struct{}),
	}, nil
}

// Subscribe adds conn to the subscriber set and starts its writer. If a frame
// has already been broadcast, it is queued for the new subscriber right away.
func (p *Publisher) Subscribe(conn Conn) (*Subscriber, error) {
	sub := &Subscriber{
		id:          p.nextID.Add(1),
		conn:        conn,
		mailbox:     make(chan []byte, 1),
		done:        make(chan struct{}),
		connectedAt: time.Now(),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPublisherClosed
	}
	p.subscribers[sub] = struct{}{}
	count := len(p.subscribers)
	p.writers.Add(1)
	// Under the lock so a concurrent Tick cannot be overtaken by an older frame
	if msg := p.latestMsg.Load(); msg != nil {
		sub.offer(*msg)
	}
	p.mu.Unlock()

	go p.writeLoop(sub)

	p.metrics.RecordSubscriberConnected()
	p.metrics.SetActiveSubscribers(count)
	p.logger.Info("Subscriber connected",
		slog.Uint64("subscriber_id", sub.id),
		slog.String("remote_addr", conn.RemoteAddr()),
		slog.Int("subscribers", count),
	)

	return sub, nil
}

// Unsubscribe removes sub. Its connection is closed once any in-flight write
// finishes. Unsubscribing twice is a no-op.
func (p *Publisher) Unsubscribe(sub *Subscriber) {
	p.remove(sub, removedClientClosed)
}

func (p *Publisher) remove(sub *Subscriber, reason string) {
	p.mu.Lock()
	_, ok := p.subscribers[sub]
	if ok {
		delete(p.subscribers, sub)
	}
	count := len(p.subscribers)
	p.mu.Unlock()

	if !ok {
		return
	}

	sub.stop()
	p.removed.Add(1)
	p.metrics.RecordSubscriberRemoved(reason)
	p.metrics.SetActiveSubscribers(count)
	p.logger.Info("Subscriber removed",
		slog.Uint64("subscriber_id", sub.id),
		slog.String("remote_addr", sub.conn.RemoteAddr()),
		slog.String("reason", reason),
		slog.Uint64("frames_delivered", sub.delivered.Load()),
		slog.Uint64("frames_dropped", sub.dropped.Load()),
		slog.Int("subscribers", count),
	)
}

// Tick takes one snapshot and hands the encoded frame to every subscriber.
// It never blocks on the network. The snapshot is taken even with no
// subscribers so that the peak tracker keeps advancing.
func (p *Publisher) Tick() {
	frame := NewFrame(p.source.Snapshot())
	msg, err := frame.Encode()
	if err != nil {
		p.logger.Error("Failed to encode spectrum frame", slog.String("error", err.Error()))
		return
	}

	p.latest.Store(&frame)
	p.latestMsg.Store(&msg)
	p.ticks.Add(1)
	p.metrics.RecordBroadcastTick()

	p.mu.RLock()
	defer p.mu.RUnlock()

	for sub := range p.subscribers {
		if sub.offer(msg) {
			p.dropped.Add(1)
			p.metrics.RecordFrameDropped()
		}
	}
}

// Run ticks at the configured rate until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.config.Interval())
	defer ticker.Stop()

	p.logger.Info("Broadcast loop started",
		slog.Int("rate", p.config.Rate),
		slog.Duration("interval", p.config.Interval()),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Broadcast loop stopped", slog.Uint64("ticks", p.ticks.Load()))
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Close removes every subscriber and waits for their writers to exit. A write
// already in progress is allowed to complete, bounded by the write timeout.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	subs := make([]*Subscriber, 0, len(p.subscribers))
	for sub := range p.subscribers {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		p.remove(sub, removedShutdown)
	}

	p.writers.Wait()
	p.logger.Info("Publisher closed",
		slog.Int("subscribers_closed", len(subs)),
		slog.Uint64("ticks", p.ticks.Load()),
	)
}

// writeLoop delivers mailbox frames to one subscriber
func (p *Publisher) writeLoop(sub *Subscriber) {
	defer p.writers.Done()
	defer func() {
		if err := sub.conn.Close(); err != nil {
			p.logger.Debug("Error closing subscriber connection",
				slog.Uint64("subscriber_id", sub.id),
				slog.String("error", err.Error()),
			)
		}
	}()

	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.mailbox:
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), p.config.WriteTimeout)
			err := sub.conn.WriteMessage(ctx, msg)
			cancel()

			if err != nil {
				p.logger.Warn("Failed to write spectrum frame",
					slog.Uint64("subscriber_id", sub.id),
					slog.String("remote_addr", sub.conn.RemoteAddr()),
					slog.String("error", err.Error()),
				)
				p.remove(sub, removedWriteFailed)
				return
			}

			sub.delivered.Add(1)
			p.delivered.Add(1)
			p.metrics.RecordFrameDelivered(time.Since(start).Seconds())
		}
	}
}

// Count returns the number of subscribers
func (p *Publisher) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// Latest returns the most recently broadcast frame, if any
func (p *Publisher) Latest() (Frame, bool) {
	frame := p.latest.Load()
	if frame == nil {
		return Frame{}, false
	}
	return *frame, true
}

// Stats returns current publisher counters
func (p *Publisher) Stats() Stats {
	return Stats{
		Subscribers: p.Count(),
		Ticks:       p.ticks.Load(),
		Delivered:   p.delivered.Load(),
		Dropped:     p.dropped.Load(),
		Removed:     p.removed.Load(),
		Rate:        p.config.Rate,
	}
}

// Subscriber is one live connection in the subscriber set.
type Subscriber struct {
	id          uint64
	conn        Conn
	mailbox     chan []byte // latest frame wins
	done        chan struct{}
	stopOnce    sync.Once
	connectedAt time.Time

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// offer places msg in the mailbox, replacing an undelivered frame. It reports
// whether a frame was replaced.
func (s *Subscriber) offer(msg []byte) bool {
	replaced := false
	for {
		select {
		case s.mailbox <- msg:
			return replaced
		default:
		}

		select {
		case <-s.mailbox:
			s.dropped.Add(1)
			replaced = true
		default:
		}
	}
}

func (s *Subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// ID returns the subscriber's sequence number
func (s *Subscriber) ID() uint64 { return s.id }

// RemoteAddr returns the peer address
func (s *Subscriber) RemoteAddr() string { return s.conn.RemoteAddr() }

// ConnectedAt returns when the subscriber joined
func (s *Subscriber) ConnectedAt() time.Time { return s.connectedAt }

// Done is closed once the subscriber has been removed
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Delivered returns how many frames were written to the subscriber
func (s *Subscriber) Delivered() uint64 { return s.delivered.Load() }

// Dropped returns how many frames were superseded before they could be written
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }
