package console

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/blockdeck/schema"
)

// SubscriptionState tracks the live console transport.
type SubscriptionState string

const (
	SubscriptionDisconnected SubscriptionState = "disconnected"
	SubscriptionActive       SubscriptionState = "active"
	SubscriptionClosed       SubscriptionState = "closed"
)

// DefaultReconnectDelay is the fixed backoff between transport attempts.
const DefaultReconnectDelay = 3 * time.Second

// Subscription manages at most one live console transport at a time.
// Subscribing tears down any prior transport first, so lines are never
// double-delivered into the same buffer.
type Subscription struct {
	client    Client
	logger    pslog.Logger
	reconnect time.Duration

	mu     sync.Mutex
	state  SubscriptionState
	cancel context.CancelFunc
	gen    int
}

// NewSubscription constructs a subscription manager. A non-positive
// reconnect delay falls back to DefaultReconnectDelay.
func NewSubscription(client Client, reconnect time.Duration, logger pslog.Logger) *Subscription {
	if reconnect <= 0 {
		reconnect = DefaultReconnectDelay
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Subscription{
		client:    client,
		logger:    logger,
		reconnect: reconnect,
		state:     SubscriptionDisconnected,
	}
}

// State reports the current transport state.
func (s *Subscription) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe opens a live line stream for the server and returns a
// cleanup function. Any previously active stream is torn down before
// the new one opens. The cleanup function is idempotent.
func (s *Subscription) Subscribe(serverID schema.ServerID, onLine func(line string)) func() {
	s.mu.Lock()
	if s.state == SubscriptionClosed {
		s.mu.Unlock()
		return func() {}
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.state = SubscriptionActive
	s.mu.Unlock()

	log := s.logger.With("server", serverID)
	go s.run(ctx, gen, serverID, onLine, log)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			s.mu.Lock()
			if s.gen == gen && s.state == SubscriptionActive {
				s.state = SubscriptionDisconnected
				s.cancel = nil
			}
			s.mu.Unlock()
			log.Debug("console subscription released")
		})
	}
}

// run keeps the transport open, retrying with a fixed backoff until the
// context is cancelled.
func (s *Subscription) run(ctx context.Context, gen int, serverID schema.ServerID, onLine func(string), log pslog.Logger) {
	for {
		err := s.client.StreamConsole(ctx, serverID, func(line string) {
			if s.currentGen() == gen {
				onLine(line)
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("console stream error, reconnecting", "err", err, "delay", s.reconnect)
		} else {
			log.Info("console stream ended, reconnecting", "delay", s.reconnect)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnect):
		}
	}
}

func (s *Subscription) currentGen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Close tears down any active stream and rejects future subscribes.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = SubscriptionClosed
}
