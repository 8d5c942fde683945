package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"guest-visits-backend/internal/events"
)

// Health is the outcome of a send on one connection.
type Health int

const (
	// Alive means the payload was handed to the transport.
	Alive Health = iota
	// Dead means the transport failed; the connection must not be used again.
	Dead
)

// Conn is one live subscriber.
type Conn interface {
	ID() string
	Send(payload []byte) Health
}

// PublishResult counts the outcome of one publish.
type PublishResult struct {
	Delivered int
	Dropped   int
}

// Broadcaster fans messages out to every subscribed connection.
type Broadcaster struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	logger *slog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		conns:  make(map[string]Conn),
		logger: logger.With("component", "realtime"),
	}
}

// Subscribe registers c. Subscribing an already registered ID replaces it.
func (b *Broadcaster) Subscribe(c Conn) {
	b.mu.Lock()
	b.conns[c.ID()] = c
	n := len(b.conns)
	b.mu.Unlock()
	b.logger.Debug("subscriber connected", "conn", c.ID(), "subscribers", n)
}

// Unsubscribe removes c. Removing an unknown connection is a no-op.
func (b *Broadcaster) Unsubscribe(c Conn) {
	b.mu.Lock()
	_, existed := b.conns[c.ID()]
	delete(b.conns, c.ID())
	n := len(b.conns)
	b.mu.Unlock()
	if existed {
		b.logger.Debug("subscriber removed", "conn", c.ID(), "subscribers", n)
	}
}

// Len returns the number of live subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Publish serializes env once and sends it to every subscriber.
func (b *Broadcaster) Publish(env events.Envelope) (PublishResult, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return PublishResult{}, fmt.Errorf("failed to marshal %s envelope: %w", env.Type, err)
	}
	res := b.PublishRaw(payload)
	b.logger.Debug("event published", "type", env.Type, "delivered", res.Delivered, "dropped", res.Dropped)
	return res, nil
}

// PublishRaw sends payload to every subscriber concurrently. Connections
// whose send reports Dead are removed; others are unaffected.
func (b *Broadcaster) PublishRaw(payload []byte) PublishResult {
	b.mu.RLock()
	targets := make([]Conn, 0, len(b.conns))
	for _, c := range b.conns {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	health := make([]Health, len(targets))
	var wg sync.WaitGroup
	for i, c := range targets {
		wg.Add(1)
		go func(i int, c Conn) {
			defer wg.Done()
			health[i] = c.Send(payload)
		}(i, c)
	}
	wg.Wait()

	var res PublishResult
	for i, c := range targets {
		if health[i] == Alive {
			res.Delivered++
			continue
		}
		res.Dropped++
		b.logger.Info("dropping dead subscriber", "conn", c.ID())
		b.Unsubscribe(c)
	}
	return res
}
