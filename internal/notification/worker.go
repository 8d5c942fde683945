package notification

import (
	"context"
	"log/slog"
	"time"

	"guest-visits-backend/internal/events"
)

// Provider delivers a rendered message to one external channel.
type Provider interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}

// Job is one event waiting to be delivered.
type Job struct {
	Type   events.Type
	Change events.Change
}

// WorkerPool renders events and hands them to every provider.
type WorkerPool struct {
	size      int
	jobs      chan Job
	providers []Provider
	enabled   map[events.Type]bool
	loc       *time.Location
	timeout   time.Duration
	logger    *slog.Logger
}

// NewWorkerPool creates a new worker pool. An empty enabledTypes list
// enables every event type.
func NewWorkerPool(size, queueSize int, enabledTypes []events.Type, loc *time.Location, logger *slog.Logger, providers ...Provider) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	enabled := make(map[events.Type]bool)
	if len(enabledTypes) == 0 {
		for _, t := range events.All() {
			enabled[t] = true
		}
	}
	for _, t := range enabledTypes {
		enabled[t] = true
	}
	return &WorkerPool{
		size:      size,
		jobs:      make(chan Job, queueSize),
		providers: providers,
		enabled:   enabled,
		loc:       loc,
		timeout:   15 * time.Second,
		logger:    logger.With("component", "notification"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("worker started", "worker", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.deliver(ctx, job)
		case <-ctx.Done():
			wp.logger.Debug("worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues an event without blocking. Events of disabled types, and
// events arriving while the queue is full, are dropped.
func (wp *WorkerPool) Dispatch(typ events.Type, change events.Change) {
	if !wp.enabled[typ] || len(wp.providers) == 0 {
		return
	}
	select {
	case wp.jobs <- Job{Type: typ, Change: change}:
	default:
		wp.logger.Warn("notification queue full, dropping event", "type", typ)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

func (wp *WorkerPool) deliver(ctx context.Context, job Job) {
	msg := Render(job.Type, job.Change, wp.loc)
	for _, p := range wp.providers {
		sendCtx, cancel := context.WithTimeout(ctx, wp.timeout)
		err := p.Notify(sendCtx, msg)
		cancel()
		if err != nil {
			wp.logger.Error("notification delivery failed", "provider", p.Name(), "type", job.Type, "error", err)
			continue
		}
		wp.logger.Debug("notification delivered", "provider", p.Name(), "type", job.Type)
	}
}
