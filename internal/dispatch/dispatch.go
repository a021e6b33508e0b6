// Package dispatch decouples notification producers from slow or failing transports.
// Producers call Enqueue, which never blocks; a single worker forwards queued
// notifications, in order, to the transport.
package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/silence-sensor/internal/logic"
)

// Defaults used when Config fields are zero.
const (
	DefaultQueueSize   = 100
	DefaultSendTimeout = 30 * time.Second
)

// Transport delivers a single notification.
type Transport interface {
	Send(ctx context.Context, n logic.Notification) error
}

// Config configures a Dispatcher.
type Config struct {
	// QueueSize is the number of pending notifications held before new ones
	// are dropped.
	QueueSize int
	// SendTimeout bounds each transport call.
	SendTimeout time.Duration
	// RatePerMinute caps transport calls; 0 disables the limit.
	RatePerMinute int
}

// Stats reports dispatcher activity since startup.
type Stats struct {
	Pending int
	Queued  uint64
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

// Dispatcher is a bounded FIFO with one consuming worker.
type Dispatcher struct {
	queue       chan logic.Notification
	transport   Transport
	limiter     *rate.Limiter
	sendTimeout time.Duration
	log         zerolog.Logger

	queued  atomic.Uint64
	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// New creates a Dispatcher forwarding to t. Call Run to start the worker.
func New(t Transport, cfg Config, log zerolog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}

	d := &Dispatcher{
		queue:       make(chan logic.Notification, cfg.QueueSize),
		transport:   t,
		sendTimeout: cfg.SendTimeout,
		log:         log.With().Str("component", "dispatch").Logger(),
	}
	if cfg.RatePerMinute > 0 {
		// Allow a short burst so an alert and its resolution are not held back.
		burst := cfg.RatePerMinute
		if burst > 5 {
			burst = 5
		}
		d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), burst)
	}
	return d
}

// Enqueue appends n to the queue without blocking. If the queue is full the
// notification is dropped, logged, and false is returned.
func (d *Dispatcher) Enqueue(n logic.Notification) bool {
	select {
	case d.queue <- n:
		d.queued.Add(1)
		return true
	default:
		d.dropped.Add(1)
		d.log.Warn().
			Str("subject", n.Subject).
			Int("capacity", cap(d.queue)).
			Msg("queue full, dropping notification")
		return false
	}
}

// Run forwards queued notifications until ctx is cancelled. Notifications
// still queued at that point are abandoned.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.send(ctx, n)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, n logic.Notification) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	err := d.transport.Send(sendCtx, n)
	cancel()

	if err != nil {
		// No retry: a silence that persists triggers the next alert anyway.
		d.failed.Add(1)
		d.log.Error().Err(err).Str("subject", n.Subject).Msg("send failed, notification discarded")
		return
	}
	d.sent.Add(1)
	d.log.Info().Str("subject", n.Subject).Msg("notification sent")
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Pending: len(d.queue),
		Queued:  d.queued.Load(),
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

// Multi sends each notification to every transport in order. A failing
// transport does not stop the others; their errors are joined.
type Multi []Transport

// Send implements Transport.
func (m Multi) Send(ctx context.Context, n logic.Notification) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards notifications.
type Nop struct{}

// Send implements Transport.
func (Nop) Send(context.Context, logic.Notification) error { return nil }
