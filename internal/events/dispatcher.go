// Package events delivers thread lifecycle notifications to interested
// sinks without blocking the request path.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/portside-labs/portside/internal/domain"
)

// Sink receives dispatched events. Implementations must tolerate
// duplicate delivery and should not block for long.
type Sink interface {
	Deliver(ctx context.Context, event domain.ThreadEvent)
}

// Dispatcher fans events out to sinks from a single background
// goroutine. Emit never blocks: when the buffer is full the event is
// dropped and a warning is logged.
type Dispatcher struct {
	ch     chan domain.ThreadEvent
	sinks  []Sink
	logger zerolog.Logger

	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
	done     chan struct{}
}

func NewDispatcher(bufferSize int, logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Dispatcher{
		ch:     make(chan domain.ThreadEvent, bufferSize),
		sinks:  sinks,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the delivery loop. It returns once the loop is
// running; call Stop to drain and shut down.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for event := range d.ch {
		for _, sink := range d.sinks {
			sink.Deliver(ctx, event)
		}
	}
}

// Emit queues an event for delivery. It is safe to call from any
// goroutine and never blocks the caller. Requests still in flight
// during shutdown may land here after Stop; those events are dropped,
// not panicked on.
func (d *Dispatcher) Emit(event domain.ThreadEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.logger.Warn().
			Str("event_type", string(event.Type)).
			Str("order_number", event.OrderNumber).
			Msg("dispatcher stopped, dropping event")
		return
	}
	select {
	case d.ch <- event:
	default:
		d.logger.Warn().
			Str("event_type", string(event.Type)).
			Str("order_number", event.OrderNumber).
			Msg("event buffer full, dropping event")
	}
}

// Stop closes the intake channel and waits for queued events to drain.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.ch)
	})
	<-d.done
}

// LogSink writes every event to the structured log. It is always
// registered so thread transitions are observable without a webhook.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(_ context.Context, event domain.ThreadEvent) {
	evt := s.logger.Info().
		Str("event_type", string(event.Type)).
		Str("order_number", event.OrderNumber).
		Time("occurred_at", event.OccurredAt)
	if event.ConversationID != "" {
		evt = evt.Str("conversation_id", event.ConversationID)
	}
	if event.Confidence != nil {
		evt = evt.Float64("confidence", *event.Confidence)
	}
	if event.Actor != "" {
		evt = evt.Str("actor", event.Actor)
	}
	evt.Msg("thread event")
}
