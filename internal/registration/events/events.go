// Package events publishes registration lifecycle events. Emission is
// fire-and-forget: a lost event never fails the operation that produced it,
// so delivery runs through a buffered channel drained by a background worker.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "registrar/pkg/domain"
)

// Kind names one lifecycle event.
type Kind string

const (
	KindSessionInitiated     Kind = "session_initiated"
	KindVerificationResent   Kind = "verification_resent"
	KindEmailVerified        Kind = "email_verified"
	KindApprovalRequested    Kind = "approval_requested"
	KindRegistrationApproved Kind = "registration_approved"
	KindRegistrationRejected Kind = "registration_rejected"
	KindEntityCreated        Kind = "entity_created"
	KindEntityFailed         Kind = "entity_creation_failed"
	KindRegistrationComplete Kind = "registration_completed"
	KindRegistrationFailed   Kind = "registration_failed"
)

// Event is one registration lifecycle occurrence.
type Event struct {
	Kind      Kind              `json:"kind"`
	SessionID id.SessionID      `json:"session_id"`
	OrgID     id.OrgID          `json:"org_id,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// Sink delivers events to their destination (broker, log, test capture).
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Emitter is what producing code sees: emission only, no delivery concerns.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

var (
	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_events_dropped_total",
		Help: "Lifecycle events dropped because the event inbox was full.",
	})
	publishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrar_events_publish_failures_total",
		Help: "Lifecycle events that could not be delivered to the sink.",
	})
)

// Bus decouples producers from the sink through a bounded inbox. When the
// inbox is full the event is dropped and counted; producers never block on a
// slow broker.
type Bus struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewBus creates a bus with the given inbox capacity.
func NewBus(capacity int, logger *slog.Logger) *Bus {
	return &Bus{
		inbox:  make(chan Event, capacity),
		logger: logger,
	}
}

// Emit queues the event, stamping the timestamp if unset. Never blocks.
func (b *Bus) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.inbox <- event:
	default:
		droppedEvents.Inc()
		b.logger.WarnContext(ctx, "event inbox full, dropping event",
			"kind", event.Kind, "session_id", event.SessionID)
	}
}

// Inbox exposes the consuming side for the worker.
func (b *Bus) Inbox() <-chan Event { return b.inbox }

// Worker drains a bus inbox into a sink. Delivery failures are logged and
// skipped; lifecycle events are advisory and must not wedge the queue.
type Worker struct {
	inbox  <-chan Event
	sink   Sink
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{inbox: inbox, sink: sink, logger: logger}
}

// Run consumes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				publishFailures.Inc()
				w.logger.ErrorContext(ctx, "event publish failed",
					"kind", event.Kind, "session_id", event.SessionID, "error", err)
			}
		}
	}
}

// NopEmitter drops everything. Used where event wiring is optional.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}
