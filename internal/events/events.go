// Package events carries front office domain events to a message broker
// after the state change they describe has committed.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	StudentRegistered    = "student.registered"
	PaymentRecorded      = "payment.recorded"
	EnquiryCreated       = "enquiry.created"
	EnquiryFollowupAdded = "enquiry.followup_added"
	VisitorLogged        = "visitor.logged"
	VisitorCheckedOut    = "visitor.checked_out"
)

type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(eventType, key string, payload any) Event {
	return Event{Type: eventType, Key: key, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Publisher interface for messaging (NATS/Kafka)
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Emit publishes e and only logs a failure. The operation that produced e
// has already committed, so a broker outage must not fail the request.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.ErrorContext(ctx, "failed to publish event", "type", e.Type, "key", e.Key, "error", err)
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Close() error { return nil }

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []string {
	recorded := r.Events()
	out := make([]string, 0, len(recorded))
	for _, e := range recorded {
		out = append(out, e.Type)
	}
	return out
}
