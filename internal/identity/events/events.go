// Package events publishes account lifecycle events for other services.
package events

import (
	"context"
	"time"
)

// Event types, used as the AMQP routing key.
const (
	UserRegistered      = "user.registered"
	UserPasswordChanged = "user.password_changed"
	SessionRevoked      = "session.revoked"
)

type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	ch chan Event
}

func NewRecorder(buffer int) *Recorder {
	return &Recorder{ch: make(chan Event, buffer)}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	select {
	case r.ch <- e:
	default:
	}
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events drains what has been recorded so far.
func (r *Recorder) Events() []Event {
	var out []Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
