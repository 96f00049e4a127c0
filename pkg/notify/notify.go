// Package notify publishes the completion signal of a liveness session to
// interested parties outside the process.
package notify

import (
	"context"
	"time"

	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
)

// Event is the payload of a completion signal.
type Event struct {
	SessionID string             `json:"session_id"`
	Passed    bool               `json:"passed"`
	Message   string             `json:"message"`
	Gestures  []liveness.Gesture `json:"gestures"`
	Progress  float64            `json:"progress"`
	Timestamp time.Time          `json:"timestamp"`
}

// Notifier delivers completion signals.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, ev Event) error

// Publish calls f.
func (f Func) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Close does nothing.
func (f Func) Close() error { return nil }
