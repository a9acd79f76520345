// Package events publishes run outcomes to a message bus.
package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Event types.
const (
	TypeRunCompleted = "run.completed"
	TypeRunFailed    = "run.failed"
)

// Event is the envelope published for every finished test run.
type Event struct {
	EventID   string    `json:"event_id"`
	Source    string    `json:"source"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// Payload summarizes one run.
type Payload struct {
	RunID       string `json:"run_id"`
	Language    string `json:"language"`
	Version     string `json:"version,omitempty"`
	TestsTotal  int    `json:"tests_total"`
	TestsPassed int    `json:"tests_passed"`
	Error       string `json:"error,omitempty"`
}

// NewEventID generates a compact unique event id with a date prefix.
func NewEventID(prefix string, t time.Time) string {
	// 8 random bytes -> 16 hex chars
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + t.UTC().Format("20060102") + "_" + hex.EncodeToString(b)
}

// Valid checks required fields.
func (e *Event) Valid() bool {
	return e.EventID != "" && e.Source != "" && e.Type != "" && !e.Timestamp.IsZero()
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}
