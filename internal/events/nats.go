package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "gauntlet.runs"

var ErrInvalidEvent = errors.New("invalid event: missing required fields")

// NATSPublisher publishes events on a NATS core subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NATSConfig selects the server and subject.
type NATSConfig struct {
	URL     string
	Subject string
}

// NewNATSPublisher connects to NATS. The connection reconnects forever.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("gauntlet"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, evt Event) error {
	data, err := Encode(evt)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// Encode validates evt and marshals it to JSON.
func Encode(evt Event) ([]byte, error) {
	if !evt.Valid() {
		return nil, ErrInvalidEvent
	}
	return json.Marshal(evt)
}
