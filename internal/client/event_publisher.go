package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/service"
)

// EventPublisher mirrors notification fan-outs onto NATS for downstream
// consumers (dashboards, audit).
//
// Subject convention: ordertracking.notifications.<category>
//
// All publish operations are non-fatal. Errors are logged but never
// propagated, so a bus outage never interrupts order operations.
type EventPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NewEventPublisher wraps an established NATS connection. A nil connection
// yields a publisher that silently drops events, which keeps wiring simple
// when NATS is not configured.
func NewEventPublisher(nc *nats.Conn, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{nc: nc, log: log.With().Str("component", "event_publisher").Logger()}
}

// Publish sends the fan-out event to the category's subject.
func (p *EventPublisher) Publish(ctx context.Context, category string, event service.FanoutEvent) {
	if p.nc == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("category", category).Msg("failed to marshal fan-out event")
		return
	}

	subject := fmt.Sprintf("ordertracking.notifications.%s", category)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Msg("failed to publish fan-out event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Int("recipients", len(event.Recipients)).
		Msg("fan-out event published")
}
