// Package notify relays the notification outbox to the message bus. State
// transitions write outbox rows in their own transaction; the relay publishes
// them afterwards and marks them delivered, so a bus outage delays delivery
// without failing a write.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"regtrack/internal/models"
)

// Publisher sends one encoded message to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Message is the wire form of a notification row.
type Message struct {
	ID        uint                    `json:"id"`
	TenantID  uint                    `json:"tenant_id"`
	Kind      models.NotificationKind `json:"kind"`
	Entity    string                  `json:"entity"`
	EntityID  uint                    `json:"entity_id"`
	Payload   map[string]any          `json:"payload,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

func messageFrom(n models.Notification) Message {
	return Message{
		ID:        n.ID,
		TenantID:  n.TenantID,
		Kind:      n.Kind,
		Entity:    n.Entity,
		EntityID:  n.EntityID,
		Payload:   n.Payload,
		CreatedAt: n.CreatedAt,
	}
}

// Subject is <prefix>.<tenant id>.<kind>, so subscribers can filter by tenant
// with a wildcard on the middle token.
func Subject(prefix string, tenantID uint, kind models.NotificationKind) string {
	return fmt.Sprintf("%s.%d.%s", prefix, tenantID, kind)
}

type NATSPublisher struct {
	nc *nats.Conn
}

// ConnectNATS dials the bus and keeps reconnecting in the background.
func ConnectNATS(url, name string, log *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error("nats error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.nc.Publish(subject, data)
}

// Close flushes buffered messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
