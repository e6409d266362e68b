package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"regtrack/internal/metrics"
	"regtrack/internal/models"
)

// Outbox is the part of the service the relay drives.
type Outbox interface {
	PendingNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	MarkNotificationDelivered(ctx context.Context, id uint) error
	SweepOverdueTasks(ctx context.Context) (int, error)
}

type Relay struct {
	outbox   Outbox
	pub      Publisher
	prefix   string
	interval time.Duration
	batch    int
	log      *zap.Logger
	metrics  *metrics.Metrics
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithLogger(l *zap.Logger) RelayOption {
	return func(r *Relay) { r.log = l }
}

func WithMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func NewRelay(outbox Outbox, pub Publisher, prefix string, opts ...RelayOption) *Relay {
	r := &Relay{
		outbox:   outbox,
		pub:      pub,
		prefix:   prefix,
		interval: 10 * time.Second,
		batch:    100,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RelayOnce publishes one batch of pending rows and returns how many were
// delivered. A row whose publish fails stays pending for the next pass.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.outbox.PendingNotifications(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, n := range pending {
		data, err := json.Marshal(messageFrom(n))
		if err != nil {
			r.metrics.IncrementPublished(string(n.Kind), "encode_error")
			r.log.Error("encode notification", zap.Uint("notification_id", n.ID), zap.Error(err))
			continue
		}
		subject := Subject(r.prefix, n.TenantID, n.Kind)
		if err := r.pub.Publish(ctx, subject, data); err != nil {
			r.metrics.IncrementPublished(string(n.Kind), "publish_error")
			r.log.Warn("publish notification",
				zap.Uint("notification_id", n.ID),
				zap.String("subject", subject),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				return delivered, ctx.Err()
			}
			continue
		}
		if err := r.outbox.MarkNotificationDelivered(ctx, n.ID); err != nil {
			// published but not marked: the row goes out again next pass
			return delivered, err
		}
		r.metrics.IncrementPublished(string(n.Kind), "ok")
		delivered++
	}
	return delivered, nil
}

// Run sweeps overdue tasks and relays the outbox on every tick until ctx is
// cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("notification relay started", zap.Duration("interval", r.interval), zap.String("prefix", r.prefix))
	for {
		r.tick(ctx)
		select {
		case <-ctx.Done():
			r.log.Info("notification relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	flagged, err := r.outbox.SweepOverdueTasks(ctx)
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		r.log.Error("overdue sweep failed", zap.Error(err))
	case flagged > 0:
		r.log.Info("overdue tasks flagged", zap.Int("count", flagged))
	}

	delivered, err := r.RelayOnce(ctx)
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		r.log.Error("relay pass failed", zap.Error(err))
	case delivered > 0:
		r.log.Debug("notifications delivered", zap.Int("count", delivered))
	}
}
