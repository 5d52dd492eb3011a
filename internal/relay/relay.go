// Package relay forwards committed ledger events to a message broker so
// downstream consumers (indexers, notification services) need not poll Redis.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dyluth/mural/internal/metrics"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/sirupsen/logrus"
)

// Publisher delivers one message to the broker under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
	Close() error
}

// Relay subscribes to ledger events and publishes each one.
type Relay struct {
	client  *ledger.Client
	pub     Publisher
	metrics *metrics.Metrics
	log     *logrus.Entry
	ready   chan struct{}
}

// New creates a relay. metrics may be nil.
func New(client *ledger.Client, pub Publisher, m *metrics.Metrics, logger *logrus.Logger) *Relay {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Relay{
		client:  client,
		pub:     pub,
		metrics: m,
		log: logger.WithFields(logrus.Fields{
			"component": "relay",
			"instance":  client.InstanceName(),
		}),
		ready: make(chan struct{}),
	}
}

// Ready is closed once the relay is subscribed and will see every later event.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run forwards events until ctx is cancelled. Publish failures are logged and
// counted, never fatal: the ledger remains the source of truth.
func (r *Relay) Run(ctx context.Context) error {
	subscription, err := r.client.SubscribeEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to ledger events: %w", err)
	}
	defer subscription.Close()

	r.log.WithField("event_type", "relay_started").Info("subscribed to ledger events")
	close(r.ready)

	for {
		select {
		case <-ctx.Done():
			r.log.WithField("event_type", "relay_stopped").Info("shutting down")
			return nil

		case ev, ok := <-subscription.Events():
			if !ok {
				r.log.WithField("event_type", "relay_stopped").Info("subscription closed")
				return nil
			}
			r.forward(ctx, ev)

		case err, ok := <-subscription.Errors():
			if !ok {
				return nil
			}
			// Malformed payloads are skipped
			r.log.WithError(err).Warn("subscription error")
		}
	}
}

func (r *Relay) forward(ctx context.Context, ev *ledger.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		r.log.WithError(err).WithField("event_id", ev.ID).Error("failed to marshal event")
		r.metrics.RecordRelay(string(ev.Kind), false)
		return
	}

	if err := r.pub.Publish(ctx, RoutingKey(ev), ev.ID, body); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"event_id": ev.ID,
			"kind":     ev.Kind,
		}).Error("failed to publish event")
		r.metrics.RecordRelay(string(ev.Kind), false)
		return
	}

	r.log.WithFields(logrus.Fields{
		"event_type": "event_relayed",
		"event_id":   ev.ID,
		"kind":       ev.Kind,
		"subject":    ev.Subject.Short(),
	}).Debug("event relayed")
	r.metrics.RecordRelay(string(ev.Kind), true)
}

// RoutingKey is the topic routing key of an event: its kind.
func RoutingKey(ev *ledger.Event) string {
	return string(ev.Kind)
}
