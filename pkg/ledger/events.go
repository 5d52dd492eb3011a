package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dyluth/mural/pkg/address"
)

// EventKind names the operation that produced a ledger event.
type EventKind string

const (
	EventSeasonCreated   EventKind = "season_created"
	EventRegionFunded    EventKind = "region_funded"
	EventBidSubmitted    EventKind = "bid_submitted"
	EventVoteCast        EventKind = "vote_cast"
	EventRegionFinalized EventKind = "region_finalized"
	EventRegionPainted   EventKind = "region_painted"
	EventSeasonFinalized EventKind = "season_finalized"
	EventAccountCredited EventKind = "account_credited"
)

// Event is published once per committed mutation, inside the same transaction.
// Subject is the primary record touched (contribution, bid, region or season).
type Event struct {
	ID          string           `json:"id"` // UUID
	Kind        EventKind        `json:"kind"`
	Season      *address.Address `json:"season,omitempty"`
	Region      *address.Address `json:"region,omitempty"`
	Subject     address.Address  `json:"subject"`
	Actor       address.Address  `json:"actor"`
	Amount      uint64           `json:"amount,omitempty"`
	X           *uint8           `json:"x,omitempty"`
	Y           *uint8           `json:"y,omitempty"`
	Message     string           `json:"message,omitempty"`
	CreatedAtMs int64            `json:"created_at_ms"`
}

// Subscription represents an active Pub/Sub subscription to ledger events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of ledger events.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors (malformed payloads).
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to committed ledger events for this instance.
//
// Events are delivered on a buffered channel (size 64). Redis Pub/Sub is
// at-most-once: a subscriber that falls behind may miss events and should re-read
// records by address to resynchronise.
func (c *Client) SubscribeEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel(c.instanceName))

	// Wait for the subscription confirmation so no event published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to ledger events: %w", err)
	}

	eventsChan := make(chan *Event, 64)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(errorsChan)
		defer close(eventsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal ledger event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
