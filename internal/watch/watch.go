// Package watch follows ledger activity: a filtered live event feed and a
// polling helper for waiting on record state.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/mural/internal/filter"
	"github.com/dyluth/mural/internal/inspect"
	"github.com/dyluth/mural/pkg/ledger"
)

// DefaultPollInterval is the interval PollUntil uses when given zero.
const DefaultPollInterval = 200 * time.Millisecond

// ErrTimeout is returned by PollUntil when the condition never held.
var ErrTimeout = errors.New("timed out waiting for condition")

// Feed is a live, filtered subscription to ledger events.
type Feed struct {
	sub      *ledger.Subscription
	errs     <-chan error
	criteria *filter.Criteria
}

// Subscribe starts a feed. Every event committed after it returns is seen,
// subject to Redis Pub/Sub's at-most-once delivery.
func Subscribe(ctx context.Context, client *ledger.Client, criteria *filter.Criteria) (*Feed, error) {
	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kind filter: %w", err)
	}
	sub, err := client.SubscribeEvents(ctx)
	if err != nil {
		return nil, err
	}
	return &Feed{sub: sub, errs: sub.Errors(), criteria: criteria}, nil
}

// Next blocks until the next matching event. It returns io.EOF once every
// buffered event has been delivered after the subscription closes, and
// ctx.Err() when ctx is cancelled.
func (f *Feed) Next(ctx context.Context) (*ledger.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case ev, ok := <-f.sub.Events():
			if !ok {
				return nil, io.EOF
			}
			if f.criteria.Matches(ev) {
				return ev, nil
			}

		case _, ok := <-f.errs:
			// Malformed payloads are skipped; only Events closing ends the feed.
			if !ok {
				f.errs = nil
			}
		}
	}
}

// Close stops the feed.
func (f *Feed) Close() error {
	return f.sub.Close()
}

// Stream writes matching events to w until ctx is cancelled or the feed closes.
func Stream(ctx context.Context, f *Feed, format inspect.OutputFormat, w io.Writer) error {
	for {
		ev, err := f.Next(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}

		if format == inspect.OutputFormatJSONL {
			if err := inspect.FormatJSONL(w, []*ledger.Event{ev}); err != nil {
				return err
			}
			continue
		}
		inspect.FormatEvent(w, ev)
	}
}

// PollUntil calls check every interval until it reports true, returns an
// error, or timeout elapses.
func PollUntil(ctx context.Context, interval, timeout time.Duration, check func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timeoutCh:
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)

		case <-ticker.C:
			done, err := check(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}
