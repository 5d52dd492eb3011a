// Package filter selects ledger events for the activity feed.
package filter

import (
	"path/filepath"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
)

// Criteria defines filtering criteria for ledger events.
// All filters are ANDed together - an event must match ALL criteria to pass.
type Criteria struct {
	Season   *address.Address // Exact match on the event's season, nil = no filter
	Region   *address.Address // Exact match on the event's region, nil = no filter
	Actor    *address.Address // Exact match on the acting identity, nil = no filter
	KindGlob string           // Glob pattern for event kind ("region_*"), empty = no filter
}

// Matches returns true if the event matches all filter criteria.
func (c *Criteria) Matches(ev *ledger.Event) bool {
	if c == nil {
		return true
	}

	if c.Season != nil && (ev.Season == nil || *ev.Season != *c.Season) {
		return false
	}
	if c.Region != nil && (ev.Region == nil || *ev.Region != *c.Region) {
		return false
	}
	if c.Actor != nil && ev.Actor != *c.Actor {
		return false
	}

	if c.KindGlob != "" {
		matched, err := filepath.Match(c.KindGlob, string(ev.Kind))
		if err != nil || !matched {
			return false
		}
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c != nil && (c.Season != nil || c.Region != nil || c.Actor != nil || c.KindGlob != "")
}

// Validate checks the kind pattern is a well-formed glob.
func (c *Criteria) Validate() error {
	if c == nil || c.KindGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.KindGlob, "")
	return err
}
