// Package protocol implements the mural funding protocol: seasons, region
// funding, artist bids, contributor voting, finalization and payout.
//
// Every operation runs as a single ledger transaction. Validation and phase
// checks happen before anything is buffered, and any error leaves the ledger
// untouched.
package protocol

import (
	"context"
	"errors"
	"time"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
	"github.com/sirupsen/logrus"
)

// Engine executes protocol operations against a ledger.
type Engine struct {
	ledger *ledger.Client
	clock  Clock
	log    *logrus.Entry
}

// NewEngine creates an engine. A nil clock uses the wall clock; a nil logger
// uses the logrus standard logger.
func NewEngine(client *ledger.Client, clock Clock, logger *logrus.Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		ledger: client,
		clock:  clock,
		log:    logger.WithField("component", "protocol"),
	}
}

// Ledger returns the underlying ledger client for read paths.
func (e *Engine) Ledger() *ledger.Client {
	return e.ledger
}

// Now returns the engine's notion of the current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// PhaseOf evaluates the current phase of a season.
func (e *Engine) PhaseOf(s *ledger.Season) phase.Phase {
	return phase.Evaluate(s.Schedule(), e.clock.Now())
}

// run executes fn in a ledger transaction and logs the outcome.
func (e *Engine) run(ctx context.Context, op string, fields logrus.Fields, fn func(tx *ledger.Tx) (address.Address, error)) (address.Address, error) {
	start := time.Now()
	var result address.Address

	err := e.ledger.Update(ctx, func(tx *ledger.Tx) error {
		addr, err := fn(tx)
		if err != nil {
			return err
		}
		result = addr
		return nil
	})

	entry := e.log.WithFields(fields).WithField("event_type", op).WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		err = fromLedger(err)
		if pe, ok := AsError(err); ok {
			entry.WithField("code", pe.Code).WithField("kind", pe.Kind).Debug("operation rejected")
			return address.Zero, err
		}
		entry.WithError(err).Error("operation failed")
		return address.Zero, err
	}

	entry.WithField("address", result.Short()).Info("operation committed")
	return result, nil
}

// loadSeason reads a season inside tx, mapping absence to SeasonNotFound.
func loadSeason(tx *ledger.Tx, addr address.Address) (*ledger.Season, error) {
	s, err := tx.Season(addr)
	if ledger.IsNotFound(err) {
		return nil, newError(CodeSeasonNotFound, "season %s does not exist", addr.Short())
	}
	return s, err
}

// loadRegion reads a region inside tx and checks it belongs to season.
func loadRegion(tx *ledger.Tx, season, addr address.Address) (*ledger.Region, error) {
	r, err := tx.Region(addr)
	if ledger.IsNotFound(err) {
		return nil, newError(CodeRegionNotFound, "region %s has not been funded", addr.Short())
	}
	if err != nil {
		return nil, err
	}
	if r.Season != season {
		return nil, newError(CodeRegionNotFound, "region %s does not belong to season %s", addr.Short(), season.Short())
	}
	return r, nil
}

func (e *Engine) requirePhase(s *ledger.Season, want phase.Phase) error {
	if got := e.PhaseOf(s); got != want {
		return newError(CodeWrongPhase, "season %s is in %s phase, operation requires %s", s.Address.Short(), got, want)
	}
	return nil
}

func requireIdentity(field string, a address.Address) error {
	if a.IsZero() {
		return newError(CodeInvalidIdentity, "%s must be a non-zero public key", field)
	}
	return nil
}

func addChecked(a, b uint64, what string) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, newError(CodeOverflow, "%s would exceed 64 bits", what)
	}
	return a + b, nil
}

func ptr[T any](v T) *T { return &v }

// IsNotFound reports whether err means a record is absent, at either the
// protocol or ledger level.
func IsNotFound(err error) bool {
	if ledger.IsNotFound(err) {
		return true
	}
	return errors.Is(err, ErrSeasonNotFound) || errors.Is(err, ErrRegionNotFound) || errors.Is(err, ErrBidNotFound)
}
