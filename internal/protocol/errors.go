package protocol

import (
	"errors"
	"fmt"

	"github.com/dyluth/mural/pkg/ledger"
)

// Kind classifies protocol errors by how a caller can recover from them.
type Kind string

const (
	// KindValidation is malformed input; fix the input and resubmit.
	KindValidation Kind = "validation"
	// KindPhase is an operation outside its phase; wait for the right phase.
	KindPhase Kind = "phase"
	// KindConflict is a state conflict (duplicate, already voted, not found); choose a different action.
	KindConflict Kind = "conflict"
	// KindResource is an insufficient balance or arithmetic limit.
	KindResource Kind = "resource"
	// KindBusy is a transient loss to concurrent writers; resubmit the same call.
	KindBusy Kind = "busy"
	// KindInternal is an infrastructure failure (store unreachable, corrupt record).
	KindInternal Kind = "internal"
)

// Code identifies a specific protocol error.
type Code string

const (
	CodeInvalidTitle       Code = "InvalidTitle"
	CodeInvalidDescription Code = "InvalidDescription"
	CodeInvalidURI         Code = "InvalidURI"
	CodeInvalidTimestamp   Code = "InvalidTimestamp"
	CodeInvalidRegion      Code = "InvalidRegion"
	CodeInvalidAmount      Code = "InvalidAmount"
	CodeInvalidIdentity    Code = "InvalidIdentity"
	CodeInvalidRequest     Code = "InvalidRequest"
	CodeWrongPhase         Code = "WrongPhase"
	CodeAlreadyExists      Code = "AlreadyExists"
	CodeDuplicateBid       Code = "DuplicateBid"
	CodeAlreadyVoted       Code = "AlreadyVoted"
	CodeNoContribution     Code = "NoContribution"
	CodeBidNotFound        Code = "BidNotFound"
	CodeSeasonNotFound     Code = "SeasonNotFound"
	CodeRegionNotFound     Code = "RegionNotFound"
	CodeNotWinner          Code = "NotWinner"
	CodeAlreadyPainted     Code = "AlreadyPainted"
	CodeNotAuthority       Code = "NotAuthority"
	CodeInsufficientFunds  Code = "InsufficientFunds"
	CodeOverflow           Code = "Overflow"
	CodeContention         Code = "Contention"
	CodeInternal           Code = "Internal"
)

var codeKinds = map[Code]Kind{
	CodeInvalidTitle:       KindValidation,
	CodeInvalidDescription: KindValidation,
	CodeInvalidURI:         KindValidation,
	CodeInvalidTimestamp:   KindValidation,
	CodeInvalidRegion:      KindValidation,
	CodeInvalidAmount:      KindValidation,
	CodeInvalidIdentity:    KindValidation,
	CodeInvalidRequest:     KindValidation,
	CodeWrongPhase:         KindPhase,
	CodeAlreadyExists:      KindConflict,
	CodeDuplicateBid:       KindConflict,
	CodeAlreadyVoted:       KindConflict,
	CodeNoContribution:     KindConflict,
	CodeBidNotFound:        KindConflict,
	CodeSeasonNotFound:     KindConflict,
	CodeRegionNotFound:     KindConflict,
	CodeNotWinner:          KindConflict,
	CodeAlreadyPainted:     KindConflict,
	CodeNotAuthority:       KindConflict,
	CodeInsufficientFunds:  KindResource,
	CodeOverflow:           KindResource,
	CodeContention:         KindBusy,
	CodeInternal:           KindInternal,
}

// Kind returns the kind a code belongs to.
func (c Code) Kind() Kind {
	if k, ok := codeKinds[c]; ok {
		return k
	}
	return KindInternal
}

// Error is the single error type returned across the protocol boundary.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so sentinels work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func sentinel(code Code) *Error {
	return &Error{Kind: code.Kind(), Code: code}
}

// Sentinels for errors.Is.
var (
	ErrInvalidTitle       = sentinel(CodeInvalidTitle)
	ErrInvalidDescription = sentinel(CodeInvalidDescription)
	ErrInvalidURI         = sentinel(CodeInvalidURI)
	ErrInvalidTimestamp   = sentinel(CodeInvalidTimestamp)
	ErrInvalidRegion      = sentinel(CodeInvalidRegion)
	ErrInvalidAmount      = sentinel(CodeInvalidAmount)
	ErrInvalidIdentity    = sentinel(CodeInvalidIdentity)
	ErrInvalidRequest     = sentinel(CodeInvalidRequest)
	ErrWrongPhase         = sentinel(CodeWrongPhase)
	ErrAlreadyExists      = sentinel(CodeAlreadyExists)
	ErrDuplicateBid       = sentinel(CodeDuplicateBid)
	ErrAlreadyVoted       = sentinel(CodeAlreadyVoted)
	ErrNoContribution     = sentinel(CodeNoContribution)
	ErrBidNotFound        = sentinel(CodeBidNotFound)
	ErrSeasonNotFound     = sentinel(CodeSeasonNotFound)
	ErrRegionNotFound     = sentinel(CodeRegionNotFound)
	ErrNotWinner          = sentinel(CodeNotWinner)
	ErrAlreadyPainted     = sentinel(CodeAlreadyPainted)
	ErrNotAuthority       = sentinel(CodeNotAuthority)
	ErrInsufficientFunds  = sentinel(CodeInsufficientFunds)
	ErrOverflow           = sentinel(CodeOverflow)
	ErrContention         = sentinel(CodeContention)
)

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: code.Kind(), Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a protocol error from err.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for non-protocol errors.
func KindOf(err error) Kind {
	if pe, ok := AsError(err); ok {
		return pe.Kind
	}
	return KindInternal
}

// IsExpected reports whether err is an ordinary outcome a client should present
// to the user rather than retry: wrong phase, already voted, or duplicate bid.
func IsExpected(err error) bool {
	return errors.Is(err, ErrWrongPhase) || errors.Is(err, ErrAlreadyVoted) || errors.Is(err, ErrDuplicateBid)
}

// fromLedger maps ledger-level failures onto protocol errors; anything else is
// passed through for the caller to treat as internal.
func fromLedger(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return newError(CodeInsufficientFunds, "%v", err)
	case errors.Is(err, ledger.ErrOverflow):
		return newError(CodeOverflow, "%v", err)
	case errors.Is(err, ledger.ErrContention):
		return newError(CodeContention, "%v", err)
	default:
		return err
	}
}
