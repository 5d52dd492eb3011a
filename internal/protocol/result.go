package protocol

import (
	"github.com/dyluth/mural/pkg/address"
)

// Result is the tagged outcome of one operation: either Ok with the address of
// the primary record touched, or Err with a protocol error. Operations never
// return full records; callers re-read by address.
type Result struct {
	OK      bool             `json:"ok"`
	Address *address.Address `json:"address,omitempty"`
	Err     *Error           `json:"error,omitempty"`
}

// Ok builds a successful result.
func Ok(a address.Address) Result {
	return Result{OK: true, Address: &a}
}

// Err builds a failed result.
func Err(e *Error) Result {
	return Result{OK: false, Err: e}
}

// ResultOf converts an operation's (address, error) pair into a Result.
// Non-protocol errors become KindInternal results.
func ResultOf(a address.Address, err error) Result {
	if err == nil {
		return Ok(a)
	}
	if pe, ok := AsError(err); ok {
		return Err(pe)
	}
	return Err(&Error{Kind: KindInternal, Code: CodeInternal, Message: err.Error()})
}

// Unwrap returns the result as a Go (address, error) pair.
func (r Result) Unwrap() (address.Address, error) {
	if r.OK {
		if r.Address == nil {
			return address.Zero, nil
		}
		return *r.Address, nil
	}
	if r.Err == nil {
		return address.Zero, &Error{Kind: KindInternal, Code: CodeInternal, Message: "failed result without error"}
	}
	return address.Zero, r.Err
}
