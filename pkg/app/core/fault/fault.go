// Package fault classifies failures of dex operations.
//
// Three classes exist:
//   - validation: bad caller input or missing authority, rejected before any mutation
//   - invariant: a computation produced an impossible state, the whole call is aborted
//   - no progress: a matching round executed zero trades
package fault

import (
	"github.com/cockroachdb/errors"
)

// ErrValidation marks errors caused by caller input.
var ErrValidation = errors.New("validation fault")

// ErrNothingMatched is returned when a run-match call executes zero trades.
var ErrNothingMatched = errors.New("no matching orders")

// Validationf returns a formatted error marked as a validation fault.
func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// Invariantf returns an assertion failure. It carries a stack trace.
func Invariantf(format string, args ...interface{}) error {
	return errors.AssertionFailedf(format, args...)
}

// IsValidation reports whether err was caused by caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvariant reports whether err signals a broken invariant.
func IsInvariant(err error) bool {
	return errors.HasAssertionFailure(err)
}

// IsNothingMatched reports whether err is the no-progress fault.
func IsNothingMatched(err error) bool {
	return errors.Is(err, ErrNothingMatched)
}

// Recover converts a panic raised by an invariant check into an error.
// Use as: defer fault.Recover(&err)
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok && errors.HasAssertionFailure(e) {
		*errp = e
		return
	}
	panic(r)
}
