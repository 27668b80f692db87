package dpor

import (
	"errors"
	"fmt"

	"github.com/concheck/sct/conc"
)

// Failure wraps one execution's terminal tier-1/2/3 classification
// (§7) as a Go error, so callers that just want err != nil get sane
// behavior while still being able to unwrap down to the underlying
// conc.FailureKind and cause.
type Failure struct {
	Kind  conc.FailureKind
	Cause error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
	}
	return f.Kind.String()
}

func (f *Failure) Unwrap() error { return f.Cause }

func newFailure(kind conc.FailureKind, cause error) *Failure {
	if kind == conc.FailureNone {
		return nil
	}
	return &Failure{Kind: kind, Cause: cause}
}

// AsFailure unwraps err down to a *Failure, mirroring the standard
// library's errors.As so callers can branch on Kind without a type
// switch of their own.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
