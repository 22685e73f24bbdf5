package interfaces

import (
	"errors"
	"fmt"
	"time"
)

// IntegrityFault reports an internal consistency failure, such as two
// computations of the same digest disagreeing. It is always fatal and never
// retried; a component that detects one halts the operation.
type IntegrityFault struct {
	Op       string
	Expected string
	Actual   string
}

func (e *IntegrityFault) Error() string {
	return fmt.Sprintf("integrity fault in %s: expected %s, actual %s", e.Op, e.Expected, e.Actual)
}

// ValidationError reports input that failed validation: a bad signature, a
// digest mismatch, a malformed locator or report. It is terminal for the
// request and names the field that failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// TimeoutError reports that an operation ran out of its wall-clock budget.
// Distinct from transient retries: the individual calls may all have
// succeeded, the operation as a whole did not finish in time.
type TimeoutError struct {
	Op      string
	Ceiling time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not complete within %s", e.Op, e.Ceiling)
}

// QuorumUnreachableError reports that enough chains failed terminally that
// the required quorum can no longer be met however the remaining chains
// resolve. FailureReasons is keyed by chain ID.
type QuorumUnreachableError struct {
	Required       int
	Total          int
	Failed         int
	FailureReasons map[string]string
}

func (e *QuorumUnreachableError) Error() string {
	return fmt.Sprintf("quorum unreachable: %d of %d chains required, %d already failed", e.Required, e.Total, e.Failed)
}

// TransientNetworkError wraps a failure worth retrying, such as a timeout or
// a 5xx response. Retry logic absorbs these; they surface to callers only
// once retries exhaust.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return "transient network error: " + e.Err.Error()
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientNetworkError. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientNetworkError{Err: err}
}

// IsTransient reports whether any error in the chain is transient.
func IsTransient(err error) bool {
	var te *TransientNetworkError
	return errors.As(err, &te)
}
