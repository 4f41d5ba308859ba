package eventstore

import "fmt"

// UnavailableError wraps a failure to reach the backing store. It is the
// only failure Append can report besides field validation: telemetry loss
// without a signal would defeat observability, so it always propagates to
// the caller of the operation.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("event store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
