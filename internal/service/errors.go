package service

import (
	"errors"
	"fmt"
)

// TransientError wraps infrastructure failures (store unreachable, lost
// transaction) so the trigger can tell them apart from business outcomes.
// Transient errors escape the invocation; the delivery mechanism re-attempts
// the whole reconciliation, which is safe under the idempotency guards.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err should be retried by redelivery.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
