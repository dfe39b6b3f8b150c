// Package errs defines the typed error taxonomy returned by the core: all
// domain errors are surfaced to the caller, never swallowed.
package errs

import "fmt"

// ValidationError reports a malformed or incomplete submission. Nothing is
// persisted when it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// InvalidStateError reports an illegal status transition attempt. No state is
// mutated when it is returned.
type InvalidStateError struct {
	BatchID string
	Status  string
	Msg     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("batch %s in state %s: %s", e.BatchID, e.Status, e.Msg)
}

func InvalidState(batchID, status, msg string) error {
	return &InvalidStateError{BatchID: batchID, Status: status, Msg: msg}
}

// PersistenceError wraps a storage layer failure during a multi-step write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
