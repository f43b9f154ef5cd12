package orchestrators

import (
	"database/sql"
	"errors"
	"fmt"

	"newsroom/internal/adapters/storage"
)

var (
	// ErrUnauthorized is returned before any store access when the caller is
	// not an admin.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict marks a request that collides with existing state.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks a referenced entity that does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a bad or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StoreError wraps a failure of the underlying data store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// TransportError wraps an outbound email failure for one recipient.
type TransportError struct {
	Recipient string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Recipient, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DispatchError is returned when a dispatch ends FAILED. It carries the
// newsletter id so callers can report which letter was marked.
type DispatchError struct {
	NewsletterID string
	Err          error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch newsletter %s: %v", e.NewsletterID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error()}
}

func conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// notFoundOr maps sql.ErrNoRows to ErrNotFound and wraps anything else as a
// StoreError.
func notFoundOr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return storeErr(op, err)
}

// duplicateOr maps storage.ErrDuplicate to a conflict with msg.
func duplicateOr(op, msg string, err error) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return conflict(msg)
	}
	return storeErr(op, err)
}

// ConflictMessage extracts the human message from a conflict error.
func ConflictMessage(err error) string {
	msg := err.Error()
	prefix := ErrConflict.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
