package chat

import (
	"errors"
	"fmt"
	"strings"

	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/store"
)

// ValidationError rejects a request before any store call is made.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chat: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DispatchError reports a store rejecting a new message.
type DispatchError struct {
	Code    store.Code
	Message string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("chat: send failed (code: %s): %s", e.Code, e.Message)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func newDispatchError(err error) *DispatchError {
	msg := err.Error()
	var se *store.Error
	if errors.As(err, &se) && se.Message != "" {
		msg = se.Message
	}
	return &DispatchError{Code: store.CodeOf(err), Message: msg, Err: err}
}

// SubscriptionError reports a live feed that stopped delivering. The affected view stays
// stale until it is subscribed again.
type SubscriptionError struct {
	Query store.Query
	Err   error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("chat: subscription %s: %v", e.Query, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// DeleteFailure is one message that could not be removed.
type DeleteFailure struct {
	MessageID string
	Err       error
}

// PartialDeleteError reports a conversation erase that removed fewer messages than it found.
type PartialDeleteError struct {
	Key      conversation.Key
	Expected int
	Deleted  int
	Failures []DeleteFailure
}

func (e *PartialDeleteError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.MessageID)
	}
	return fmt.Sprintf("chat: conversation %s partially deleted: %d of %d removed (failed: %s)",
		e.Key, e.Deleted, e.Expected, strings.Join(ids, ","))
}

// Unwrap exposes the individual delete errors.
func (e *PartialDeleteError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}
