package remoteui

import (
	"fmt"

	"remote-ui/go-backend/internal/domains/contracts"
)

// UnknownSessionError is returned for operations on a session id that is not
// open. Clients are expected to re-open the session.
type UnknownSessionError struct {
	SessionID string
}

func (e *UnknownSessionError) Error() string {
	return fmt.Sprintf("session %q not found", e.SessionID)
}

func (e *UnknownSessionError) Unwrap() error {
	return contracts.ErrUnknownSession
}

// UnknownActionError means the action id decoded fine but names nothing the
// controller declares, usually because the client holds a stale render tree.
type UnknownActionError struct {
	ActionID string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("invalid action %q", e.ActionID)
}

func (e *UnknownActionError) Unwrap() error {
	return contracts.ErrUnknownAction
}

// ValidationError reports a form payload that does not fit the form type.
type ValidationError struct {
	Form string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form %q: %v", e.Form, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{contracts.ErrValidation, e.Err}
}

// HandlerError wraps a failure raised by application code: an action
// callback, a render function or a default factory.
type HandlerError struct {
	Operation string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *HandlerError) Unwrap() []error {
	return []error{contracts.ErrHandler, e.Err}
}

func protocolError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", contracts.ErrProtocol, fmt.Sprintf(format, args...))
}

// guard runs fn and turns a panic into a HandlerError.
func guard(operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{Operation: operation, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		return &HandlerError{Operation: operation, Err: err}
	}
	return nil
}
