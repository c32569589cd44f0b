package contracts

import (
	"errors"
	"strings"
)

var (
	ErrRouteParse     = errors.New("route parse error")
	ErrUnknownSession = errors.New("unknown session")
	ErrUnknownAction  = errors.New("unknown action")
	ErrValidation     = errors.New("form validation failed")
	ErrHandler        = errors.New("action handler failed")
	ErrProtocol       = errors.New("structural protocol error")
)

const (
	ErrorCategoryRoute      = "route"
	ErrorCategorySession    = "session"
	ErrorCategoryAction     = "action"
	ErrorCategoryValidation = "validation"
	ErrorCategoryHandler    = "handler"
	ErrorCategoryProtocol   = "protocol"
	ErrorCategoryInternal   = "internal"
)

// CategorizedError pins an explicit category on an error that does not wrap
// one of the taxonomy sentinels.
type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	if e == nil || e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

func (e *CategorizedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ClientError carries a message meant for the remote caller. Handlers return
// it to report a failure without it being treated as an internal fault.
type ClientError struct {
	Message string
}

func NewClientError(message string) *ClientError {
	return &ClientError{Message: message}
}

func (e *ClientError) Error() string {
	return e.Message
}

func IsClientError(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr)
}

func normalizeErrorCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case ErrorCategoryRoute:
		return ErrorCategoryRoute
	case ErrorCategorySession:
		return ErrorCategorySession
	case ErrorCategoryAction:
		return ErrorCategoryAction
	case ErrorCategoryValidation:
		return ErrorCategoryValidation
	case ErrorCategoryHandler:
		return ErrorCategoryHandler
	case ErrorCategoryProtocol:
		return ErrorCategoryProtocol
	default:
		return ErrorCategoryInternal
	}
}

func WrapCategorizedError(category string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return &CategorizedError{
			Category: normalizeErrorCategory(existing.Category),
			Err:      existing.Err,
		}
	}
	return &CategorizedError{
		Category: normalizeErrorCategory(category),
		Err:      err,
	}
}

// ErrorCategory classifies err by the taxonomy sentinel it wraps, falling
// back to an explicit CategorizedError and then to internal. ErrHandler wins
// over any sentinel the application error carries inside it.
func ErrorCategory(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrHandler):
		return ErrorCategoryHandler
	case errors.Is(err, ErrRouteParse):
		return ErrorCategoryRoute
	case errors.Is(err, ErrUnknownSession):
		return ErrorCategorySession
	case errors.Is(err, ErrUnknownAction):
		return ErrorCategoryAction
	case errors.Is(err, ErrValidation):
		return ErrorCategoryValidation
	case errors.Is(err, ErrProtocol):
		return ErrorCategoryProtocol
	}
	var classified *CategorizedError
	if errors.As(err, &classified) {
		return normalizeErrorCategory(classified.Category)
	}
	return ErrorCategoryInternal
}
