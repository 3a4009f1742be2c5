package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies errors so callers can decide on retry and visibility without
// inspecting codes.
type Kind string

const (
	KindInput        Kind = "input"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindTransient    Kind = "transient"
	KindInternal     Kind = "internal"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"-"`
	Kind    Kind              `json:"kind"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned errors still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, kind Kind, message string) *Error {
	return &Error{Code: code, Status: status, Kind: kind, Message: message}
}

// Wrap attaches context to an existing error, keeping the code, status and kind of base.
func Wrap(err error, base *Error, message string) *Error {
	if base == nil {
		base = ErrInternal
	}
	if message == "" {
		message = base.Message
	}
	return &Error{Code: base.Code, Status: base.Status, Kind: base.Kind, Message: message, Err: err}
}

// Predefined errors for the appeal workflow.
var (
	ErrNotFound       = New("NOT_FOUND", http.StatusNotFound, KindNotFound, "resource not found")
	ErrForbidden      = New("FORBIDDEN", http.StatusForbidden, KindUnauthorized, "forbidden")
	ErrUnauthorized   = New("UNAUTHORIZED", http.StatusUnauthorized, KindUnauthorized, "unauthorized")
	ErrValidation     = New("VALIDATION_ERROR", http.StatusBadRequest, KindInput, "validation failed")
	ErrInternal       = New("INTERNAL_ERROR", http.StatusInternalServerError, KindInternal, "internal server error")
	ErrInvalidReason  = New("INVALID_REASON", http.StatusBadRequest, KindInput, "appeal reason must be at least 100 characters")
	ErrPeriodInvalid  = New("PERIOD_INVALID", http.StatusBadRequest, KindInput, "evaluation period is not open for appeals")
	ErrInvalidStatus  = New("INVALID_STATUS", http.StatusConflict, KindConflict, "operation not allowed in current status")
	ErrDuplicateID    = New("DUPLICATE_ID", http.StatusConflict, KindConflict, "appeal id already exists")
	ErrStorage        = New("STORAGE_ERROR", http.StatusServiceUnavailable, KindTransient, "appeal storage unavailable")
	ErrSubmit         = New("SUBMIT_ERROR", http.StatusBadGateway, KindTransient, "failed to submit appeal")
	// ErrSubmitRejected shares the SUBMIT_ERROR code but marks a rejection that retrying cannot fix.
	ErrSubmitRejected = New("SUBMIT_ERROR", http.StatusUnprocessableEntity, KindInput, "evaluation system rejected the submission")
	ErrUpdate         = New("UPDATE_ERROR", http.StatusInternalServerError, KindInternal, "failed to update appeal")
	ErrCacheMiss      = New("CACHE_MISS", http.StatusNotFound, KindNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if len(err.Details) > 0 {
		clone.Details = make(map[string]string, len(err.Details))
		for k, v := range err.Details {
			clone.Details[k] = v
		}
	}
	return &clone
}

// WithDetail returns a copy of err carrying the additional detail entry.
func WithDetail(err *Error, key, value string) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	if clone.Details == nil {
		clone.Details = make(map[string]string, 1)
	}
	clone.Details[key] = value
	return clone
}

// KindOf reports the kind of err, defaulting to KindInternal for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindInternal
}

// HasCode reports whether err is an *Error carrying code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
