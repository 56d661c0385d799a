// Package errors provides kinded errors that render as RFC 7807 Problem Details
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// FieldError represents a validation error for a specific field
type FieldError struct {
	Kind    string `json:"kind"`
	Field   string `json:"field"`
	Message string `json:"message,omitempty"`
}

func (f *FieldError) Error() string {
	return fmt.Sprintf("%s (%s): %s", f.Field, f.Kind, f.Message)
}

func NewFieldError(kind, field, reason string) FieldError {
	return FieldError{Kind: kind, Field: field, Message: reason}
}

// Status returns an error of the given HTTP status whose kind is the status text.
func Status(code int) *Error {
	return &Error{Kind: http.StatusText(code), status: code}
}

var (
	Invalid           *Error = Status(http.StatusBadRequest)
	Unauthorized      *Error = Status(http.StatusUnauthorized)
	TwoFactorRequired *Error = Status(http.StatusUnauthorized).Reason("Two-Factor Code Required")
	Forbidden         *Error = Status(http.StatusForbidden)
	NotFound          *Error = Status(http.StatusNotFound)
	Conflict          *Error = Status(http.StatusConflict)
	Unprocessable     *Error = Status(http.StatusUnprocessableEntity)
	TooManyRequests   *Error = Status(http.StatusTooManyRequests)
	Unavailable       *Error = Status(http.StatusServiceUnavailable)
)

// Error is a custom error type for passing more information
type Error struct {
	// Kind is the returned error type
	Kind string `json:"kind"`
	// Message is the human readable string that indicate the error
	Message string `json:"message"`
	// Fields used when there's validation error for a field.
	Fields []FieldError `json:"fields,omitempty"`

	status int
	cause  error
}

var _ error = (*Error)(nil)

func New(message string) *Error {
	return &Error{Kind: "Unknown", Message: message, status: http.StatusInternalServerError}
}

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] ", e.Kind)
	if e.Message != "" {
		str += e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

// StatusCode is the HTTP status the error renders with.
func (e *Error) StatusCode() int {
	if e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}

// Reason returns a copy of the error with kind set to given value
func (e *Error) Reason(kind string) *Error {
	err := *e
	err.Kind = kind
	return &err
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap returns a copy of the error with the given cause
func (e *Error) Wrap(cause error) *Error {
	err := *e
	err.cause = cause
	return &err
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

func (e *Error) WithFields(fields []FieldError) *Error {
	newError := *e
	newError.Fields = fields
	return &newError
}

// WithField returns a copy of error with one more field error appended.
func (e *Error) WithField(kind, field, message string) *Error {
	newError := *e
	newError.Fields = append(append([]FieldError(nil), e.Fields...), NewFieldError(kind, field, message))
	return &newError
}

// Is implements the needed interface for errors.Is
// It checks kind for equality
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	return false
}

// Problem type URIs
const (
	TypeValidationError   = "https://crowdfund.dev/problems/validation-error"
	TypeUnauthorized      = "https://crowdfund.dev/problems/unauthorized"
	TypeTwoFactorRequired = "https://crowdfund.dev/problems/two-factor-required"
	TypeForbidden         = "https://crowdfund.dev/problems/forbidden"
	TypeNotFound          = "https://crowdfund.dev/problems/not-found"
	TypeConflict          = "https://crowdfund.dev/problems/conflict"
	TypeRateLimit         = "https://crowdfund.dev/problems/rate-limit"
	TypeInternalError     = "https://crowdfund.dev/problems/internal-error"
	TypeBlank             = "about:blank"
)

// ValidationError represents a single invalid field in a problem document
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	TraceID  string            `json:"trace_id,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return p.Detail
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// ToProblemDetails converts any error into a problem document. Errors that are
// not *Error become an opaque 500.
func ToProblemDetails(err error, instance string) *ProblemDetails {
	var e *Error
	if !As(err, &e) {
		return &ProblemDetails{
			Type:     TypeInternalError,
			Title:    http.StatusText(http.StatusInternalServerError),
			Status:   http.StatusInternalServerError,
			Detail:   "An unexpected error occurred",
			Instance: instance,
		}
	}

	status := e.StatusCode()
	p := &ProblemDetails{
		Type:     problemType(e, status),
		Title:    e.Kind,
		Status:   status,
		Detail:   e.Message,
		Instance: instance,
	}
	if status >= http.StatusInternalServerError {
		p.Detail = "An unexpected error occurred"
	}
	for _, f := range e.Fields {
		p.Errors = append(p.Errors, ValidationError{Field: f.Field, Message: f.Message, Code: f.Kind})
	}
	return p
}

func problemType(e *Error, status int) string {
	if e.Is(TwoFactorRequired) {
		return TypeTwoFactorRequired
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return TypeValidationError
	case http.StatusUnauthorized:
		return TypeUnauthorized
	case http.StatusForbidden:
		return TypeForbidden
	case http.StatusNotFound:
		return TypeNotFound
	case http.StatusConflict:
		return TypeConflict
	case http.StatusTooManyRequests:
		return TypeRateLimit
	}
	if status >= http.StatusInternalServerError {
		return TypeInternalError
	}
	return TypeBlank
}
