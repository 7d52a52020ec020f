package rdap

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed RDAP query.
type ErrorKind uint8

// Error kinds.
const (
	KindUnknown ErrorKind = iota
	KindInvalidInput
	KindBootstrapUnavailable
	KindNotFound
	KindRateLimited
	KindClientError
	KindServerError
	KindGatewayTimeout
	KindTooManyRedirects
	KindUnexpectedResponseShape
	KindInternalError
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindBootstrapUnavailable:
		return "bootstrap unavailable"
	case KindNotFound:
		return "not found"
	case KindRateLimited:
		return "rate limited"
	case KindClientError:
		return "client error"
	case KindServerError:
		return "server error"
	case KindGatewayTimeout:
		return "gateway timeout"
	case KindTooManyRedirects:
		return "too many redirects"
	case KindUnexpectedResponseShape:
		return "unexpected response shape"
	case KindInternalError:
		return "internal error"
	case KindUnknown:
		fallthrough
	default:
		return "unknown"
	}
}

// defaultStatus returns the HTTP status code the kind maps to when the error
// itself does not carry a usable one.
func (k ErrorKind) defaultStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindBootstrapUnavailable, KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindClientError:
		return http.StatusBadRequest
	case KindServerError:
		return http.StatusBadGateway
	case KindGatewayTimeout:
		return http.StatusGatewayTimeout
	case KindTooManyRedirects, KindUnexpectedResponseShape:
		return http.StatusBadGateway
	case KindInternalError, KindUnknown:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// StructuredError is the uniform failure value of the RDAP query path. Every
// failure that crosses a component boundary is one of these, never a raw
// transport error. The JSON shape mirrors the RDAP error document, so it can
// be served to API callers as is.
type StructuredError struct {
	Kind        ErrorKind `json:"-"`
	Code        int       `json:"errorCode"`
	Title       string    `json:"title,omitempty"`
	Description []string  `json:"description,omitempty"`

	cause error
}

// NewError returns a structured error of the given kind, with the code set to
// the kind's default HTTP status.
func NewError(kind ErrorKind, title string, description ...string) *StructuredError {
	return &StructuredError{
		Kind:        kind,
		Code:        kind.defaultStatus(),
		Title:       title,
		Description: description,
	}
}

// WithCause attaches the underlying cause for error chain inspection and
// returns the error itself.
func (e *StructuredError) WithCause(err error) *StructuredError {
	e.cause = err
	return e
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	b := strings.Builder{}
	b.WriteString(e.Kind.String())
	if e.Title != "" {
		b.WriteString(": ")
		b.WriteString(e.Title)
	}
	if len(e.Description) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Description, "; "))
		b.WriteString(")")
	}
	if e.cause != nil {
		_, _ = fmt.Fprintf(&b, ": %s", e.cause)
	}
	return b.String()
}

// Unwrap returns the wrapped cause, if any.
func (e *StructuredError) Unwrap() error {
	return e.cause
}

// HTTPStatus returns the caller-facing HTTP status code: the error's own code
// when it is a valid error status, the kind's default otherwise.
func (e *StructuredError) HTTPStatus() int {
	if e.Code >= 400 && e.Code <= 599 {
		return e.Code
	}
	return e.Kind.defaultStatus()
}
