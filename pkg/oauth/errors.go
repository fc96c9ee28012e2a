package oauth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the login and API lifecycle.
type ErrorKind int

const (
	// KindTransport covers listener bind/accept failures, connection
	// failures and malformed byte sequences.
	KindTransport ErrorKind = iota

	// KindProtocol means the local callback request could not be understood.
	KindProtocol

	// KindAuthentication means the provider redirected back with an explicit
	// error, e.g. the user declined consent.
	KindAuthentication

	// KindProviderIncompatibility means a token or API response did not have
	// the expected shape.
	KindProviderIncompatibility

	// KindHTTP means an endpoint answered with a non-200 status.
	KindHTTP
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport error"
	case KindProtocol:
		return "protocol error"
	case KindAuthentication:
		return "authentication error"
	case KindProviderIncompatibility:
		return "provider incompatibility"
	case KindHTTP:
		return "http error"
	default:
		return "unknown error"
	}
}

// Sentinels for matching an *Error by kind with errors.Is.
var (
	ErrTransport               = errors.New("transport error")
	ErrProtocol                = errors.New("protocol error")
	ErrAuthentication          = errors.New("authentication error")
	ErrProviderIncompatibility = errors.New("provider incompatibility")
	ErrHTTP                    = errors.New("http error")
)

// ErrPhaseConsumed is returned when a transition is attempted on a phase
// that already produced its successor.
var ErrPhaseConsumed = errors.New("authorization phase already consumed")

// ErrInvalidPhase is returned by phases that were not produced by New or a
// transition (for example a zero value).
var ErrInvalidPhase = errors.New("authorization phase not initialized")

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindProtocol:
		return ErrProtocol
	case KindAuthentication:
		return ErrAuthentication
	case KindProviderIncompatibility:
		return ErrProviderIncompatibility
	case KindHTTP:
		return ErrHTTP
	default:
		return nil
	}
}

// Error is the error type returned by the login lifecycle.
type Error struct {
	Kind    ErrorKind
	Message string

	// StatusCode and Body are set for KindHTTP. Body holds the decoded JSON
	// value when the response was JSON, otherwise the raw body as a string.
	StatusCode int
	Body       any

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var oauthErr *Error
	if errors.As(err, &oauthErr) {
		return oauthErr.Kind, true
	}
	return 0, false
}

func newError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

func newHTTPError(endpoint string, status int, body []byte) *Error {
	value := bodyValue(body)
	return &Error{
		Kind:       KindHTTP,
		Message:    fmt.Sprintf("%s returned status %d: %s", endpoint, status, describeBody(value)),
		StatusCode: status,
		Body:       value,
	}
}
