package cli

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/DomWilliams0/spotify-auth/internal/config"
	"github.com/DomWilliams0/spotify-auth/pkg/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfigError indicates the configuration is missing or invalid.
	ExitCodeConfigError = 2
	// ExitCodeAuthFailed indicates the user or provider refused the login.
	ExitCodeAuthFailed = 3
	// ExitCodeProviderError indicates the provider answered with an error or
	// an unexpected response.
	ExitCodeProviderError = 4
)

// ExitCodeFor maps an error returned by a command to a process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}

	var authFailed *AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	var validationErrs config.ValidationErrors
	var configErr config.ConfigurationError
	if errors.As(err, &validationErrs) || errors.As(err, &configErr) {
		return ExitCodeConfigError
	}

	if kind, ok := oauth.KindOf(err); ok {
		switch kind {
		case oauth.KindAuthentication:
			return ExitCodeAuthFailed
		case oauth.KindHTTP, oauth.KindProviderIncompatibility:
			return ExitCodeProviderError
		}
	}

	return ExitCodeError
}

// AuthFailedError indicates the provider did not grant access.
type AuthFailedError struct {
	// Reason is the underlying error.
	Reason error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authentication failed: %v

To retry authentication, run:
  spotify-auth login --show-dialog`, e.Reason)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

// ConnectionErrorType categorizes the type of connection error.
type ConnectionErrorType int

const (
	// ConnectionErrorUnknown indicates an unclassified connection error.
	ConnectionErrorUnknown ConnectionErrorType = iota
	// ConnectionErrorTLS indicates a TLS/certificate verification error.
	ConnectionErrorTLS
	// ConnectionErrorNetwork indicates a network connectivity error (e.g., refused, unreachable).
	ConnectionErrorNetwork
	// ConnectionErrorTimeout indicates a connection timeout.
	ConnectionErrorTimeout
	// ConnectionErrorDNS indicates a DNS resolution failure.
	ConnectionErrorDNS
	// ConnectionErrorPortInUse indicates the callback port is already bound.
	ConnectionErrorPortInUse
)

// String returns a human-readable name for the connection error type.
func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "TLS certificate error"
	case ConnectionErrorNetwork:
		return "Network error"
	case ConnectionErrorTimeout:
		return "Connection timeout"
	case ConnectionErrorDNS:
		return "DNS resolution error"
	case ConnectionErrorPortInUse:
		return "Callback port in use"
	default:
		return "Connection error"
	}
}

// ConnectionError describes a transport failure with a hint for the user.
type ConnectionError struct {
	// Type categorizes the connection error.
	Type ConnectionErrorType
	// Reason is the underlying error.
	Reason error
}

// Error returns the category, the cause and a hint.
func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Type, e.Reason)
	if hint := e.hint(); hint != "" {
		msg += "\n\n" + hint
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Reason
}

func (e *ConnectionError) hint() string {
	switch e.Type {
	case ConnectionErrorPortInUse:
		return "Another program is using the callback port. Pick another with --port\nand register the new redirect URI with your application."
	case ConnectionErrorTimeout:
		return "The browser did not return in time. Run the command again, or raise --timeout."
	case ConnectionErrorDNS, ConnectionErrorNetwork:
		return "Check your network connection and the configured authorizeUrl/tokenUrl."
	case ConnectionErrorTLS:
		return "The provider's certificate could not be verified."
	default:
		return ""
	}
}

// ClassifyConnectionError analyzes a transport error and returns a
// ConnectionError with the appropriate type. Other errors are returned
// unchanged.
func ClassifyConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if kind, ok := oauth.KindOf(err); !ok || kind != oauth.KindTransport {
		return err
	}

	errType := ConnectionErrorUnknown
	var dnsErr *net.DNSError
	switch {
	case isPortInUse(err):
		errType = ConnectionErrorPortInUse
	case isTLSError(err):
		errType = ConnectionErrorTLS
	case errors.As(err, &dnsErr):
		errType = ConnectionErrorDNS
	case isTimeoutError(err):
		errType = ConnectionErrorTimeout
	case isNetworkError(err.Error()):
		errType = ConnectionErrorNetwork
	}
	return &ConnectionError{Type: errType, Reason: err}
}

func isPortInUse(err error) bool {
	return strings.Contains(err.Error(), "address already in use") ||
		strings.Contains(err.Error(), "Only one usage of each socket address")
}

// isTLSError checks if the error is related to TLS/certificate issues.
func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError

	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &unknownAuthErr) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "x509:") || strings.Contains(errStr, "tls:")
}

// isTimeoutError checks if the error is a timeout.
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if the error string indicates a network connectivity issue.
func isNetworkError(errStr string) bool {
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
	}

	for _, keyword := range networkKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
