package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/DomWilliams0/spotify-auth/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks every field and returns all problems found, or nil.
// Secret values are never copied into the returned errors.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.ClientID) == "" {
		errs.Add("clientId", "is required (set SPOTIFY_AUTH_CLIENT_ID or clientId in config.yaml)")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		errs.Add("clientSecret", "is required (set SPOTIFY_AUTH_CLIENT_SECRET or clientSecret in config.yaml)")
	}
	if strings.TrimSpace(c.CallbackHost) == "" {
		errs.Add("callbackHost", "must not be empty")
	}
	if c.CallbackPort < 1 || c.CallbackPort > 65535 {
		errs.Add("callbackPort", "must be between 1 and 65535", c.CallbackPort)
	}
	if c.CallbackTimeout < 0 {
		errs.Add("callbackTimeout", "must not be negative", c.CallbackTimeout)
	}
	for _, endpoint := range []struct{ field, value string }{
		{"authorizeUrl", c.AuthorizeURL},
		{"tokenUrl", c.TokenURL},
		{"apiBaseUrl", c.APIBaseURL},
	} {
		var urlErr ValidationError
		if err := ValidateURL(endpoint.field, endpoint.value); errors.As(err, &urlErr) {
			errs = append(errs, urlErr)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("logLevel", "must be one of: debug, info, warn, error", c.LogLevel)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateURL checks that value is an absolute http or https URL
func ValidateURL(field, value string) error {
	parsed, err := url.Parse(value)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be an absolute http(s) URL",
		}
	}
	return nil
}
