package config

import (
	"fmt"
	"strings"
)

// Configuration sources
const (
	SourceFile        = "file"
	SourceEnvironment = "environment"
	SourceFlags       = "flags"
)

// Error types
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError represents a structured error that occurs during configuration loading
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`    // Full path to the file that caused the error, if any
	Source      string   `json:"source"`      // "file", "environment" or "flags"
	ErrorType   string   `json:"errorType"`   // Type of error (io, parse, validation)
	Message     string   `json:"message"`     // Human-readable error message
	Details     string   `json:"details"`     // Additional details about the error
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error

	Err error `json:"-"`
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	if ce.FilePath != "" {
		return fmt.Sprintf("[%s/%s] %s: %s", ce.Source, ce.ErrorType, ce.FilePath, ce.Message)
	}
	return fmt.Sprintf("[%s/%s] %s", ce.Source, ce.ErrorType, ce.Message)
}

// Unwrap returns the underlying cause
func (ce ConfigurationError) Unwrap() error {
	return ce.Err
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error from %s", ce.Source))
	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	}
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// NewConfigurationError creates a new configuration error with basic information
func NewConfigurationError(filePath, source, errorType, message string, err error) ConfigurationError {
	return ConfigurationError{
		FilePath:  filePath,
		Source:    source,
		ErrorType: errorType,
		Message:   message,
		Err:       err,
	}
}
