package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
)

// FormatError formats an error message for CLI output
func FormatError(err error) string {
	return text.FgRed.Sprintf("Error: %v", err)
}

// FormatSuccess formats a success message for CLI output
func FormatSuccess(msg string) string {
	return text.FgGreen.Sprint("✓ ") + msg
}

// FormatWarning formats a warning message for CLI output
func FormatWarning(msg string) string {
	return text.FgYellow.Sprint("⚠ ") + msg
}

// FormatStatus renders an HTTP status code, green for 200 and red otherwise.
func FormatStatus(code int) string {
	label := fmt.Sprintf("%d", code)
	if code == 200 {
		return text.FgGreen.Sprint(label)
	}
	return text.FgRed.Sprint(label)
}
