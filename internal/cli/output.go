package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/DomWilliams0/spotify-auth/pkg/oauth"
)

// Output formats accepted by --output.
const (
	OutputFormatTable = "table"
	OutputFormatJSON  = "json"
	OutputFormatYAML  = "yaml"
)

// maxCellWidth bounds values shown in table cells.
const maxCellWidth = 100

// ValidateOutputFormat returns an error for unknown output formats.
func ValidateOutputFormat(format string) error {
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use table, json or yaml)", format)
	}
}

// createTable creates a new table with standard styling
func createTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// PrintTokenSummary renders the token set as a key/value table. Token
// values are redacted unless reveal is set.
func PrintTokenSummary(w io.Writer, tokens oauth.TokenSet, now time.Time, reveal bool) {
	t := createTable(w)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("FIELD"),
		text.FgHiCyan.Sprint("VALUE"),
	})

	expiry := tokens.ExpiresAt.Format(time.RFC3339)
	if tokens.ExpiredAt(now) {
		expiry += " " + text.FgRed.Sprint("(expired)")
	} else {
		expiry += fmt.Sprintf(" (in %s)", tokens.ExpiresAt.Sub(now).Round(time.Second))
	}

	t.AppendRows([]table.Row{
		{"Access token", secret(tokens.AccessToken, reveal)},
		{"Refresh token", secret(tokens.RefreshToken, reveal)},
		{"Scope", strings.Join(tokens.Scopes(), "\n")},
		{"Expires", expiry},
	})
	t.Render()
}

func secret(value string, reveal bool) string {
	if reveal {
		return value
	}
	return oauth.NewRedactedToken(value).String()
}

// PrintAPIResult writes an API result in the requested format. Table
// output shows the status line followed by the top-level fields of a JSON
// object; arrays and scalars fall back to indented JSON.
func PrintAPIResult(w io.Writer, result *oauth.APIResult, format string) error {
	switch format {
	case OutputFormatJSON:
		return writeJSON(w, result.Body)
	case OutputFormatYAML:
		data, err := yaml.Marshal(result.Body)
		if err != nil {
			return fmt.Errorf("failed to render YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	}

	fmt.Fprintf(w, "%s %s\n", text.FgHiBlue.Sprint("Status:"), FormatStatus(result.StatusCode))

	object, ok := result.Body.(map[string]any)
	if !ok || len(object) == 0 {
		return writeJSON(w, result.Body)
	}

	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	t := createTable(w)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("KEY"),
		text.FgHiCyan.Sprint("VALUE"),
	})
	for _, key := range keys {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(key), cellValue(object[key])})
	}
	t.Render()
	return nil
}

func writeJSON(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// cellValue renders nested values as compact JSON, truncated for display.
func cellValue(v any) string {
	var s string
	switch value := v.(type) {
	case string:
		s = value
	case nil:
		s = "-"
	default:
		data, err := json.Marshal(value)
		if err != nil {
			s = fmt.Sprintf("%v", value)
		} else {
			s = string(data)
		}
	}

	if len(s) > maxCellWidth {
		s = s[:maxCellWidth-3] + "..."
	}
	return s
}
