// Package cli provides the presentation layer of the spotify-auth command.
//
// # Output
//
// PrintTokenSummary renders a TokenSet as a rounded go-pretty table with
// token values redacted unless the caller asks for them. PrintAPIResult
// renders an API response as a key/value table, indented JSON or YAML,
// selected by --output.
//
// # Progress
//
// WithSpinner shows a spinner while a blocking step (waiting for the
// browser, exchanging the code) runs. Spinners are suppressed by --quiet
// and never animate when the output is not a terminal.
//
// # Errors and Exit Codes
//
// ExitCodeFor maps errors to semantic exit codes so scripts can tell a
// refused login (3) from a configuration problem (2) or a provider error
// (4). ClassifyConnectionError turns transport failures into a
// ConnectionError carrying a hint for the user, such as picking another
// callback port when the default one is taken.
package cli
