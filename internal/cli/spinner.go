package cli

import (
	"context"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WithSpinner runs fn while a spinner with the given suffix is shown on w.
// When quiet is set fn runs without any progress output. The spinner only
// animates when w is a terminal.
func WithSpinner[T any](ctx context.Context, w io.Writer, quiet bool, suffix string, fn func(context.Context) (T, error)) (T, error) {
	if quiet {
		return fn(ctx)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()

	result, err := fn(ctx)
	if err != nil {
		s.FinalMSG = text.FgRed.Sprint("✗") + " " + suffix + "\n"
	}
	s.Stop()
	return result, err
}
