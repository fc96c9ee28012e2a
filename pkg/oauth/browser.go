package oauth

import (
	"io"
	"sync"

	"github.com/pkg/browser"
)

// Browser opens the authorize URL for the user. A failure is not fatal:
// the URL is printed instead.
type Browser interface {
	Open(url string) error
}

// BrowserFunc adapts a function to the Browser interface.
type BrowserFunc func(url string) error

// Open calls f(url).
func (f BrowserFunc) Open(url string) error {
	return f(url)
}

// SystemBrowser opens URLs in the platform's default web browser.
type SystemBrowser struct {
	// Stdout and Stderr receive the launcher's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// launchMu guards the browser package's Stdout and Stderr, which are
// process-wide and read by OpenURL.
var (
	launchMu sync.Mutex
	openURL  = browser.OpenURL
)

// Open implements Browser. Concurrent calls are serialised so each launch
// writes to its own Stdout and Stderr.
func (b SystemBrowser) Open(url string) error {
	launchMu.Lock()
	defer launchMu.Unlock()

	browser.Stdout = discardIfNil(b.Stdout)
	browser.Stderr = discardIfNil(b.Stderr)
	return openURL(url)
}

func discardIfNil(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
