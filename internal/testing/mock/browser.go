package mock

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Browser stands in for the user's web browser. Open returns immediately
// and follows the URL in the background, including redirects, the way a
// browser would after the user approves the consent page.
type Browser struct {
	client *http.Client

	mu     sync.Mutex
	opened []string
	done   chan error
}

// NewBrowser creates a browser that follows URLs with a short-timeout client.
func NewBrowser() *Browser {
	return &Browser{
		client: &http.Client{Timeout: 10 * time.Second},
		done:   make(chan error, 16),
	}
}

// Open records url and starts following it.
func (b *Browser) Open(url string) error {
	b.mu.Lock()
	b.opened = append(b.opened, url)
	b.mu.Unlock()

	go func() {
		b.done <- b.visit(url)
	}()
	return nil
}

func (b *Browser) visit(url string) error {
	resp, err := b.client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("browser landed on status %d", resp.StatusCode)
	}
	return nil
}

// Opened returns the URLs passed to Open.
func (b *Browser) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

// Wait blocks until the next background visit finishes and returns its
// result.
func (b *Browser) Wait(ctx context.Context) error {
	select {
	case err := <-b.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
