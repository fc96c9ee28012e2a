package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/DomWilliams0/spotify-auth/pkg/oauth"
)

// ErrNoReply is returned by RecordingTransport when its reply queue is empty.
var ErrNoReply = errors.New("mock transport: no reply queued")

type reply struct {
	resp *oauth.Response
	err  error
}

// RecordingTransport is an oauth.Transport that records every request and
// answers from a queue of canned replies, in order.
type RecordingTransport struct {
	mu       sync.Mutex
	requests []*oauth.Request
	replies  []reply
}

// NewRecordingTransport creates a transport with an empty reply queue.
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{}
}

// Reply queues a response with the given status and body.
func (t *RecordingTransport) Reply(status int, body string) *RecordingTransport {
	return t.ReplyBytes(status, []byte(body))
}

// ReplyBytes queues a response with a raw body.
func (t *RecordingTransport) ReplyBytes(status int, body []byte) *RecordingTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, reply{resp: &oauth.Response{StatusCode: status, Body: body}})
	return t
}

// Fail queues a transport failure.
func (t *RecordingTransport) Fail(err error) *RecordingTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, reply{err: err})
	return t
}

// Send implements oauth.Transport.
func (t *RecordingTransport) Send(ctx context.Context, req *oauth.Request) (*oauth.Response, error) {
	recorded := &oauth.Request{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Header.Clone(),
		Body:   append([]byte(nil), req.Body...),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, recorded)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.replies) == 0 {
		return nil, ErrNoReply
	}
	next := t.replies[0]
	t.replies = t.replies[1:]
	return next.resp, next.err
}

// Requests returns every request sent so far.
func (t *RecordingTransport) Requests() []*oauth.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*oauth.Request(nil), t.requests...)
}

// LastRequest returns the most recent request, or nil if none was sent.
func (t *RecordingTransport) LastRequest() *oauth.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return nil
	}
	return t.requests[len(t.requests)-1]
}

// Pending returns the number of queued replies not yet consumed.
func (t *RecordingTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.replies)
}

// Header returns a header value of the most recent request.
func (t *RecordingTransport) Header(key string) string {
	last := t.LastRequest()
	if last == nil {
		return ""
	}
	return last.Header.Get(key)
}
