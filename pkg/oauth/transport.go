package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DomWilliams0/spotify-auth/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for requests sent by HTTPTransport.
const DefaultHTTPTimeout = 30 * time.Second

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
	bearerTokenType = "Bearer"
)

// Request is one outbound call to a provider or API endpoint.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the status and full body of a completed call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport sends requests. Implementations fail only on connection or
// transport problems; any HTTP status is a successful Send.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is a Transport backed by an *http.Client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport using client, or a client with
// DefaultHTTPTimeout if client is nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPTransport{client: client}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// dispatch sends req and checks that the response body is valid UTF-8.
func dispatch(ctx context.Context, transport Transport, req *Request) (*Response, error) {
	logging.Debug("OAuth", "Sending %s request to %s with headers %s", req.Method, req.URL, describeHeader(req.Header))

	resp, err := transport.Send(ctx, req)
	if err != nil {
		return nil, newError(KindTransport, err, "%s %s", req.Method, req.URL)
	}
	if !utf8.Valid(resp.Body) {
		return nil, newError(KindTransport, nil, "response from %s is not valid UTF-8", req.URL)
	}

	logging.Debug("OAuth", "Received status %d from %s (%d bytes)", resp.StatusCode, req.URL, len(resp.Body))
	return resp, nil
}

// describeHeader lists header names with the Authorization value redacted.
func describeHeader(header http.Header) string {
	keys := make([]string, 0, len(header))
	for key := range header {
		if strings.EqualFold(key, "Authorization") {
			scheme, _, _ := strings.Cut(header.Get(key), " ")
			keys = append(keys, key+"="+scheme+" [REDACTED]")
			continue
		}
		keys = append(keys, key+"="+strings.Join(header[key], ","))
	}
	sort.Strings(keys)
	return "[" + strings.Join(keys, " ") + "]"
}

func decodeJSON(data []byte) (any, bool) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return v, true
}

// bodyValue returns the decoded JSON value of data, or data as a string if
// it is not JSON.
func bodyValue(data []byte) any {
	if v, ok := decodeJSON(data); ok {
		return v
	}
	return string(data)
}

func describeBody(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "<unprintable body>"
	}
	return string(data)
}
