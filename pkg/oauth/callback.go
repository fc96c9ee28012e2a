package oauth

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// callbackAcknowledgement is shown in the browser once the redirect has
// been captured.
const callbackAcknowledgement = "All done, now go back to your application"

// headerDrainTimeout bounds how long the listener discards the rest of the
// request after the request line, so the browser is not reset mid-request.
const headerDrainTimeout = 2 * time.Second

// maxRequestLineSize bounds the request line and each drained header line.
const maxRequestLineSize = 8 << 10

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	callbackSuccessTemplate = template.Must(template.New("success").Parse(callbackSuccessHTML))
	callbackErrorTemplate   = template.Must(template.New("error").Parse(callbackErrorHTML))
)

// CallbackListener is a single-shot local listener for the provider's
// browser redirect.
type CallbackListener struct {
	listener net.Listener
}

// ListenForCallback binds host:port. The listener is released by Wait or Close.
func ListenForCallback(host string, port int) (*CallbackListener, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, newError(KindTransport, err, "failed to start callback listener on %s", addr)
	}
	return &CallbackListener{listener: listener}, nil
}

// Addr returns the bound address.
func (l *CallbackListener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close releases the listener. It is safe to call more than once.
func (l *CallbackListener) Close() error {
	err := l.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Wait accepts exactly one connection, reads its request line, answers the
// browser and parses the line. It blocks until a connection arrives or ctx
// is done. The listener is closed when Wait returns.
func (l *CallbackListener) Wait(ctx context.Context) (*CallbackResult, error) {
	defer l.Close()

	stopListener := context.AfterFunc(ctx, func() {
		_ = l.listener.Close()
	})
	defer stopListener()

	conn, err := l.listener.Accept()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, newError(KindTransport, ctxErr, "stopped waiting for authorization callback")
		}
		return nil, newError(KindTransport, err, "failed to accept authorization callback")
	}
	defer conn.Close()

	stopConn := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stopConn()

	reader := bufio.NewReaderSize(conn, maxRequestLineSize)
	raw, err := reader.ReadSlice('\n')
	line := string(raw)
	if errors.Is(err, bufio.ErrBufferFull) {
		tooLong := newError(KindProtocol, nil, "callback request line exceeds %d bytes", maxRequestLineSize)
		_ = writeCallbackResponse(conn, nil, tooLong)
		return nil, tooLong
	}
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, newError(KindTransport, err, "failed to read authorization callback")
	}
	drainRequestHeader(conn, reader)

	result, parseErr := ParseCallbackLine(line)
	if err := writeCallbackResponse(conn, result, parseErr); err != nil {
		return nil, newError(KindTransport, err, "failed to answer authorization callback")
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return result, nil
}

// WaitForCallback binds host:port and waits for one callback.
func WaitForCallback(ctx context.Context, host string, port int) (*CallbackResult, error) {
	listener, err := ListenForCallback(host, port)
	if err != nil {
		return nil, err
	}
	return listener.Wait(ctx)
}

// ParseCallbackLine extracts the authorization code or provider error from
// an HTTP request line such as "GET /?code=abc HTTP/1.1".
//
// Duplicate query keys resolve to their last value. A target carrying
// neither or both of "code" and "error" is a protocol error.
func ParseCallbackLine(line string) (*CallbackResult, error) {
	if !utf8.ValidString(line) {
		return nil, newError(KindTransport, nil, "callback request is not valid UTF-8")
	}

	trimmed := strings.TrimRight(line, "\r\n")
	// the target is the second single-space separated field
	fields := strings.Split(trimmed, " ")
	if len(fields) < 2 {
		return nil, newError(KindProtocol, nil, "bad callback request: %q", trimmed)
	}

	query := strings.TrimPrefix(fields[1], "/?")
	params := parseQuery(query)

	code, hasCode := params["code"]
	providerErr, hasErr := params["error"]

	switch {
	case hasCode && !hasErr:
		if code == "" {
			return nil, newError(KindProtocol, nil, "empty authorization code in callback: %s", query)
		}
		return &CallbackResult{Code: code}, nil
	case hasErr && !hasCode:
		if providerErr == "" {
			providerErr = "unspecified"
		}
		return &CallbackResult{Error: providerErr}, nil
	default:
		return nil, newError(KindProtocol, nil, "bad callback response: %s", query)
	}
}

// parseQuery splits a flat query string into keys and values. Later keys
// overwrite earlier ones. Values are percent-decoded where the escapes are
// valid and kept verbatim otherwise.
func parseQuery(query string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		params[unescape(key)] = unescape(value)
	}
	return params
}

func unescape(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// drainRequestHeader discards header lines up to the blank line ending the
// request, giving up after headerDrainTimeout. Over-long lines are skipped
// in buffer-sized pieces.
func drainRequestHeader(conn net.Conn, reader *bufio.Reader) {
	_ = conn.SetReadDeadline(time.Now().Add(headerDrainTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil || string(line) == "\r\n" || string(line) == "\n" {
			return
		}
	}
}

func writeCallbackResponse(w io.Writer, result *CallbackResult, parseErr error) error {
	var page bytes.Buffer
	var err error
	switch {
	case parseErr != nil:
		err = callbackErrorTemplate.Execute(&page, map[string]string{
			"Message": "The sign in response could not be understood. Return to your application for details.",
		})
	case result.IsError():
		err = callbackErrorTemplate.Execute(&page, map[string]string{
			"Message": "The provider did not grant access. Return to your application.",
			"Error":   result.Error,
		})
	default:
		err = callbackSuccessTemplate.Execute(&page, map[string]string{
			"Message": callbackAcknowledgement,
		})
	}
	if err != nil {
		page.Reset()
		page.WriteString(callbackAcknowledgement)
	}

	header := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"Content-Length: " + strconv.Itoa(page.Len()) + "\r\n" +
		"Cache-Control: no-store\r\n" +
		"X-Content-Type-Options: nosniff\r\n" +
		"X-Frame-Options: DENY\r\n" +
		"Referrer-Policy: no-referrer\r\n" +
		"Connection: close\r\n\r\n"

	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	_, err = w.Write(page.Bytes())
	if err != nil {
		return fmt.Errorf("write response body: %w", err)
	}
	return nil
}
