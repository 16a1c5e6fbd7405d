// Package transport issues HTTP requests against the target service.
//
// The harness core depends only on the Transport interface. HTTPTransport is
// the production implementation; tests substitute scripted transports or point
// HTTPTransport at an httptest.Server.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single request when the caller does not configure one.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response body is read into memory.
const maxBodyBytes = 4 << 20

// Response is a completed HTTP exchange.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport performs a single HTTP request.
//
// Implementations return *Error for every failure so callers can inspect the
// status (when one exists) and the remote body.
type Transport interface {
	Do(ctx context.Context, req *http.Request) (*Response, error)
}

// Func adapts an ordinary function to the Transport interface.
type Func func(ctx context.Context, req *http.Request) (*Response, error)

// Do calls f(ctx, req).
func (f Func) Do(ctx context.Context, req *http.Request) (*Response, error) {
	return f(ctx, req)
}

// Error is a transport-level failure.
//
// HasStatus is false for pure network failures (DNS, connection refused,
// timeout). Body holds the remote payload when the server answered.
type Error struct {
	Status    int
	HasStatus bool
	Body      []byte
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.HasStatus {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPTransport is a Transport backed by net/http.
//
// It never follows redirects: a 3xx is returned as a Response so probes can
// inspect Location headers.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport whose requests are bounded by timeout.
// A zero timeout selects DefaultTimeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Do sends req and reads the full response body.
func (t *HTTPTransport) Do(ctx context.Context, req *http.Request) (*Response, error) {
	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, &Error{Message: describe(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{
			Status:    resp.StatusCode,
			HasStatus: true,
			Message:   fmt.Sprintf("reading response body: %v", err),
			Err:       err,
		}
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

// describe turns a client error into a short message.
func describe(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	return err.Error()
}
