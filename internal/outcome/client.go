package outcome

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/apiprobe/internal/transport"
)

// Spec describes one request.
type Spec struct {
	Method string
	Path   string

	// Body is JSON-encoded when non-nil. A []byte is sent as-is.
	Body any

	// Header is merged into the request headers.
	Header http.Header

	// Token adds "Authorization: Bearer <Token>" when non-empty.
	Token string

	// Accept decides which statuses yield Ok. Nil means 2xx.
	Accept func(status int) bool
}

// Success is the default acceptance predicate.
func Success(status int) bool {
	return status >= 200 && status < 300
}

// AnyStatus accepts every status the server returns.
func AnyStatus(int) bool {
	return true
}

// StatusIn accepts exactly the listed statuses.
func StatusIn(codes ...int) func(int) bool {
	return func(status int) bool {
		for _, c := range codes {
			if c == status {
				return true
			}
		}
		return false
	}
}

// Client performs normalized requests against a base URL.
type Client struct {
	BaseURL   string
	Transport transport.Transport
	Logger    *slog.Logger
}

// NewClient creates a Client. A nil logger discards output.
func NewClient(baseURL string, t transport.Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Transport: t,
		Logger:    logger,
	}
}

// Do performs the request and normalizes the result. It never panics.
func (c *Client) Do(ctx context.Context, spec Spec) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = NetErr(fmt.Sprintf("transport panic: %v", r))
		}
		c.Logger.Debug("request",
			"method", spec.Method,
			"path", spec.Path,
			"outcome", out.String(),
			"duration", time.Since(start),
		)
	}()

	req, err := c.newRequest(spec)
	if err != nil {
		return NetErr(err.Error())
	}

	resp, err := c.Transport.Do(ctx, req)
	if err != nil {
		return fromError(err)
	}
	if resp == nil {
		return NetErr("transport returned no response")
	}

	accept := spec.Accept
	if accept == nil {
		accept = Success
	}

	body := decodeBody(resp.Body)
	if accept(resp.Status) {
		return Ok(resp.Status, resp.Header, body)
	}
	return Err(resp.Status, resp.Header, body, remoteDetail(body))
}

// Get is shorthand for a GET with default acceptance.
func (c *Client) Get(ctx context.Context, path, token string) Outcome {
	return c.Do(ctx, Spec{Method: http.MethodGet, Path: path, Token: token})
}

// Post is shorthand for a POST with default acceptance.
func (c *Client) Post(ctx context.Context, path, token string, body any) Outcome {
	return c.Do(ctx, Spec{Method: http.MethodPost, Path: path, Token: token, Body: body})
}

// Put is shorthand for a PUT with default acceptance.
func (c *Client) Put(ctx context.Context, path, token string, body any) Outcome {
	return c.Do(ctx, Spec{Method: http.MethodPut, Path: path, Token: token, Body: body})
}

// Delete is shorthand for a DELETE with default acceptance.
func (c *Client) Delete(ctx context.Context, path, token string) Outcome {
	return c.Do(ctx, Spec{Method: http.MethodDelete, Path: path, Token: token})
}

func (c *Client) newRequest(spec Spec) (*http.Request, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	isJSON := false
	switch b := spec.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case string:
		body = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
		isJSON = true
	}

	req, err := http.NewRequest(method, c.BaseURL+spec.Path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if isJSON {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range spec.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if spec.Token != "" {
		req.Header.Set("Authorization", "Bearer "+spec.Token)
	}
	return req, nil
}

// fromError maps a transport error to Err.
func fromError(err error) Outcome {
	var terr *transport.Error
	if errors.As(err, &terr) {
		if terr.HasStatus {
			body := decodeBody(terr.Body)
			detail := remoteDetail(body)
			if detail == "" {
				detail = terr.Message
			}
			return Err(terr.Status, nil, body, detail)
		}
		return NetErr(terr.Message)
	}
	return NetErr(err.Error())
}

// decodeBody parses JSON, falling back to the raw text.
func decodeBody(data []byte) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(trimmed)
}

// remoteDetail extracts the server's error message from a decoded body.
func remoteDetail(body any) string {
	switch b := body.(type) {
	case map[string]any:
		for _, key := range []string{"message", "error", "msg", "detail"} {
			if s, ok := b[key].(string); ok && s != "" {
				return s
			}
		}
		if errs, ok := b["errors"].([]any); ok && len(errs) > 0 {
			return fmt.Sprint(errs[0])
		}
		if data, err := json.Marshal(b); err == nil {
			return string(data)
		}
	case string:
		return b
	}
	return ""
}
