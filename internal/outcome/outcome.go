// Package outcome normalizes every HTTP exchange into a single result shape.
//
// A Client wraps a transport.Transport. Client.Do never panics and never
// returns an error: successful responses, error statuses, and network failures
// all come back as an Outcome, so callers branch on Outcome.OK instead of
// handling errors.
//
// # Outcome Variants
//
//	Ok{Status, Header, Body}   status accepted by the request's predicate
//	Err{Status?, Detail}       anything else; HasStatus is false on network failure
//
// Detail is always non-empty on Err. It carries the remote error payload when
// the server supplied one, otherwise a local description.
package outcome

import (
	"fmt"
	"net/http"
)

// Outcome is the normalized result of one request.
type Outcome struct {
	// OK selects the variant.
	OK bool

	// Status is the HTTP status. Only meaningful when HasStatus is true.
	Status    int
	HasStatus bool

	// Header holds response headers when the server answered.
	Header http.Header

	// Body is the decoded JSON body (map[string]any, []any, ...), or the raw
	// text when the body is not JSON. Nil for empty bodies.
	Body any

	// Detail describes the failure. Empty on Ok.
	Detail string
}

// Ok builds a success outcome.
func Ok(status int, header http.Header, body any) Outcome {
	return Outcome{OK: true, Status: status, HasStatus: true, Header: header, Body: body}
}

// Err builds a failure outcome with a status.
func Err(status int, header http.Header, body any, detail string) Outcome {
	if detail == "" {
		detail = fallbackDetail(status)
	}
	return Outcome{Status: status, HasStatus: true, Header: header, Body: body, Detail: detail}
}

// NetErr builds a failure outcome with no status.
func NetErr(detail string) Outcome {
	if detail == "" {
		detail = "request failed"
	}
	return Outcome{Detail: detail}
}

// StatusIs reports whether the outcome carries the given status code.
func (o Outcome) StatusIs(code int) bool {
	return o.HasStatus && o.Status == code
}

// Object returns the body as a JSON object, or nil.
func (o Outcome) Object() map[string]any {
	m, _ := o.Body.(map[string]any)
	return m
}

// String renders the outcome for diagnostics.
func (o Outcome) String() string {
	if o.OK {
		return fmt.Sprintf("Ok(%d)", o.Status)
	}
	if o.HasStatus {
		return fmt.Sprintf("Err(%d: %s)", o.Status, o.Detail)
	}
	return fmt.Sprintf("Err(%s)", o.Detail)
}

func fallbackDetail(status int) string {
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", status)
}
