package outcome

import (
	"net/http"
	"strings"
)

// ErrorKind categorizes a failed Outcome.
type ErrorKind string

const (
	KindNone         ErrorKind = "none"
	KindConflict     ErrorKind = "conflict"
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnknown      ErrorKind = "unknown"
)

// conflictPhrases are the remote wordings treated as "resource already exists"
// when the status code alone does not say so.
var conflictPhrases = []string{
	"already exists",
	"already registered",
	"already in use",
	"duplicate",
}

// Classify maps an Outcome to an ErrorKind.
//
// Status codes decide first. The message is only inspected when there is no
// status or the status is ambiguous (a plain 400 may still mean "already
// exists" on services that do not use 409).
func Classify(o Outcome) ErrorKind {
	if o.OK {
		return KindNone
	}

	if o.HasStatus {
		switch o.Status {
		case http.StatusConflict:
			return KindConflict
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindUnauthorized
		case http.StatusNotFound:
			return KindNotFound
		case http.StatusTooManyRequests:
			return KindRateLimited
		case http.StatusUnprocessableEntity:
			return KindValidation
		case http.StatusBadRequest:
			if mentionsConflict(o.Detail) {
				return KindConflict
			}
			return KindValidation
		}
	}

	if mentionsConflict(o.Detail) {
		return KindConflict
	}
	return KindUnknown
}

func mentionsConflict(detail string) bool {
	lower := strings.ToLower(detail)
	for _, p := range conflictPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
