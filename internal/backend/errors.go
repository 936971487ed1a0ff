package backend

import (
	"fmt"
	"net/http"
	"strings"
)

// Fixed user-facing phrasing per status code, shown in production builds in
// place of whatever detail the server returned.
var genericMessages = map[int]string{
	http.StatusBadRequest:          "The request could not be processed.",
	http.StatusUnauthorized:        "You need to sign in to continue.",
	http.StatusForbidden:           "You do not have permission to do that.",
	http.StatusNotFound:            "The requested record was not found.",
	http.StatusConflict:            "The request conflicts with existing data.",
	http.StatusUnprocessableEntity: "The submitted data failed validation.",
	http.StatusTooManyRequests:     "Too many requests. Please slow down and try again.",
}

const genericServerMessage = "Something went wrong on our end. Please try again later."

// StatusError describes a non-2xx backend response. Detail always holds the
// server-provided message; Error() redacts it in production builds.
type StatusError struct {
	Code     int
	Detail   string
	Redacted bool
}

func (e *StatusError) Error() string {
	if e.Redacted {
		return GenericMessage(e.Code)
	}
	detail := strings.TrimSpace(e.Detail)
	if detail == "" {
		return GenericMessage(e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, detail)
}

// GenericMessage returns the production phrasing for a status code.
func GenericMessage(code int) string {
	if msg, ok := genericMessages[code]; ok {
		return msg
	}
	if code >= 500 {
		return genericServerMessage
	}
	return "The request failed."
}

// DecodeError reports a response body that could not be parsed. It is
// distinct from StatusError: the HTTP exchange succeeded but the payload is
// not what the client expects.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode backend response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
