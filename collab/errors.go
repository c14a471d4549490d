// Package collab holds the external collaborators agents call through:
// repository browsing, the workspace file store, the code sandbox and web
// search. This file defines the error type they share.
package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Category classifies an external service failure.
type Category string

const (
	NotFound     Category = "not_found"
	AccessDenied Category = "access_denied"
	RateLimited  Category = "rate_limited"
	Other        Category = "other"
)

// Error is a failure reported by an external service.
type Error struct {
	Service  string   `json:"service"`
	Category Category `json:"category"`
	Status   int      `json:"status,omitempty"`
	Message  string   `json:"message"`
	Cause    error    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("[%s] %s %d: %s", e.Category, e.Service, e.Status, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Service, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// FromStatus builds an Error for an HTTP status code.
func FromStatus(service string, status int, message string) *Error {
	cat := Other
	switch status {
	case http.StatusNotFound:
		cat = NotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		cat = AccessDenied
	case http.StatusTooManyRequests:
		cat = RateLimited
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Service: service, Category: cat, Status: status, Message: message}
}

// FromResponse builds an Error from a non-success response, reading the
// service's message from a JSON body when one is present. GitHub signals an
// exhausted quota with a 403 and a zero remaining count; that is reported as
// RateLimited rather than AccessDenied.
func FromResponse(service string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		for _, m := range []string{payload.Message, payload.Error, payload.Detail} {
			if m != "" {
				msg = m
				break
			}
		}
	}

	e := FromStatus(service, resp.StatusCode, msg)
	if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		e.Category = RateLimited
	}
	return e
}

// Wrap reports a transport failure (no response) from service.
func Wrap(service string, err error) *Error {
	return &Error{Service: service, Category: Other, Message: err.Error(), Cause: err}
}

// CategoryOf returns the category of err, or "" when err is nil.
// Errors that are not an *Error are Other.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return Other
}

// Describe renders err as text suitable for a conversation message about subject.
func Describe(subject string, err error) string {
	switch CategoryOf(err) {
	case NotFound:
		return fmt.Sprintf("'%s' was not found. Please check the name and try again.", subject)
	case AccessDenied:
		return fmt.Sprintf("Access denied to '%s'. It may be private or the token may lack permission.", subject)
	case RateLimited:
		return fmt.Sprintf("Rate limit reached while accessing '%s'. Please wait and try again.", subject)
	default:
		return fmt.Sprintf("An error occurred while accessing '%s': %v", subject, err)
	}
}

type explained struct {
	text string
	err  error
}

func (e *explained) Error() string { return e.text }
func (e *explained) Unwrap() error { return e.err }

// Explain wraps err so its message is the Describe text for subject while
// errors.As and CategoryOf still see the original error.
func Explain(subject string, err error) error {
	if err == nil {
		return nil
	}
	return &explained{text: Describe(subject, err), err: err}
}
