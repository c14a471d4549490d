package model

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a provider failure.
type Kind string

// Failure kinds.
const (
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindAuth        Kind = "auth"
	KindUnavailable Kind = "unavailable"
	KindOther       Kind = "other"
)

// Error is a classified provider failure.
type Error struct {
	Provider string
	Kind     Kind
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Provider + " " + string(e.Kind) + ": " + e.Message
}

// Unwrap returns the provider's original error.
func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindUnavailable:
		return true
	}
	return false
}

// KindOf returns the Kind of err, KindTimeout for a bare deadline, or
// KindOther.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindOther
}

// Classify wraps a provider error. status is the HTTP status when known, 0
// otherwise, in which case the message is inspected. Caller cancellation is
// returned unchanged.
func Classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	return &Error{Provider: provider, Kind: kindFor(status, err), Message: err.Error(), Cause: err}
}

func kindFor(status int, err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindUnavailable
	case status != 0:
		return KindOther
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "rate limit", "rate_limit", "too many requests"):
		return KindRateLimited
	case containsAny(msg, "401", "403", "unauthorized", "authentication", "invalid api key", "api_key"):
		return KindAuth
	case containsAny(msg, "timeout", "deadline"):
		return KindTimeout
	case containsAny(msg, "500", "502", "503", "overloaded", "unavailable", "connection refused"):
		return KindUnavailable
	}
	return KindOther
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
