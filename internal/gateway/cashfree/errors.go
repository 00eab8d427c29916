package cashfree

import (
	"errors"
	"fmt"
)

var (
	ErrTransport    = errors.New("cashfree: transport failure")
	ErrUnauthorized = errors.New("cashfree: credentials rejected")
	ErrRateLimited  = errors.New("cashfree: rate limited")
	ErrUpstream     = errors.New("cashfree: upstream error")
	ErrUnexpected   = errors.New("cashfree: unexpected response")
)

// Error describes a failed provider call. Kind is one of the sentinels above,
// so callers can match with errors.Is.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func kindForStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status == 429:
		return ErrRateLimited
	case status >= 500:
		return ErrUpstream
	default:
		return ErrUnexpected
	}
}
