package robot

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrStateMismatch is returned when the callback state differs from the state
// sent with the authorization request.
var ErrStateMismatch = errors.New("state mismatch in authorization callback")

// CallbackResult represents the result of an OAuth callback.
type CallbackResult struct {
	// Code is the authorization code from the OAuth provider.
	Code string

	// State is the state parameter to verify against the original request.
	State string

	// Error is the error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the callback result represents an error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// ParseCallbackURL extracts the callback parameters from the URL the identity
// provider redirected to.
func ParseCallbackURL(raw string) (*CallbackResult, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}
	return callbackFromQuery(u.Query()), nil
}

func callbackFromQuery(query url.Values) *CallbackResult {
	return &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}
}

// CallbackError reports an error returned by the identity provider in place
// of an authorization code.
type CallbackError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s: %s", e.Code, e.Description)
	}
	return "authorization denied: " + e.Code
}
