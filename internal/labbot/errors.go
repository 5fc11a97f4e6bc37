package labbot

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"labbot/pkg/oauth"
)

// ErrNoToken is wrapped in an AuthenticationError when an acquirer reports
// success without a token.
var ErrNoToken = errors.New("acquirer returned no token")

// EndpointDiscoveryError indicates the OAuth endpoints of a base URL could not
// be discovered. It fails one user's token acquisition.
type EndpointDiscoveryError struct {
	BaseURL string
	Err     error
}

// Error implements the error interface.
func (e *EndpointDiscoveryError) Error() string {
	return fmt.Sprintf("endpoint discovery for %s failed: %v", e.BaseURL, e.Err)
}

// Unwrap returns the underlying error.
func (e *EndpointDiscoveryError) Unwrap() error {
	return e.Err
}

// AuthenticationError indicates the identity provider flow for one user could
// not complete.
type AuthenticationError struct {
	User string
	Err  error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication of %s failed: %v", e.User, e.Err)
}

// Unwrap returns the underlying error.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// FailureKind categorizes a RequestError.
type FailureKind int

const (
	// FailureUnknown indicates an unclassified failure.
	FailureUnknown FailureKind = iota
	// FailureTLS indicates a TLS/certificate verification error.
	FailureTLS
	// FailureDNS indicates a DNS resolution failure.
	FailureDNS
	// FailureTimeout indicates the request timed out.
	FailureTimeout
	// FailureNetwork indicates a connectivity error (refused, unreachable, reset).
	FailureNetwork
	// FailureStatus indicates the server answered with an error status.
	FailureStatus
	// FailureRead indicates the response body could not be read.
	FailureRead
)

// String returns a human-readable name for the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureTLS:
		return "TLS certificate error"
	case FailureDNS:
		return "DNS resolution error"
	case FailureTimeout:
		return "Timeout"
	case FailureNetwork:
		return "Network error"
	case FailureStatus:
		return "HTTP error status"
	case FailureRead:
		return "Read error"
	default:
		return "Request error"
	}
}

// RequestError indicates one user's authenticated request failed.
type RequestError struct {
	User       string
	URL        string
	Kind       FailureKind
	StatusCode int

	// Challenge is the bearer challenge of a 401 or 403 response, if any.
	Challenge *oauth.BearerChallenge

	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Kind == FailureStatus {
		if e.Challenge != nil && e.Challenge.Error != "" {
			return fmt.Sprintf("request for %s to %s failed with status %d (%s)", e.User, e.URL, e.StatusCode, e.Challenge)
		}
		return fmt.Sprintf("request for %s to %s failed with status %d", e.User, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("request for %s to %s failed (%s): %v", e.User, e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyTransportError analyzes an error returned by http.Client.Do.
func classifyTransportError(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	if isTLSError(err) {
		return FailureTLS
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureDNS
	}
	if isTimeoutError(err) {
		return FailureTimeout
	}
	if isNetworkError(err.Error()) {
		return FailureNetwork
	}
	return FailureUnknown
}

// isTLSError checks if the error is related to TLS/certificate issues.
func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError
	var verifyErr *tls.CertificateVerificationError

	if errors.As(err, &certErr) || errors.As(err, &hostErr) ||
		errors.As(err, &unknownAuthErr) || errors.As(err, &verifyErr) {
		return true
	}

	errStr := err.Error()
	for _, keyword := range []string{"x509:", "certificate", "tls:", "TLS handshake"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// isTimeoutError checks if the error is a timeout.
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if the error string indicates a network connectivity issue.
func isNetworkError(errStr string) bool {
	for _, keyword := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
		"connect:",
	} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
