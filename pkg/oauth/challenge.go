package oauth

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
)

// BearerChallenge is a parsed WWW-Authenticate header from a resource server
// that rejected a bearer token (RFC 6750 section 3).
type BearerChallenge struct {
	Scheme           string
	Realm            string
	Scope            string
	Error            string
	ErrorDescription string
}

// String renders the challenge for log and error messages.
func (c *BearerChallenge) String() string {
	switch {
	case c.Error != "" && c.ErrorDescription != "":
		return c.Error + ": " + c.ErrorDescription
	case c.Error != "":
		return c.Error
	default:
		return c.Scheme
	}
}

var authParamPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// ParseBearerChallenge parses a WWW-Authenticate header value such as
//
//	Bearer realm="fhir", error="invalid_token", error_description="expired"
func ParseBearerChallenge(header string) (*BearerChallenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("empty WWW-Authenticate header")
	}

	scheme, params, _ := strings.Cut(header, " ")
	challenge := &BearerChallenge{Scheme: scheme}

	for _, match := range authParamPattern.FindAllStringSubmatch(params, -1) {
		value := match[2]
		switch strings.ToLower(match[1]) {
		case "realm":
			challenge.Realm = value
		case "scope":
			challenge.Scope = value
		case "error":
			challenge.Error = value
		case "error_description":
			challenge.ErrorDescription = value
		}
	}

	return challenge, nil
}

// ChallengeFromResponse returns the challenge of a 401 or 403 response, or
// nil if there is none.
func ChallengeFromResponse(resp *http.Response) *BearerChallenge {
	if resp == nil || (resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden) {
		return nil
	}

	challenge, err := ParseBearerChallenge(resp.Header.Get("WWW-Authenticate"))
	if err != nil {
		return nil
	}
	return challenge
}
