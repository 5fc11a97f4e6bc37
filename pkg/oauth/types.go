package oauth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// PatientClaim is the token response field (and JWT claim) carrying the
// patient identifier (ICN) bound to a SMART launch.
const PatientClaim = "patient"

// ErrNoPatient is returned when a token carries no patient identifier.
var ErrNoPatient = errors.New("token response carries no patient identifier")

// UserCredentials identifies one test account at the identity provider.
type UserCredentials struct {
	// ID is the login name, usually an email address.
	ID string `json:"id" yaml:"id"`

	// Password is never rendered by formatters.
	Password string `json:"-" yaml:"-"`
}

// String returns the user ID; the password is never included.
func (u UserCredentials) String() string {
	return u.ID
}

// AuthorizationRequest holds everything needed to start an authorization
// code flow for one user.
type AuthorizationRequest struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	RedirectURL  string
	State        string
	Audience     string
	Scopes       []string
}

// Validate checks that the request can be rendered into an authorize URL.
func (r AuthorizationRequest) Validate() error {
	var missing []string
	if r.ClientID == "" {
		missing = append(missing, "client id")
	}
	if r.AuthorizeURL == "" {
		missing = append(missing, "authorize url")
	}
	if r.RedirectURL == "" {
		missing = append(missing, "redirect url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("authorization request missing %s", strings.Join(missing, ", "))
	}
	if _, err := url.Parse(r.AuthorizeURL); err != nil {
		return fmt.Errorf("invalid authorize url: %w", err)
	}
	return nil
}

// OAuth2Config returns the golang.org/x/oauth2 configuration for this request
// against the given token endpoint.
func (r AuthorizationRequest) OAuth2Config(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		RedirectURL:  r.RedirectURL,
		Scopes:       append([]string(nil), r.Scopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:  r.AuthorizeURL,
			TokenURL: tokenURL,
		},
	}
}

// AuthCodeURL renders the URL a browser must open to start the flow.
func (r AuthorizationRequest) AuthCodeURL() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	var opts []oauth2.AuthCodeOption
	if r.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("aud", r.Audience))
	}
	return r.OAuth2Config("").AuthCodeURL(r.State, opts...), nil
}

// TokenExchange is the outcome of a successful authorization code flow.
type TokenExchange struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// Patient is the patient identifier (ICN) bound to the token.
	Patient string `json:"patient"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`

	// Expiry is the token expiration time, zero if unknown.
	Expiry time.Time `json:"expiry,omitempty"`

	// IDToken is the OIDC ID token (if available).
	IDToken string `json:"id_token,omitempty"`
}

// Scopes returns the granted scope as a slice of individual scopes.
func (t *TokenExchange) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// ToOAuth2Token converts the exchange to an oauth2.Token for use with
// golang.org/x/oauth2 transports.
func (t *TokenExchange) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		Expiry:      t.Expiry,
	}

	extra := map[string]interface{}{PatientClaim: t.Patient}
	if t.IDToken != "" {
		extra["id_token"] = t.IDToken
	}
	return token.WithExtra(extra)
}

// FromOAuth2Token builds a TokenExchange from a token endpoint response.
//
// The patient is read from the "patient" response field. When the field is
// absent, the ID token and then the access token are decoded (without
// signature verification) and their "patient" claim is used.
func FromOAuth2Token(token *oauth2.Token) (*TokenExchange, error) {
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("token response carries no access token")
	}

	exchange := &TokenExchange{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Expiry:      token.Expiry,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		exchange.Scope = scope
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		exchange.IDToken = idToken
	}

	if patient, ok := token.Extra(PatientClaim).(string); ok && patient != "" {
		exchange.Patient = patient
		return exchange, nil
	}

	for _, raw := range []string{exchange.IDToken, exchange.AccessToken} {
		if patient := patientFromJWT(raw); patient != "" {
			exchange.Patient = patient
			return exchange, nil
		}
	}

	return nil, ErrNoPatient
}

// patientFromJWT extracts the patient claim from a JWT without verifying it.
func patientFromJWT(raw string) string {
	if strings.Count(raw, ".") != 2 {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}

	patient, _ := claims[PatientClaim].(string)
	return patient
}
