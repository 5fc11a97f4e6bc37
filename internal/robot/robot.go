package robot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"labbot/pkg/logging"
	"labbot/pkg/oauth"
)

// Flow is everything needed to authenticate one user.
type Flow struct {
	Authorization oauth.AuthorizationRequest
	TokenURL      string
	User          oauth.UserCredentials
}

// Authenticator obtains a token for one user.
type Authenticator interface {
	Authenticate(ctx context.Context, flow Flow) (*oauth.TokenExchange, error)
}

// Browser completes the interactive part of an authorization code flow and
// returns the parameters the identity provider redirected back with.
type Browser interface {
	Login(ctx context.Context, authURL, redirectURL string, user oauth.UserCredentials) (*CallbackResult, error)
}

// BrowserFunc adapts a function to the Browser interface.
type BrowserFunc func(ctx context.Context, authURL, redirectURL string, user oauth.UserCredentials) (*CallbackResult, error)

// Login calls f.
func (f BrowserFunc) Login(ctx context.Context, authURL, redirectURL string, user oauth.UserCredentials) (*CallbackResult, error) {
	return f(ctx, authURL, redirectURL, user)
}

// Robot authenticates users through a Browser and exchanges the
// authorization code at the token endpoint.
type Robot struct {
	browser    Browser
	httpClient *http.Client
}

// Option configures a Robot.
type Option func(*Robot)

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(r *Robot) {
		r.httpClient = httpClient
	}
}

// New creates a Robot driving the given browser.
func New(browser Browser, opts ...Option) *Robot {
	r := &Robot{
		browser:    browser,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Authenticate runs the full authorization code flow for flow.User.
func (r *Robot) Authenticate(ctx context.Context, flow Flow) (*oauth.TokenExchange, error) {
	if flow.TokenURL == "" {
		return nil, errors.New("token url is required")
	}

	authURL, err := flow.Authorization.AuthCodeURL()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := r.browser.Login(ctx, authURL, flow.Authorization.RedirectURL, flow.User)
	if err != nil {
		return nil, fmt.Errorf("browser login failed: %w", err)
	}
	if result.IsError() {
		return nil, &CallbackError{Code: result.Error, Description: result.ErrorDescription}
	}
	if result.State != flow.Authorization.State {
		logging.Warn("Robot", "State mismatch for %s (expected len %d, got len %d)",
			flow.User, len(flow.Authorization.State), len(result.State))
		return nil, ErrStateMismatch
	}
	if result.Code == "" {
		return nil, errors.New("authorization callback carries no code")
	}
	logging.Debug("Robot", "Login for %s completed in %s", flow.User, logging.Since(start))

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	token, err := flow.Authorization.OAuth2Config(flow.TokenURL).Exchange(exchangeCtx, result.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	return oauth.FromOAuth2Token(token)
}
