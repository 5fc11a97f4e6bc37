package labbot

import (
	"context"

	"labbot/internal/robot"
	"labbot/pkg/oauth"
	"labbot/pkg/smart"
)

// Discoverer locates the OAuth endpoints of a FHIR base URL.
type Discoverer interface {
	DiscoverEndpoints(ctx context.Context, baseURL string) (smart.Endpoints, error)
}

// TokenAcquirer obtains a token for one user.
type TokenAcquirer interface {
	AcquireToken(ctx context.Context, user oauth.UserCredentials, batch Batch) (*oauth.TokenExchange, error)
}

// Acquirer discovers endpoints and delegates the login to an Authenticator.
// It holds no per-user state and is safe for concurrent use.
type Acquirer struct {
	discoverer    Discoverer
	authenticator robot.Authenticator
}

// NewAcquirer creates an Acquirer.
func NewAcquirer(discoverer Discoverer, authenticator robot.Authenticator) *Acquirer {
	return &Acquirer{discoverer: discoverer, authenticator: authenticator}
}

// AcquireToken runs the authorization flow for user against batch.BaseURL.
func (a *Acquirer) AcquireToken(ctx context.Context, user oauth.UserCredentials, batch Batch) (*oauth.TokenExchange, error) {
	endpoints, err := a.discoverer.DiscoverEndpoints(ctx, batch.BaseURL)
	if err != nil {
		return nil, &EndpointDiscoveryError{BaseURL: batch.BaseURL, Err: err}
	}

	token, err := a.authenticator.Authenticate(ctx, robot.Flow{
		Authorization: batch.AuthorizationRequest(endpoints.AuthorizeURL),
		TokenURL:      endpoints.TokenURL,
		User:          user,
	})
	if err != nil {
		return nil, &AuthenticationError{User: user.ID, Err: err}
	}
	return token, nil
}
