// Package oauth provides the OAuth types shared by the labbot robots and
// the batch orchestrator.
//
// # Core Components
//
//   - UserCredentials: one test account at the identity provider
//   - AuthorizationRequest: client settings plus discovered authorize URL,
//     rendered into an authorize URL through golang.org/x/oauth2
//   - TokenExchange: access token and the patient identifier bound to it
//   - BearerChallenge: the WWW-Authenticate reply of a resource server that
//     rejected a token
//
// # Usage
//
//	req := oauth.AuthorizationRequest{
//	    ClientID:     clientID,
//	    AuthorizeURL: endpoints.AuthorizeURL,
//	    RedirectURL:  redirectURL,
//	    State:        state,
//	    Audience:     aud,
//	    Scopes:       []string{"patient/Patient.read"},
//	}
//	authURL, err := req.AuthCodeURL()
//
//	token, err := req.OAuth2Config(endpoints.TokenURL).Exchange(ctx, code)
//	exchange, err := oauth.FromOAuth2Token(token)
package oauth
