package mock

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"labbot/internal/testing/fixtures/fhir"
	"labbot/pkg/oauth"
)

const (
	// DefaultFHIRPath is where the mock serves its FHIR API.
	DefaultFHIRPath = "/services/fhir/v0/r4"

	authorizePath = "/oauth2/authorization"
	tokenPath     = "/oauth2/token"
)

// LabServerConfig configures the mock lab: an identity provider plus a FHIR
// API protected by the tokens it issues.
type LabServerConfig struct {
	// ClientID and ClientSecret are the expected client credentials.
	ClientID     string
	ClientSecret string

	// Password is the password shared by every test user.
	Password string

	// Patients maps user IDs to patient ICNs. Users not listed get a
	// deterministic ICN derived from their ID (see ICN).
	Patients map[string]string

	// DeniedUsers are rejected at the authorize endpoint with access_denied.
	DeniedUsers map[string]bool

	// PatientInIDTokenOnly omits the patient field from token responses and
	// carries it only as an ID token claim.
	PatientInIDTokenOnly bool

	// ResponseBody renders the Patient read response. Defaults to a
	// pretty-printed, multi-line FHIR Patient resource.
	ResponseBody func(icn string) string

	// Latency is added to every authorize and FHIR request.
	Latency time.Duration

	// TokenLifetime is how long tokens remain valid.
	TokenLifetime time.Duration

	// Clock is the clock used for token expiry (defaults to RealClock).
	Clock Clock

	// UseTLS serves over HTTPS with a self-signed certificate.
	UseTLS bool
}

// LabServer is a mock lab environment for end-to-end tests.
type LabServer struct {
	config LabServerConfig
	server *httptest.Server
	clock  Clock

	// signingKey signs ID tokens; clients read them unverified.
	signingKey []byte

	mu        sync.Mutex
	authCodes map[string]*labAuthCode
	tokens    map[string]*labToken

	metadataCount  atomic.Int32
	authorizeCount atomic.Int32
	tokenCount     atomic.Int32
	requestCount   atomic.Int32
	inFlight       atomic.Int32
	maxInFlight    atomic.Int32
}

type labAuthCode struct {
	ClientID    string
	RedirectURI string
	Scope       string
	UserID      string
	CreatedAt   time.Time
}

type labToken struct {
	Patient   string
	Scope     string
	ExpiresAt time.Time
}

// NewLabServer creates and starts a mock lab. Call Close when done.
func NewLabServer(config LabServerConfig) *LabServer {
	if config.ClientID == "" {
		config.ClientID = "test-client"
	}
	if config.TokenLifetime == 0 {
		config.TokenLifetime = time.Hour
	}
	if config.ResponseBody == nil {
		config.ResponseBody = DefaultPatientBody
	}

	clock := config.Clock
	if clock == nil {
		clock = RealClock{}
	}

	s := &LabServer{
		config:     config,
		clock:      clock,
		signingKey: []byte(uuid.NewString()),
		authCodes:  make(map[string]*labAuthCode),
		tokens:     make(map[string]*labToken),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+DefaultFHIRPath+"/metadata", s.handleMetadata)
	mux.HandleFunc("GET "+DefaultFHIRPath+"/Patient/{icn}", s.handlePatient)
	mux.HandleFunc("GET "+authorizePath, s.handleAuthorize)
	mux.HandleFunc("POST "+tokenPath, s.handleToken)

	s.server = httptest.NewUnstartedServer(mux)
	if config.UseTLS {
		s.server.StartTLS()
	} else {
		s.server.Start()
	}
	return s
}

// Close shuts the server down.
func (s *LabServer) Close() {
	s.server.Close()
}

// URL returns the server root, e.g. http://127.0.0.1:1234.
func (s *LabServer) URL() string {
	return s.server.URL
}

// BaseURL returns the FHIR base URL.
func (s *LabServer) BaseURL() string {
	return s.server.URL + DefaultFHIRPath
}

// AuthorizeURL returns the authorization endpoint advertised in metadata.
func (s *LabServer) AuthorizeURL() string {
	return s.server.URL + authorizePath
}

// TokenURL returns the token endpoint advertised in metadata.
func (s *LabServer) TokenURL() string {
	return s.server.URL + tokenPath
}

// Client returns an HTTP client that trusts the server's certificate.
func (s *LabServer) Client() *http.Client {
	return s.server.Client()
}

// ICN returns the patient identifier bound to userID.
func (s *LabServer) ICN(userID string) string {
	if icn, ok := s.config.Patients[userID]; ok {
		return icn
	}
	sum := sha256.Sum256([]byte(userID))
	return fmt.Sprintf("%010dV%06d", uint64(sum[0])<<24|uint64(sum[1])<<16|uint64(sum[2])<<8|uint64(sum[3]), uint64(sum[4])<<8|uint64(sum[5]))
}

// MetadataCount returns how many capability statements were served.
func (s *LabServer) MetadataCount() int { return int(s.metadataCount.Load()) }

// AuthorizeCount returns how many authorize requests were received.
func (s *LabServer) AuthorizeCount() int { return int(s.authorizeCount.Load()) }

// TokenCount returns how many token requests were received.
func (s *LabServer) TokenCount() int { return int(s.tokenCount.Load()) }

// RequestCount returns how many FHIR resource requests were received.
func (s *LabServer) RequestCount() int { return int(s.requestCount.Load()) }

// MaxConcurrentRequests returns the highest number of authorize and FHIR
// requests observed in flight at once.
func (s *LabServer) MaxConcurrentRequests() int { return int(s.maxInFlight.Load()) }

// Login plays the part of a person at the identity provider's login page: it
// submits user's credentials to authURL and returns the redirect location.
func (s *LabServer) Login(ctx context.Context, authURL string, user oauth.UserCredentials) (string, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("username", user.ID)
	q.Set("password", user.Password)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	client := *s.server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", fmt.Errorf("login for %s failed with status %d", user, resp.StatusCode)
	}
	return resp.Header.Get("Location"), nil
}

func (s *LabServer) track() func() {
	n := s.inFlight.Add(1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if s.config.Latency > 0 {
		time.Sleep(s.config.Latency)
	}
	return func() { s.inFlight.Add(-1) }
}

func (s *LabServer) handleMetadata(w http.ResponseWriter, r *http.Request) {
	s.metadataCount.Add(1)
	w.Header().Set("Content-Type", "application/fhir+json")
	_, _ = w.Write(fhir.CapabilityStatement(s.AuthorizeURL(), s.TokenURL()))
}

func (s *LabServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	s.authorizeCount.Add(1)
	defer s.track()()

	q := r.URL.Query()
	redirectURI := q.Get("redirect_uri")
	if q.Get("response_type") != "code" || q.Get("client_id") != s.config.ClientID || redirectURI == "" {
		http.Error(w, "invalid authorization request", http.StatusBadRequest)
		return
	}

	username := q.Get("username")
	if username == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<form method="get"><input id="user_email" name="username"><input id="user_password" name="password" type="password"><input type="submit"></form>`)
		return
	}

	callback, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	params := callback.Query()
	params.Set("state", q.Get("state"))

	if s.config.DeniedUsers[username] || q.Get("password") != s.config.Password {
		params.Set("error", "access_denied")
		params.Set("error_description", "invalid credentials")
	} else {
		code := uuid.NewString()
		s.mu.Lock()
		s.authCodes[code] = &labAuthCode{
			ClientID:    q.Get("client_id"),
			RedirectURI: redirectURI,
			Scope:       q.Get("scope"),
			UserID:      username,
			CreatedAt:   s.clock.Now(),
		}
		s.mu.Unlock()
		params.Set("code", code)
	}

	callback.RawQuery = params.Encode()
	http.Redirect(w, r, callback.String(), http.StatusFound)
}

func (s *LabServer) handleToken(w http.ResponseWriter, r *http.Request) {
	s.tokenCount.Add(1)

	if err := r.ParseForm(); err != nil {
		writeTokenError(w, "invalid_request", err.Error())
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostForm.Get("client_id")
		clientSecret = r.PostForm.Get("client_secret")
	}
	if clientID != s.config.ClientID || clientSecret != s.config.ClientSecret {
		writeTokenError(w, "invalid_client", "client authentication failed")
		return
	}
	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeTokenError(w, "unsupported_grant_type", "only authorization_code is supported")
		return
	}

	s.mu.Lock()
	entry, found := s.authCodes[r.PostForm.Get("code")]
	delete(s.authCodes, r.PostForm.Get("code"))
	s.mu.Unlock()

	if !found || entry.RedirectURI != r.PostForm.Get("redirect_uri") {
		writeTokenError(w, "invalid_grant", "unknown code or redirect_uri mismatch")
		return
	}

	icn := s.ICN(entry.UserID)
	accessToken := uuid.NewString()

	s.mu.Lock()
	s.tokens[accessToken] = &labToken{
		Patient:   icn,
		Scope:     entry.Scope,
		ExpiresAt: s.clock.Now().Add(s.config.TokenLifetime),
	}
	s.mu.Unlock()

	idToken, err := s.idToken(entry.UserID, entry.ClientID, icn)
	if err != nil {
		writeTokenError(w, "server_error", err.Error())
		return
	}

	response := map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int(s.config.TokenLifetime.Seconds()),
		"scope":        entry.Scope,
		"id_token":     idToken,
	}
	if !s.config.PatientInIDTokenOnly {
		response["patient"] = icn
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(response)
}

func (s *LabServer) handlePatient(w http.ResponseWriter, r *http.Request) {
	s.requestCount.Add(1)
	defer s.track()()

	token, err := s.bearer(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	icn := r.PathValue("icn")
	if token.Patient != icn {
		http.Error(w, "token is not authorized for this patient", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/fhir+json")
	_, _ = fmt.Fprint(w, s.config.ResponseBody(icn))
}

func (s *LabServer) bearer(r *http.Request) (*labToken, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	token, found := s.tokens[raw]
	if !found {
		return nil, errors.New("unknown token")
	}
	if s.clock.Now().After(token.ExpiresAt) {
		return nil, errors.New("token expired")
	}
	return token, nil
}

// DefaultPatientBody renders a multi-line FHIR Patient resource.
func DefaultPatientBody(icn string) string {
	return fmt.Sprintf("{\"resourceType\":\"Patient\",\"id\":%q}\n{\n  \"meta\": {\"lastUpdated\": \"2024-05-01T00:00:00Z\"}\n}\n", icn)
}

func writeTokenError(w http.ResponseWriter, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func (s *LabServer) idToken(userID, clientID, icn string) (string, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":     s.BaseURL(),
		"sub":     userID,
		"aud":     clientID,
		"iat":     now.Unix(),
		"exp":     now.Add(s.config.TokenLifetime).Unix(),
		"patient": icn,
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign id token: %w", err)
	}
	return signed, nil
}
