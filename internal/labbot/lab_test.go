package labbot_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labbot/internal/labbot"
	"labbot/internal/robot"
	"labbot/internal/testing/fixtures/fhir"
	"labbot/internal/testing/mock"
	"labbot/pkg/oauth"
	"labbot/pkg/smart"
)

const patientPath = mock.DefaultFHIRPath + "/Patient/{icn}"

func labBrowser(lab *mock.LabServer) robot.Browser {
	return robot.BrowserFunc(func(ctx context.Context, authURL, _ string, user oauth.UserCredentials) (*robot.CallbackResult, error) {
		location, err := lab.Login(ctx, authURL, user)
		if err != nil {
			return nil, err
		}
		return robot.ParseCallbackURL(location)
	})
}

func labBatch(baseURL string) labbot.Batch {
	return labbot.Batch{
		BaseURL:      baseURL,
		ClientID:     "test-client",
		ClientSecret: "secret",
		RedirectURL:  "https://app.example.com/callback",
		State:        "labbot-state",
		Audience:     baseURL,
		Scopes:       []string{"patient/Patient.read"},
		UserPassword: "pw",
	}
}

func newLab(t *testing.T, cfg mock.LabServerConfig) *mock.LabServer {
	t.Helper()
	cfg.ClientSecret = "secret"
	cfg.Password = "pw"
	lab := mock.NewLabServer(cfg)
	t.Cleanup(lab.Close)
	return lab
}

func newLabAcquirer(lab *mock.LabServer, discovery *smart.Client) *labbot.Acquirer {
	return labbot.NewAcquirer(discovery, robot.New(labBrowser(lab), robot.WithHTTPClient(lab.Client())))
}

func TestBot_Request_ThreeUsers(t *testing.T) {
	lab := newLab(t, mock.LabServerConfig{UseTLS: true})
	discovery := smart.NewClient(smart.WithHTTPClient(lab.Client()))

	users := []string{
		"vasdvp+IDME_01@gmail.com",
		"vasdvp+IDME_02@gmail.com",
		"vasdvp+IDME_03@gmail.com",
	}
	bot := labbot.New(labBatch(lab.BaseURL()), newLabAcquirer(lab, discovery),
		labbot.WithHTTPClient(lab.Client()),
		labbot.WithUserIDs(users))

	results, err := bot.Request(context.Background(), patientPath)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		require.NotNil(t, r.Token, r.User.ID)
		assert.NotEmpty(t, r.Token.AccessToken)
		assert.Equal(t, lab.ICN(r.User.ID), r.Token.Patient)
		assert.True(t, r.HasResponse)
		assert.Equal(t, strings.SplitN(mock.DefaultPatientBody(r.Token.Patient), "\n", 2)[0], r.Response)
	}

	assert.Equal(t, 1, lab.MetadataCount(), "endpoints are discovered once per base url")
	assert.Equal(t, 3, lab.TokenCount())
	assert.Equal(t, 3, lab.RequestCount())
}

func TestBot_Tokens_PatientFromIDToken(t *testing.T) {
	lab := newLab(t, mock.LabServerConfig{PatientInIDTokenOnly: true})
	discovery := smart.NewClient(smart.WithHTTPClient(lab.Client()))

	bot := labbot.New(labBatch(lab.BaseURL()), newLabAcquirer(lab, discovery),
		labbot.WithUserIDs([]string{"va.api.user+idme.101@gmail.com"}))

	results, err := bot.Tokens(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, lab.ICN("va.api.user+idme.101@gmail.com"), results[0].Token.Patient)
}

func TestBot_Tokens_DeniedUsersDropped(t *testing.T) {
	lab := newLab(t, mock.LabServerConfig{DeniedUsers: map[string]bool{"denied@example.com": true}})
	discovery := smart.NewClient(smart.WithHTTPClient(lab.Client()))

	bot := labbot.New(labBatch(lab.BaseURL()), newLabAcquirer(lab, discovery),
		labbot.WithUserIDs([]string{"ok-1@example.com", "denied@example.com", "ok-2@example.com"}))

	results, err := bot.Tokens(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.User.ID)
	}
	assert.ElementsMatch(t, []string{"ok-1@example.com", "ok-2@example.com"}, ids)
}

func TestBot_DiscoveryFailureIsolatedToBaseURL(t *testing.T) {
	lab := newLab(t, mock.LabServerConfig{})

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/metadata") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/fhir+json")
		_, _ = w.Write(fhir.Mutate(lab.AuthorizeURL(), lab.TokenURL(), func(doc map[string]any) {
			fhir.OAuthURIs(doc)["url"] = "http://example.com/not-oauth-uris"
		}))
	}))
	t.Cleanup(broken.Close)

	discovery := smart.NewClient()
	acquirer := newLabAcquirer(lab, discovery)
	users := []string{"a@example.com", "b@example.com", "c@example.com"}

	brokenBot := labbot.New(labBatch(broken.URL+"/fhir"), acquirer,
		labbot.WithUserIDs(users),
		labbot.WithOptions(labbot.Options{OnTaskError: labbot.ErrorPolicyCollect}))
	failed, err := brokenBot.Tokens(context.Background())
	require.NoError(t, err)
	require.Len(t, failed, 3)
	for _, r := range failed {
		var discoveryErr *labbot.EndpointDiscoveryError
		require.True(t, errors.As(r.Err, &discoveryErr), r.User.ID)

		var malformed *smart.MalformedCapabilityDocumentError
		require.True(t, errors.As(r.Err, &malformed))
		assert.Equal(t, smart.StepOAuthURIs, malformed.Step)
	}

	healthyBot := labbot.New(labBatch(lab.BaseURL()), acquirer, labbot.WithUserIDs(users))
	results, err := healthyBot.Tokens(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestBot_Request_RespectsWorkerLimit(t *testing.T) {
	lab := newLab(t, mock.LabServerConfig{Latency: 20 * time.Millisecond})
	discovery := smart.NewClient(smart.WithHTTPClient(lab.Client()))

	users := make([]string, 12)
	for i := range users {
		users[i] = "user" + string(rune('a'+i)) + "@example.com"
	}

	bot := labbot.New(labBatch(lab.BaseURL()), newLabAcquirer(lab, discovery),
		labbot.WithHTTPClient(lab.Client()),
		labbot.WithUserIDs(users),
		labbot.WithOptions(labbot.Options{Workers: 3}))

	results, err := bot.Request(context.Background(), patientPath)
	require.NoError(t, err)
	assert.Len(t, results, 12)
	assert.LessOrEqual(t, lab.MaxConcurrentRequests(), 3)
}

func TestBot_Request_CustomResponse(t *testing.T) {
	lab := newLab(t, mock.LabServerConfig{
		ResponseBody: func(icn string) string { return "line one for " + icn + "\r\nline two\n" },
	})
	discovery := smart.NewClient(smart.WithHTTPClient(lab.Client()))

	bot := labbot.New(labBatch(lab.BaseURL()), newLabAcquirer(lab, discovery),
		labbot.WithHTTPClient(lab.Client()),
		labbot.WithUserIDs([]string{"x@example.com"}))

	results, err := bot.Request(context.Background(), patientPath)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "line one for "+lab.ICN("x@example.com"), results[0].Response)
}

func TestBot_DispatchRequests_RejectedTokenCarriesChallenge(t *testing.T) {
	lab := newLab(t, mock.LabServerConfig{})
	bot := labbot.New(labBatch(lab.BaseURL()), nil,
		labbot.WithHTTPClient(lab.Client()),
		labbot.WithOptions(labbot.Options{OnTaskError: labbot.ErrorPolicyCollect}))

	forged := []labbot.UserResult{{
		User:  oauth.UserCredentials{ID: "forger@example.com"},
		Token: &oauth.TokenExchange{AccessToken: "not-issued-by-the-lab", Patient: "1011537977V693883"},
	}}

	results, err := bot.DispatchRequests(context.Background(), patientPath, forged)
	require.NoError(t, err)
	require.Len(t, results, 1)

	var reqErr *labbot.RequestError
	require.True(t, errors.As(results[0].Err, &reqErr))
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	require.NotNil(t, reqErr.Challenge)
	assert.Equal(t, "invalid_token", reqErr.Challenge.Error)
}
