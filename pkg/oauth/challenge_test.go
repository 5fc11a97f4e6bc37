package oauth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearerChallenge(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   BearerChallenge
	}{
		{
			name:   "scheme only",
			header: "Bearer",
			want:   BearerChallenge{Scheme: "Bearer"},
		},
		{
			name:   "invalid token",
			header: `Bearer realm="fhir", error="invalid_token", error_description="The access token expired"`,
			want: BearerChallenge{
				Scheme:           "Bearer",
				Realm:            "fhir",
				Error:            "invalid_token",
				ErrorDescription: "The access token expired",
			},
		},
		{
			name:   "insufficient scope",
			header: `Bearer error="insufficient_scope", SCOPE="patient/Observation.read"`,
			want:   BearerChallenge{Scheme: "Bearer", Error: "insufficient_scope", Scope: "patient/Observation.read"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBearerChallenge(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}

	_, err := ParseBearerChallenge("  ")
	assert.Error(t, err)
}

func TestBearerChallenge_String(t *testing.T) {
	assert.Equal(t, "invalid_token: expired", (&BearerChallenge{Error: "invalid_token", ErrorDescription: "expired"}).String())
	assert.Equal(t, "invalid_token", (&BearerChallenge{Error: "invalid_token"}).String())
	assert.Equal(t, "Bearer", (&BearerChallenge{Scheme: "Bearer"}).String())
}

func TestChallengeFromResponse(t *testing.T) {
	header := http.Header{}
	header.Set("WWW-Authenticate", `Bearer error="invalid_token"`)

	challenge := ChallengeFromResponse(&http.Response{StatusCode: http.StatusUnauthorized, Header: header})
	require.NotNil(t, challenge)
	assert.Equal(t, "invalid_token", challenge.Error)

	assert.Nil(t, ChallengeFromResponse(nil))
	assert.Nil(t, ChallengeFromResponse(&http.Response{StatusCode: http.StatusOK, Header: header}))
	assert.Nil(t, ChallengeFromResponse(&http.Response{StatusCode: http.StatusUnauthorized, Header: http.Header{}}))
}
