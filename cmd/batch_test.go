package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labbot/internal/config"
	"labbot/internal/labbot"
	"labbot/internal/robot"
	"labbot/internal/roster"
	"labbot/internal/testing/fixtures/fhir"
	"labbot/pkg/oauth"
)

// withGlobals sets the global flags for one test.
func withGlobals(t *testing.T, output string, isQuiet bool, cfg string) {
	t.Helper()
	origOutput, origQuiet, origConfig := outputFormat, quiet, configFile
	outputFormat, quiet, configFile = output, isQuiet, cfg
	t.Cleanup(func() {
		outputFormat, quiet, configFile = origOutput, origQuiet, origConfig
	})
}

func TestBatchFlags_UserIDs(t *testing.T) {
	file := filepath.Join(t.TempDir(), "users.txt")
	require.NoError(t, os.WriteFile(file, []byte("b@example.com\nc@example.com\n"), 0o600))

	f := batchFlags{users: []string{"a@example.com", "b@example.com"}, usersFile: file}
	ids, err := f.userIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, ids)

	f = batchFlags{labRoster: true}
	ids, err = f.userIDs()
	require.NoError(t, err)
	assert.Equal(t, roster.Lab(), ids)

	_, err = (&batchFlags{}).userIDs()
	assert.ErrorContains(t, err, "no users given")
}

func TestBatchFlags_Settings(t *testing.T) {
	t.Setenv("LABBOT_WORKERS", "7")
	t.Setenv("LABBOT_PHASE_TIMEOUT", "2m")

	t.Run("env", func(t *testing.T) {
		var f batchFlags
		cmd := &cobra.Command{Use: "x"}
		f.register(cmd)

		s, err := f.settings(cmd)
		require.NoError(t, err)
		assert.Equal(t, 7, s.Workers)
		assert.Equal(t, 2*time.Minute, s.PhaseTimeout)
		assert.Equal(t, "drop", s.OnTaskError)
	})

	t.Run("flags override env", func(t *testing.T) {
		var f batchFlags
		cmd := &cobra.Command{Use: "x"}
		f.register(cmd)
		require.NoError(t, cmd.ParseFlags([]string{"--workers", "3", "--on-task-error", "collect"}))

		s, err := f.settings(cmd)
		require.NoError(t, err)
		assert.Equal(t, 3, s.Workers)
		assert.Equal(t, 2*time.Minute, s.PhaseTimeout)
		assert.Equal(t, "collect", s.OnTaskError)
	})

	t.Run("invalid", func(t *testing.T) {
		var f batchFlags
		cmd := &cobra.Command{Use: "x"}
		f.register(cmd)
		require.NoError(t, cmd.ParseFlags([]string{"--workers", "0"}))

		_, err := f.settings(cmd)
		var configErr *config.ConfigurationError
		assert.True(t, errors.As(err, &configErr))
	})
}

func TestNewBrowser(t *testing.T) {
	b, err := newBrowser(browserChrome, config.BrowserConfig{Headless: true}, 10)
	require.NoError(t, err)
	assert.IsType(t, &robot.ChromeBrowser{}, b)

	b, err = newBrowser(browserSystem, config.BrowserConfig{}, 1)
	require.NoError(t, err)
	assert.IsType(t, &robot.SystemBrowser{}, b)

	_, err = newBrowser(browserSystem, config.BrowserConfig{}, 2)
	assert.Error(t, err)

	_, err = newBrowser("firefox", config.BrowserConfig{}, 1)
	assert.Error(t, err)
}

func TestBatchFlags_Report(t *testing.T) {
	withGlobals(t, "json", true, "lab.yaml")

	results := []labbot.UserResult{
		{User: oauth.UserCredentials{ID: "a"}, Token: &oauth.TokenExchange{AccessToken: "t", Patient: "p"}},
		{User: oauth.UserCredentials{ID: "b"}, Err: errors.New("denied")},
	}

	var buf bytes.Buffer
	cmd := &cobra.Command{Use: "x"}
	cmd.SetOut(&buf)

	f := batchFlags{}
	require.NoError(t, f.report(cmd, 3, results))
	assert.Contains(t, buf.String(), `"count": 2`)

	f.failOnPartial = true
	err := f.report(cmd, 3, results)
	var partial *PartialResultError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 1, partial.Succeeded)
	assert.Equal(t, "2 of 3 users produced no result", err.Error())
}

func TestTokensCommand_MissingConfiguration(t *testing.T) {
	dir := t.TempDir()
	withGlobals(t, "json", true, filepath.Join(dir, "nolab.yaml"))

	cmd := newTokensCmd()
	cmd.SetArgs([]string{"--user", "a@example.com"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()

	var configErr *config.ConfigurationError
	require.True(t, errors.As(err, &configErr), "got %v", err)
	assert.Equal(t, "nolab.aud", configErr.Key)
	assert.Equal(t, ExitCodeConfig, getExitCode(err))
}

func TestRequestCommand_RequiresPath(t *testing.T) {
	cmd := newRequestCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestUsersCommand(t *testing.T) {
	withGlobals(t, "json", true, "lab.yaml")

	var buf bytes.Buffer
	cmd := newUsersCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--user", "b@example.com", "--user", "a@example.com", "--user", "b@example.com"})
	require.NoError(t, cmd.Execute())

	var out struct {
		Users []string `json:"users"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, []string{"b@example.com", "a@example.com"}, out.Users)
	assert.Equal(t, 2, out.Count)
}

func TestDiscoverCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fhir/metadata" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(fhir.CapabilityStatement("https://idp.example.com/authorize", "https://idp.example.com/token"))
	}))
	defer server.Close()

	withGlobals(t, "json", true, "lab.yaml")

	var buf bytes.Buffer
	cmd := newDiscoverCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--base-url", server.URL + "/fhir"})
	require.NoError(t, cmd.Execute())

	var out map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "https://idp.example.com/authorize", out["authorize"])
	assert.Equal(t, "https://idp.example.com/token", out["token"])
	assert.Equal(t, server.URL+"/fhir", out["baseUrl"])
}

func TestDiscoverCommand_BaseURLFromConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nolab.yaml")
	withGlobals(t, "json", true, path)

	cmd := newDiscoverCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()

	var configErr *config.ConfigurationError
	require.True(t, errors.As(err, &configErr), "got %v", err)
	assert.Equal(t, "nolab.base-url", configErr.Key)
}
