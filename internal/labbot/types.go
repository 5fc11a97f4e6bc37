package labbot

import (
	"fmt"
	"time"

	"labbot/internal/config"
	"labbot/pkg/oauth"
)

// ErrorPolicy decides what a failing task contributes to a phase's results.
type ErrorPolicy string

const (
	// ErrorPolicyDrop logs the failure and contributes nothing.
	ErrorPolicyDrop ErrorPolicy = "drop"
	// ErrorPolicyCollect contributes an entry with Err set.
	ErrorPolicyCollect ErrorPolicy = "collect"
)

// ParseErrorPolicy parses "drop" or "collect". Empty means drop.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "", ErrorPolicyDrop:
		return ErrorPolicyDrop, nil
	case ErrorPolicyCollect:
		return ErrorPolicyCollect, nil
	default:
		return "", fmt.Errorf("unknown task error policy %q (want drop or collect)", s)
	}
}

// Options tune the worker pools of both phases.
type Options struct {
	// Workers is the number of tasks run concurrently per phase.
	Workers int

	// PhaseTimeout bounds how long a phase waits for its tasks.
	PhaseTimeout time.Duration

	// OnTaskError selects the failure policy.
	OnTaskError ErrorPolicy
}

// DefaultOptions returns 10 workers, a 10 minute bound and the drop policy.
func DefaultOptions() Options {
	return Options{
		Workers:      config.DefaultWorkers,
		PhaseTimeout: config.DefaultPhaseTimeout,
		OnTaskError:  ErrorPolicyDrop,
	}
}

// OptionsFromSettings converts run settings into Options.
func OptionsFromSettings(s config.Settings) (Options, error) {
	policy, err := ParseErrorPolicy(s.OnTaskError)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Workers:      s.Workers,
		PhaseTimeout: s.PhaseTimeout,
		OnTaskError:  policy,
	}, nil
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Workers < 1 {
		o.Workers = d.Workers
	}
	if o.PhaseTimeout <= 0 {
		o.PhaseTimeout = d.PhaseTimeout
	}
	if o.OnTaskError == "" {
		o.OnTaskError = d.OnTaskError
	}
	return o
}

// Batch is the configuration shared by every user of a run. It is read
// concurrently by all workers and never modified.
type Batch struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	State        string
	Audience     string
	Scopes       []string
	UserPassword string
}

// BatchFromConfig builds a Batch from the lab properties and requested scopes.
func BatchFromConfig(cfg config.LabConfig, scopes []string) Batch {
	return Batch{
		BaseURL:      cfg.BaseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		State:        cfg.State,
		Audience:     cfg.Audience,
		Scopes:       append([]string(nil), scopes...),
		UserPassword: cfg.UserPassword,
	}
}

// Credentials returns the credentials of the test user id.
func (b Batch) Credentials(id string) oauth.UserCredentials {
	return oauth.UserCredentials{ID: id, Password: b.UserPassword}
}

// AuthorizationRequest builds the request for one flow against authorizeURL.
func (b Batch) AuthorizationRequest(authorizeURL string) oauth.AuthorizationRequest {
	return oauth.AuthorizationRequest{
		ClientID:     b.ClientID,
		ClientSecret: b.ClientSecret,
		AuthorizeURL: authorizeURL,
		RedirectURL:  b.RedirectURL,
		State:        b.State,
		Audience:     b.Audience,
		Scopes:       append([]string(nil), b.Scopes...),
	}
}

// UserResult is the outcome for one user.
type UserResult struct {
	User oauth.UserCredentials `json:"user" yaml:"user"`

	// Token is nil when acquisition failed.
	Token *oauth.TokenExchange `json:"token,omitempty" yaml:"token,omitempty"`

	// Response is the first line of the response body. HasResponse tells an
	// empty first line apart from no response.
	Response    string `json:"response,omitempty" yaml:"response,omitempty"`
	HasResponse bool   `json:"hasResponse" yaml:"hasResponse"`

	// Err is set only under ErrorPolicyCollect.
	Err error `json:"-" yaml:"-"`
}

// Failed reports whether the entry records a failure.
func (r UserResult) Failed() bool {
	return r.Err != nil
}
