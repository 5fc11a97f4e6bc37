package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// DefaultWorkers is the size of each phase's worker pool.
	DefaultWorkers = 10

	// DefaultPhaseTimeout bounds how long a phase waits for its workers.
	DefaultPhaseTimeout = 10 * time.Minute
)

// Settings are the run tuning knobs. They come from LABBOT_* environment
// variables and may be overridden by command line flags.
type Settings struct {
	Workers           int           `env:"LABBOT_WORKERS" envDefault:"10"`
	PhaseTimeout      time.Duration `env:"LABBOT_PHASE_TIMEOUT" envDefault:"10m"`
	OnTaskError       string        `env:"LABBOT_ON_TASK_ERROR" envDefault:"drop"`
	TLSInsecure       bool          `env:"LABBOT_TLS_INSECURE" envDefault:"true"`
	HTTPTimeout       time.Duration `env:"LABBOT_HTTP_TIMEOUT" envDefault:"30s"`
	DiscoveryCacheTTL time.Duration `env:"LABBOT_DISCOVERY_CACHE_TTL" envDefault:"30m"`
	LogLevel          string        `env:"LABBOT_LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LABBOT_LOG_FORMAT" envDefault:"text"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadSettings reads Settings from the environment and validates them.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the numeric knobs.
func (s Settings) Validate() error {
	var errs []error
	if s.Workers < 1 {
		errs = append(errs, &ConfigurationError{Key: "workers", Message: fmt.Sprintf("must be at least 1, got %d", s.Workers)})
	}
	if s.PhaseTimeout <= 0 {
		errs = append(errs, &ConfigurationError{Key: "phase-timeout", Message: fmt.Sprintf("must be positive, got %s", s.PhaseTimeout)})
	}
	if s.HTTPTimeout < 0 {
		errs = append(errs, &ConfigurationError{Key: "http-timeout", Message: fmt.Sprintf("must not be negative, got %s", s.HTTPTimeout)})
	}
	return errors.Join(errs...)
}

// HTTPClient builds the client shared by discovery, token exchange and the
// request phase. Certificate validation is skipped when TLSInsecure is set.
func (s Settings) HTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.TLSInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // lab environments use self-signed certificates
	}
	return &http.Client{
		Timeout:   s.HTTPTimeout,
		Transport: transport,
	}
}
