package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"labbot/pkg/logging"
)

// Per-environment fields, looked up as "{env}.{field}".
const (
	FieldAudience     = "aud"
	FieldBaseURL      = "base-url"
	FieldClientID     = "client-id"
	FieldClientSecret = "client-secret"
	FieldRedirectURL  = "redirect-url"
	FieldState        = "state"
	FieldUserPassword = "user-password"
)

// Global keys shared by every environment.
const (
	KeyChromeDriver   = "webdriver.chrome.driver"
	KeyChromeHeadless = "webdriver.chrome.headless"
)

// Source resolves named settings from environment variables and a config
// file, in that order of precedence.
type Source struct {
	env      string
	filePath string
	v        *viper.Viper
}

// NewSource opens the config file at path. The environment name is the file
// base name without extension, so "lab.yaml" serves the "lab.*" keys.
//
// A missing file is not an error; every lookup then goes to the environment.
func NewSource(path string) (*Source, error) {
	if path == "" {
		return nil, errors.New("config file path is required")
	}

	base := filepath.Base(path)
	s := &Source{
		env: strings.TrimSuffix(base, filepath.Ext(base)),
		v:   viper.New(),
	}

	s.v.AutomaticEnv()
	s.v.SetEnvKeyReplacer(envKeyReplacer)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config file found at %s, using environment variables", path)
			return s, nil
		}
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	s.v.SetConfigFile(path)
	if err := s.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	s.filePath = path

	logging.Info("Config", "Loaded configuration for environment %q from %s", s.env, path)
	return s, nil
}

// Environment returns the environment name derived from the config file.
func (s *Source) Environment() string {
	return s.env
}

// FilePath returns the config file that was read, or "" if none was found.
func (s *Source) FilePath() string {
	return s.filePath
}

// Lookup returns the trimmed value for key and whether it is non-blank.
func (s *Source) Lookup(key string) (string, bool) {
	value := strings.TrimSpace(s.v.GetString(key))
	return value, value != ""
}

// Require returns the value for key or a *ConfigurationError naming it.
func (s *Source) Require(key string) (string, error) {
	value, ok := s.Lookup(key)
	if !ok {
		return "", missingKey(key, s.filePath)
	}
	return value, nil
}

// RequireField returns the per-environment field "{env}.{field}".
func (s *Source) RequireField(field string) (string, error) {
	return s.Require(s.env + "." + field)
}

// RequireBool returns the boolean value for key. Besides the strconv
// spellings it accepts yes/no, on/off and y/n in any case.
func (s *Source) RequireBool(key string) (bool, error) {
	raw, err := s.Require(key)
	if err != nil {
		return false, err
	}

	value, ok := parseBool(raw)
	if !ok {
		return false, &ConfigurationError{
			Key:         key,
			FilePath:    s.filePath,
			Message:     fmt.Sprintf("invalid boolean %q", raw),
			Suggestions: []string{"use true/false, yes/no or on/off"},
		}
	}
	return value, nil
}

func parseBool(raw string) (value, ok bool) {
	switch strings.ToLower(raw) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	value, err := strconv.ParseBool(raw)
	return value, err == nil
}
