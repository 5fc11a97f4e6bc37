package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a required setting that is absent, blank or
// unparseable. It is fatal: a run never starts without its configuration.
type ConfigurationError struct {
	Key         string   `json:"key"`         // Fully qualified key, e.g. "lab.base-url"
	FilePath    string   `json:"filePath"`    // Config file consulted, empty if none was found
	Message     string   `json:"message"`     // Human-readable error message
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %q: %s", ce.Key, ce.Message)
}

// DetailedError returns a detailed error message with all context
func (ce *ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error: %s", ce.Key))
	if ce.FilePath != "" {
		parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	}
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// EnvVarName returns the environment variable consulted for key when the
// config file does not define it.
func EnvVarName(key string) string {
	return strings.ToUpper(envKeyReplacer.Replace(key))
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

func missingKey(key, filePath string) *ConfigurationError {
	suggestions := []string{fmt.Sprintf("export %s=<value>", EnvVarName(key))}
	if filePath != "" {
		suggestions = append([]string{fmt.Sprintf("define %s in %s", key, filePath)}, suggestions...)
	}
	return &ConfigurationError{
		Key:         key,
		FilePath:    filePath,
		Message:     "required value is missing",
		Suggestions: suggestions,
	}
}
