package formatting

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"labbot/internal/labbot"
	"labbot/pkg/smart"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatResults writes a ResultSummary.
func (f *YAMLFormatter) FormatResults(results []labbot.UserResult) error {
	return f.write(Summarize(results, f.options.ShowTokens))
}

// FormatEndpoints writes the base URL and its endpoints.
func (f *YAMLFormatter) FormatEndpoints(baseURL string, endpoints smart.Endpoints) error {
	return f.write(struct {
		BaseURL         string `yaml:"baseUrl"`
		smart.Endpoints `yaml:",inline"`
	}{baseURL, endpoints})
}

// FormatUsers writes the user IDs with their count.
func (f *YAMLFormatter) FormatUsers(users []string) error {
	if users == nil {
		users = []string{}
	}
	return f.write(struct {
		Users []string `yaml:"users"`
		Count int      `yaml:"count"`
	}{users, len(users)})
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}

func (f *YAMLFormatter) write(v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	_, err = f.options.writer().Write(out)
	return err
}
