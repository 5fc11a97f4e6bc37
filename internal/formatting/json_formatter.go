package formatting

import (
	"fmt"

	"labbot/internal/labbot"
	"labbot/pkg/smart"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

// FormatResults writes a ResultSummary.
func (f *JSONFormatter) FormatResults(results []labbot.UserResult) error {
	return f.write(Summarize(results, f.options.ShowTokens))
}

// FormatEndpoints writes the base URL and its endpoints.
func (f *JSONFormatter) FormatEndpoints(baseURL string, endpoints smart.Endpoints) error {
	return f.write(struct {
		BaseURL string `json:"baseUrl"`
		smart.Endpoints
	}{baseURL, endpoints})
}

// FormatUsers writes the user IDs with their count.
func (f *JSONFormatter) FormatUsers(users []string) error {
	if users == nil {
		users = []string{}
	}
	return f.write(map[string]interface{}{"users": users, "count": len(users)})
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options {
	return f.options
}

func (f *JSONFormatter) write(v interface{}) error {
	_, err := fmt.Fprintln(f.options.writer(), PrettyJSON(v))
	return err
}
