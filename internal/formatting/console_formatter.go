package formatting

import (
	"fmt"
	"strings"

	"labbot/internal/labbot"
	"labbot/pkg/smart"
)

// ConsoleFormatter provides simple console output formatting
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{
		options: options,
	}
}

// FormatResults prints one line per user.
func (f *ConsoleFormatter) FormatResults(results []labbot.UserResult) error {
	w := f.options.writer()
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}

	var output []string
	if !f.options.Quiet {
		output = append(output, fmt.Sprintf("Results (%d):", len(results)))
	}
	for i, rec := range NewResultRecords(results, f.options.ShowTokens) {
		line := fmt.Sprintf("  %d. %-40s", i+1, rec.User)
		switch {
		case rec.Error != "":
			line += " FAILED " + rec.Error
		case rec.HasResponse:
			line += fmt.Sprintf(" %s %s %s", rec.Patient, rec.AccessToken, rec.Response)
		default:
			line += fmt.Sprintf(" %s %s", rec.Patient, rec.AccessToken)
		}
		output = append(output, strings.TrimRight(line, " "))
	}

	_, err := fmt.Fprintln(w, strings.Join(output, "\n"))
	return err
}

// FormatEndpoints prints the discovered endpoints.
func (f *ConsoleFormatter) FormatEndpoints(baseURL string, endpoints smart.Endpoints) error {
	_, err := fmt.Fprintf(f.options.writer(), "Base URL:  %s\nAuthorize: %s\nToken:     %s\n",
		baseURL, endpoints.AuthorizeURL, endpoints.TokenURL)
	return err
}

// FormatUsers prints one user ID per line.
func (f *ConsoleFormatter) FormatUsers(users []string) error {
	w := f.options.writer()
	for _, u := range users {
		if _, err := fmt.Fprintln(w, u); err != nil {
			return err
		}
	}
	return nil
}

// SetOptions updates the formatter options
func (f *ConsoleFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *ConsoleFormatter) GetOptions() Options {
	return f.options
}
