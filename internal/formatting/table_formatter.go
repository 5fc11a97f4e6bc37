package formatting

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"labbot/internal/labbot"
	"labbot/pkg/smart"
	pkgstrings "labbot/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatResults renders one row per user followed by a summary line.
func (f *TableFormatter) FormatResults(results []labbot.UserResult) error {
	if len(results) == 0 {
		return f.formatEmptyMessage("📋", "No results")
	}

	summary := Summarize(results, f.options.ShowTokens)

	t := f.createTable()
	t.AppendHeader(table.Row{
		f.header("USER"), f.header("PATIENT"), f.header("TOKEN"), f.header("STATUS"), f.header("RESPONSE"),
	})

	for _, rec := range summary.Results {
		status := f.colorize(text.FgGreen, "ok")
		detail := rec.Response
		if rec.Error != "" {
			status = f.colorize(text.FgRed, "failed")
			detail = rec.Error
		} else if !rec.HasResponse && rec.Response == "" {
			detail = "-"
		}
		t.AppendRow(table.Row{rec.User, rec.Patient, rec.AccessToken, status, pkgstrings.TruncateCell(detail, pkgstrings.DefaultCellMaxLen)})
	}

	t.Render()

	if f.options.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(f.options.writer(), "\n%s %s %s %s\n",
		f.colorize(text.FgHiBlue, "Total:"),
		f.colorize(text.FgHiWhite, fmt.Sprint(summary.Count)),
		f.colorize(text.FgHiBlue, "users,"),
		f.colorize(text.FgHiWhite, fmt.Sprintf("%d failed", summary.Failed)))
	return err
}

// FormatEndpoints renders the endpoints as key/value rows.
func (f *TableFormatter) FormatEndpoints(baseURL string, endpoints smart.Endpoints) error {
	t := f.createTable()
	t.AppendHeader(table.Row{f.header("KEY"), f.header("VALUE")})
	t.AppendRow(table.Row{f.colorize(text.FgHiCyan, "Base URL"), baseURL})
	t.AppendRow(table.Row{f.colorize(text.FgHiCyan, "Authorize"), endpoints.AuthorizeURL})
	t.AppendRow(table.Row{f.colorize(text.FgHiCyan, "Token"), endpoints.TokenURL})
	t.Render()
	return nil
}

// FormatUsers renders a numbered user list.
func (f *TableFormatter) FormatUsers(users []string) error {
	if len(users) == 0 {
		return f.formatEmptyMessage("📋", "No users")
	}

	t := f.createTable()
	t.AppendHeader(table.Row{f.header("#"), f.header("USER")})
	for i, u := range users {
		t.AppendRow(table.Row{i + 1, u})
	}
	if !f.options.Quiet {
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d users", len(users))})
	}
	t.Render()
	return nil
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.writer())
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(s string) string {
	return f.colorize(text.FgHiCyan, s)
}

func (f *TableFormatter) colorize(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(icon, message string) error {
	_, err := fmt.Fprintf(f.options.writer(), "%s %s\n",
		f.colorize(text.FgYellow, icon), f.colorize(text.FgYellow, message))
	return err
}
