package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"labbot/internal/config"
	"labbot/internal/formatting"
	"labbot/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates a required configuration value is missing or invalid.
	ExitCodeConfig = 2
	// ExitCodePartial indicates --fail-on-partial was set and some users produced no result.
	ExitCodePartial = 3
)

// Global flags
var (
	configFile   string
	logLevel     string
	logFormat    string
	quiet        bool
	outputFormat string
)

// rootCmd represents the base command for the labbot application.
var rootCmd = &cobra.Command{
	Use:   "labbot",
	Short: "Acquire SMART on FHIR tokens for lab test users and exercise the API",
	Long: `labbot logs a list of test users into the lab identity provider, one
headless browser session per user, and collects their access tokens.
It can then issue one authenticated FHIR request per user, with {icn}
in the request path replaced by that user's patient.

Work runs on bounded worker pools. Users whose login or request fails
are logged and skipped unless --on-task-error=collect is set.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "labbot version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		var configErr *config.ConfigurationError
		if errors.As(err, &configErr) && logging.ParseLevel(logLevel) == logging.LevelDebug {
			fmt.Fprintln(os.Stderr, configErr.DetailedError())
		}
		stop()
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var partial *PartialResultError
	if errors.As(err, &partial) {
		return ExitCodePartial
	}

	var configErr *config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeConfig
	}

	return ExitCodeError
}

// initLogging configures pkg/logging from the global flags, falling back to
// LABBOT_LOG_LEVEL and LABBOT_LOG_FORMAT.
func initLogging(cmd *cobra.Command, _ []string) error {
	var logEnv struct {
		Level  string `env:"LABBOT_LOG_LEVEL"`
		Format string `env:"LABBOT_LOG_FORMAT"`
	}
	if err := config.ParseEnv(&logEnv); err != nil {
		return err
	}

	level := logLevel
	if !cmd.Flags().Changed("log-level") && logEnv.Level != "" {
		level = logEnv.Level
	}
	format := logFormat
	if !cmd.Flags().Changed("log-format") && logEnv.Format != "" {
		format = logEnv.Format
	}

	parsed := logging.ParseLevel(level)
	if quiet && parsed < logging.LevelWarn {
		parsed = logging.LevelWarn
	}

	switch logging.Format(format) {
	case logging.FormatJSON, logging.FormatText:
	default:
		return &config.ConfigurationError{Key: "log-format", Message: fmt.Sprintf("unknown log format %q", format), Suggestions: []string{"use text or json"}}
	}

	logging.Init(parsed, cmd.ErrOrStderr(), logging.Format(format))
	return nil
}

// newFormatter builds the formatter selected by --output.
func newFormatter(cmd *cobra.Command, showTokens bool) (formatting.Formatter, error) {
	format, err := formatting.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return formatting.NewFactory().CreateFormatter(formatting.Options{
		Format:     format,
		Quiet:      quiet,
		Color:      format == formatting.FormatTable && !quiet,
		ShowTokens: showTokens,
		Writer:     cmd.OutOrStdout(),
	}), nil
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newTokensCmd())
	rootCmd.AddCommand(newRequestCmd())
	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(newUsersCmd())

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "lab.yaml", "Config file; its base name selects the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output and informational logs")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, console, json, yaml)")
}
