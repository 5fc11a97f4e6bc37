package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"labbot/internal/config"
	"labbot/internal/labbot"
	"labbot/internal/robot"
	"labbot/internal/roster"
	"labbot/pkg/logging"
	"labbot/pkg/smart"
)

// Browser robots selectable with --browser.
const (
	browserChrome = "chrome"
	browserSystem = "system"
)

// defaultScopes are requested when --scope is not given.
var defaultScopes = []string{"patient/Patient.read"}

// PartialResultError is returned with --fail-on-partial when fewer users
// produced a result than were requested.
type PartialResultError struct {
	Requested int
	Succeeded int
}

// Error implements the error interface.
func (e *PartialResultError) Error() string {
	return fmt.Sprintf("%d of %d users produced no result", e.Requested-e.Succeeded, e.Requested)
}

// batchFlags are the flags shared by the tokens and request commands.
type batchFlags struct {
	workers       int
	phaseTimeout  time.Duration
	onTaskError   string
	users         []string
	usersFile     string
	labRoster     bool
	scopes        []string
	browser       string
	failOnPartial bool
	showTokens    bool
}

func (f *batchFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVar(&f.workers, "workers", config.DefaultWorkers, "Tasks run concurrently per phase (env LABBOT_WORKERS)")
	flags.DurationVar(&f.phaseTimeout, "phase-timeout", config.DefaultPhaseTimeout, "Bound on each phase; unfinished users are abandoned (env LABBOT_PHASE_TIMEOUT)")
	flags.StringVar(&f.onTaskError, "on-task-error", string(labbot.ErrorPolicyDrop), "What a failed user contributes: drop or collect (env LABBOT_ON_TASK_ERROR)")
	flags.StringSliceVarP(&f.users, "user", "u", nil, "Test user ID (repeatable)")
	flags.StringVar(&f.usersFile, "users-file", "", "File listing test user IDs (YAML list or one per line)")
	flags.BoolVar(&f.labRoster, "lab-roster", false, "Use every user of the lab roster")
	flags.StringSliceVar(&f.scopes, "scope", defaultScopes, "OAuth scope to request (repeatable)")
	flags.StringVar(&f.browser, "browser", browserChrome, "Login robot: chrome (headless, config driven) or system (manual, loopback redirect only)")
	flags.BoolVar(&f.failOnPartial, "fail-on-partial", false, "Exit with code 3 when some users produced no result")
	flags.BoolVar(&f.showTokens, "show-tokens", false, "Print access tokens in full")
}

// userIDs merges --user, --users-file and --lab-roster, in that order.
func (f *batchFlags) userIDs() ([]string, error) {
	ids := append([]string(nil), f.users...)
	if f.usersFile != "" {
		fromFile, err := roster.LoadFile(f.usersFile)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}
	if f.labRoster {
		ids = append(ids, roster.Lab()...)
	}

	ids = roster.Normalize(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("no users given; use --user, --users-file or --lab-roster")
	}
	return ids, nil
}

// settings reads LABBOT_* settings and applies the flags that were set.
func (f *batchFlags) settings(cmd *cobra.Command) (config.Settings, error) {
	var s config.Settings
	if err := config.ParseEnv(&s); err != nil {
		return config.Settings{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		s.Workers = f.workers
	}
	if flags.Changed("phase-timeout") {
		s.PhaseTimeout = f.phaseTimeout
	}
	if flags.Changed("on-task-error") {
		s.OnTaskError = f.onTaskError
	}

	if err := s.Validate(); err != nil {
		return config.Settings{}, err
	}
	return s, nil
}

// run is everything a batch command needs.
type run struct {
	bot      *labbot.Bot
	users    []string
	settings config.Settings
	lab      config.LabConfig
}

// newRun resolves configuration and wires the bot.
func (f *batchFlags) newRun(cmd *cobra.Command) (*run, error) {
	users, err := f.userIDs()
	if err != nil {
		return nil, err
	}

	settings, err := f.settings(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := labbot.OptionsFromSettings(settings)
	if err != nil {
		return nil, err
	}

	source, err := config.NewSource(configFile)
	if err != nil {
		return nil, err
	}
	lab, err := source.LoadLabConfig()
	if err != nil {
		return nil, err
	}

	browser, err := newBrowser(f.browser, lab.Browser, len(users))
	if err != nil {
		return nil, err
	}

	httpClient := settings.HTTPClient()
	discovery := smart.NewClient(
		smart.WithHTTPClient(httpClient),
		smart.WithCacheTTL(settings.DiscoveryCacheTTL),
	)
	acquirer := labbot.NewAcquirer(discovery, robot.New(browser, robot.WithHTTPClient(httpClient)))

	bot := labbot.New(labbot.BatchFromConfig(lab, f.scopes), acquirer,
		labbot.WithHTTPClient(httpClient),
		labbot.WithOptions(opts),
		labbot.WithUserIDs(users),
	)

	logging.Debug("CLI", "Environment %s, %d users, %d workers, bound %s, policy %s",
		lab.Environment, len(users), opts.Workers, opts.PhaseTimeout, opts.OnTaskError)

	return &run{bot: bot, users: users, settings: settings, lab: lab}, nil
}

func newBrowser(name string, cfg config.BrowserConfig, users int) (robot.Browser, error) {
	switch name {
	case browserChrome:
		return robot.NewChromeBrowser(cfg), nil
	case browserSystem:
		if users > 1 {
			return nil, fmt.Errorf("--browser=system logs in one user interactively; got %d users", users)
		}
		return robot.NewSystemBrowser(), nil
	default:
		return nil, fmt.Errorf("unknown browser %q (want %s or %s)", name, browserChrome, browserSystem)
	}
}

// withSpinner runs fn behind a progress spinner on w unless quiet is set.
func withSpinner(w io.Writer, suffix string, fn func() error) error {
	if quiet {
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()
	defer s.Stop()

	return fn()
}

// report renders results and applies --fail-on-partial.
func (f *batchFlags) report(cmd *cobra.Command, requested int, results []labbot.UserResult) error {
	formatter, err := newFormatter(cmd, f.showTokens)
	if err != nil {
		return err
	}
	if err := formatter.FormatResults(results); err != nil {
		return err
	}

	succeeded := 0
	for _, r := range results {
		if !r.Failed() {
			succeeded++
		}
	}
	if f.failOnPartial && succeeded < requested {
		return &PartialResultError{Requested: requested, Succeeded: succeeded}
	}
	return nil
}

// runBatch is the shared body of the batch commands.
func (f *batchFlags) runBatch(cmd *cobra.Command, label string, phase func(ctx context.Context, bot *labbot.Bot) ([]labbot.UserResult, error)) error {
	r, err := f.newRun(cmd)
	if err != nil {
		return err
	}

	var results []labbot.UserResult
	err = withSpinner(cmd.ErrOrStderr(), fmt.Sprintf("%s for %d users...", label, len(r.users)), func() error {
		var phaseErr error
		results, phaseErr = phase(cmd.Context(), r.bot)
		return phaseErr
	})
	if err != nil {
		return err
	}

	return f.report(cmd, len(r.users), results)
}
