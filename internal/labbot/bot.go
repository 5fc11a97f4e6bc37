package labbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"labbot/pkg/logging"
	"labbot/pkg/oauth"
)

// PatientPlaceholder is replaced by the token's patient ICN in request paths.
const PatientPlaceholder = "{icn}"

// MaxResponseLineBytes caps how much of a response body is read while looking
// for the first line. Longer lines are truncated at the cap.
const MaxResponseLineBytes = 1 << 20

// Bot acquires tokens for a list of test users and issues one authenticated
// request per user, each phase on its own bounded worker pool.
type Bot struct {
	batch      Batch
	userIDs    []string
	acquirer   TokenAcquirer
	httpClient *http.Client
	opts       Options
}

// BotOption configures a Bot.
type BotOption func(*Bot)

// WithHTTPClient sets the client used for the request phase.
func WithHTTPClient(httpClient *http.Client) BotOption {
	return func(b *Bot) {
		b.httpClient = httpClient
	}
}

// WithOptions sets the pool options. Zero fields keep their defaults.
func WithOptions(opts Options) BotOption {
	return func(b *Bot) {
		b.opts = opts.withDefaults()
	}
}

// WithUserIDs sets the users served by Tokens and Request.
func WithUserIDs(ids []string) BotOption {
	return func(b *Bot) {
		b.userIDs = append([]string(nil), ids...)
	}
}

// New creates a Bot for batch.
func New(batch Batch, acquirer TokenAcquirer, opts ...BotOption) *Bot {
	b := &Bot{
		batch:      batch,
		acquirer:   acquirer,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		opts:       DefaultOptions(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Options returns the effective pool options.
func (b *Bot) Options() Options {
	return b.opts
}

// Tokens acquires tokens for the configured users.
func (b *Bot) Tokens(ctx context.Context) ([]UserResult, error) {
	return b.AcquireAllTokens(ctx, b.userIDs)
}

// Request acquires tokens for the configured users, then issues path for each
// of them. Under ErrorPolicyCollect the token failures are kept in the
// returned list alongside the request outcomes.
func (b *Bot) Request(ctx context.Context, path string) ([]UserResult, error) {
	if _, ok := ctx.Value(runIDKey{}).(string); !ok {
		ctx = ContextWithRunID(ctx, uuid.NewString())
	}

	tokens, err := b.Tokens(ctx)
	if err != nil {
		return nil, err
	}

	results, err := b.DispatchRequests(ctx, path, tokens)
	if err != nil {
		return nil, err
	}

	if b.opts.OnTaskError == ErrorPolicyCollect {
		for _, r := range tokens {
			if r.Token == nil {
				results = append(results, r)
			}
		}
	}
	return results, nil
}

// AcquireAllTokens acquires a token for every distinct id in userIDs.
//
// Failed acquisitions are logged and, under the drop policy, left out of the
// result. The phase returns when every task is done or the phase bound
// elapses, whichever is first; tasks still running at the bound are not
// observed. The error is non-nil only if ctx is cancelled.
func (b *Bot) AcquireAllTokens(ctx context.Context, userIDs []string) ([]UserResult, error) {
	ids := dedupe(userIDs)
	tasks := make([]phaseTask, 0, len(ids))
	for _, id := range ids {
		user := b.batch.Credentials(id)
		tasks = append(tasks, phaseTask{
			base: UserResult{User: user},
			run: func(ctx context.Context) (UserResult, error) {
				token, err := b.acquirer.AcquireToken(ctx, user, b.batch)
				if err != nil {
					return UserResult{}, err
				}
				if token == nil {
					return UserResult{}, &AuthenticationError{User: user.ID, Err: ErrNoToken}
				}
				return UserResult{User: user, Token: token}, nil
			},
		})
	}

	return b.runPhase(ctx, "token", tasks)
}

// DispatchRequests issues one GET of path per entry that holds a token, with
// every {icn} in path replaced by that token's patient. Entries without a
// token are skipped. Only the first line of each response body is kept. A
// failed request collected under ErrorPolicyCollect keeps its token.
func (b *Bot) DispatchRequests(ctx context.Context, path string, tokenResults []UserResult) ([]UserResult, error) {
	base, err := url.Parse(b.batch.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", b.batch.BaseURL)
	}

	tasks := make([]phaseTask, 0, len(tokenResults))
	for _, r := range tokenResults {
		if r.Token == nil {
			continue
		}
		r := r
		r.Response, r.HasResponse, r.Err = "", false, nil
		tasks = append(tasks, phaseTask{
			base: r,
			run: func(ctx context.Context) (UserResult, error) {
				return b.fetch(ctx, RequestURL(base, path, r.Token.Patient), r)
			},
		})
	}

	return b.runPhase(ctx, "request", tasks)
}

// RequestURL joins the scheme and host of base with path, after substituting
// the patient placeholder.
func RequestURL(base *url.URL, path, patient string) string {
	path = strings.ReplaceAll(path, PatientPlaceholder, patient)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base.Scheme + "://" + base.Host + path
}

func (b *Bot) fetch(ctx context.Context, target string, r UserResult) (UserResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return UserResult{}, &RequestError{User: r.User.ID, URL: target, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+r.Token.AccessToken)
	req.Header.Set("Accept", "application/fhir+json, application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return UserResult{}, &RequestError{User: r.User.ID, URL: target, Kind: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return UserResult{}, &RequestError{
			User:       r.User.ID,
			URL:        target,
			Kind:       FailureStatus,
			StatusCode: resp.StatusCode,
			Challenge:  oauth.ChallengeFromResponse(resp),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	line, ok, err := firstLine(resp.Body)
	if err != nil {
		return UserResult{}, &RequestError{User: r.User.ID, URL: target, Kind: FailureRead, Err: err}
	}

	r.Response = line
	r.HasResponse = ok
	r.Err = nil
	return r, nil
}

// firstLine reads up to the first line terminator, or MaxResponseLineBytes,
// whichever comes first. ok is false for an empty body.
func firstLine(body io.Reader) (line string, ok bool, err error) {
	line, err = bufio.NewReader(io.LimitReader(body, MaxResponseLineBytes)).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", false, nil
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, true, nil
}

type runIDKey struct{}

// ContextWithRunID tags ctx with a run id that every phase run under it logs.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return uuid.NewString()
}

// phaseTask is one user's unit of work. base is what the user contributes,
// with Err set, when run fails under ErrorPolicyCollect.
type phaseTask struct {
	base UserResult
	run  func(ctx context.Context) (UserResult, error)
}

// runPhase runs tasks on a pool of opts.Workers and collects their results
// until all are done or opts.PhaseTimeout elapses. At the bound the collector
// is sealed: queued tasks are skipped and running tasks finish unobserved.
func (b *Bot) runPhase(ctx context.Context, phase string, tasks []phaseTask) ([]UserResult, error) {
	log := logging.With("LabBot", "run_id", runIDFrom(ctx), "phase", phase)
	start := time.Now()

	col := newCollector(len(tasks))
	var finished, failed atomic.Int32

	log.Info("Starting phase", "users", len(tasks), "workers", b.opts.Workers, "bound", b.opts.PhaseTimeout)

	g := new(errgroup.Group)
	g.SetLimit(b.opts.Workers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, t := range tasks {
			if col.isSealed() || ctx.Err() != nil {
				break
			}
			t := t
			g.Go(func() error {
				if col.isSealed() || ctx.Err() != nil {
					return nil
				}
				defer finished.Add(1)

				result, err := t.run(ctx)
				if err != nil {
					failed.Add(1)
					log.Warn("Task failed", "user", t.base.User.ID, "error", err)
					if b.opts.OnTaskError != ErrorPolicyCollect {
						return nil
					}
					result = t.base
					result.Err = err
				}

				if !col.add(result) {
					log.Debug("Discarding result finished after the phase bound", "user", t.base.User.ID)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	timer := time.NewTimer(b.opts.PhaseTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		log.Warn("Phase bound elapsed, abandoning unfinished tasks",
			"bound", b.opts.PhaseTimeout, "unfinished", len(tasks)-int(finished.Load()), "users", len(tasks))
	case <-ctx.Done():
	}

	if err := ctx.Err(); err != nil {
		col.seal()
		log.Warn("Phase cancelled", "error", err)
		return nil, err
	}

	results := col.seal()
	log.Info("Finished phase", "results", len(results), "failures", failed.Load(), "duration", logging.Since(start))
	return results, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
