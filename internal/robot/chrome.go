package robot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"labbot/internal/config"
	"labbot/pkg/logging"
	"labbot/pkg/oauth"
)

// DefaultLoginTimeout bounds one Chrome login, from navigation to redirect.
const DefaultLoginTimeout = 2 * time.Minute

// Selectors locate the identity provider's login form elements.
type Selectors struct {
	Email    string
	Password string
	Submit   string

	// Consent is clicked whenever it appears before the redirect. Empty
	// disables consent handling.
	Consent string
}

// DefaultSelectors match the ID.me sign-in and consent pages.
var DefaultSelectors = Selectors{
	Email:    "#user_email",
	Password: "#user_password",
	Submit:   "input[type=submit]",
	Consent:  "button.btn-primary[type=submit]",
}

// ChromeBrowser logs users in with a Chrome instance driven over the DevTools
// protocol. Each login runs in a fresh browser so sessions never leak
// between users.
type ChromeBrowser struct {
	execPath     string
	headless     bool
	selectors    Selectors
	timeout      time.Duration
	pollInterval time.Duration
}

// ChromeOption configures a ChromeBrowser.
type ChromeOption func(*ChromeBrowser)

// WithSelectors overrides the login form selectors.
func WithSelectors(s Selectors) ChromeOption {
	return func(b *ChromeBrowser) {
		b.selectors = s
	}
}

// WithLoginTimeout sets the per-login timeout.
func WithLoginTimeout(d time.Duration) ChromeOption {
	return func(b *ChromeBrowser) {
		b.timeout = d
	}
}

// NewChromeBrowser creates a browser from the webdriver settings. The driver
// path is the Chrome executable; empty lets chromedp locate one.
func NewChromeBrowser(cfg config.BrowserConfig, opts ...ChromeOption) *ChromeBrowser {
	b := &ChromeBrowser{
		execPath:     cfg.ChromeDriver,
		headless:     cfg.Headless,
		selectors:    DefaultSelectors,
		timeout:      DefaultLoginTimeout,
		pollInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *ChromeBrowser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(1280, 1024),
	)
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}
	return opts
}

// Login implements Browser.
func (b *ChromeBrowser) Login(ctx context.Context, authURL, redirectURL string, user oauth.UserCredentials) (*CallbackResult, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, b.timeout)
	defer cancelTimeout()

	// The redirect target is usually not served by anything reachable from the
	// lab, so the callback is captured as the request leaves the browser.
	redirected := make(chan string, 1)
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		e, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || !strings.HasPrefix(e.Request.URL, redirectURL) {
			return
		}
		select {
		case redirected <- e.Request.URL:
		default:
		}
	})

	logging.Debug("Robot", "Opening login page for %s", user)
	err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(authURL),
		chromedp.WaitVisible(b.selectors.Email, chromedp.ByQuery),
		chromedp.SendKeys(b.selectors.Email, user.ID, chromedp.ByQuery),
		chromedp.SendKeys(b.selectors.Password, user.Password, chromedp.ByQuery),
		chromedp.Click(b.selectors.Submit, chromedp.ByQuery),
	)
	if err != nil {
		select {
		case callback := <-redirected:
			return ParseCallbackURL(callback)
		default:
		}
		return nil, fmt.Errorf("failed to submit login form: %w", err)
	}

	return b.awaitRedirect(taskCtx, redirected)
}

func (b *ChromeBrowser) awaitRedirect(ctx context.Context, redirected <-chan string) (*CallbackResult, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	consented := b.selectors.Consent == ""
	for {
		select {
		case callback := <-redirected:
			return ParseCallbackURL(callback)
		case <-ctx.Done():
			return nil, fmt.Errorf("no redirect from identity provider: %w", ctx.Err())
		case <-ticker.C:
			if consented {
				continue
			}
			var nodes []*cdp.Node
			if err := chromedp.Run(ctx, chromedp.Nodes(b.selectors.Consent, &nodes, chromedp.AtLeast(0), chromedp.ByQuery)); err != nil {
				continue
			}
			if len(nodes) == 0 {
				continue
			}
			if err := chromedp.Run(ctx, chromedp.Click(b.selectors.Consent, chromedp.ByQuery)); err != nil {
				logging.Debug("Robot", "Consent click failed: %v", err)
				continue
			}
			consented = true
		}
	}
}
