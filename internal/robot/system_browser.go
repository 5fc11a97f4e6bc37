package robot

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"labbot/pkg/logging"
	"labbot/pkg/oauth"
)

// OpenBrowser opens the specified URL in the default web browser.
// It supports Linux, macOS, and Windows.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	// Start the command but don't wait for it to complete
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

// SystemBrowser lets a person complete the login in their default browser.
// The redirect URL must be a loopback address so the callback can be served
// locally. The user's password is never used; the person types it.
type SystemBrowser struct {
	open func(url string) error
}

// NewSystemBrowser creates a SystemBrowser that opens URLs with OpenBrowser.
func NewSystemBrowser() *SystemBrowser {
	return &SystemBrowser{open: OpenBrowser}
}

// Login implements Browser.
func (b *SystemBrowser) Login(ctx context.Context, authURL, redirectURL string, user oauth.UserCredentials) (*CallbackResult, error) {
	server, err := NewCallbackServer(redirectURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, CallbackTimeout)
	defer cancel()

	if _, err := server.Start(ctx); err != nil {
		return nil, err
	}
	defer server.Stop()

	logging.Info("Robot", "Sign in as %s in your browser: %s", user, authURL)
	if err := b.open(authURL); err != nil {
		logging.Warn("Robot", "Could not open browser (%v), open the URL above manually", err)
	}

	return server.WaitForCallback(ctx)
}
