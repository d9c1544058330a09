// Package probe checks that a Camoufox server accepts Playwright connections.
package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Options configures a probe.
type Options struct {
	// WSURL is the Playwright WebSocket endpoint, e.g. ws://127.0.0.1:3000/connect.
	WSURL string

	// Timeout bounds the connection attempt. Defaults to 30s.
	Timeout time.Duration
}

// Result describes a successful probe.
type Result struct {
	WSURL    string        `json:"ws_url"`
	Version  string        `json:"version"`
	Duration time.Duration `json:"duration"`
}

// Run connects to the server as a Firefox client, opens and closes a page and
// reports the browser version.
func Run(ctx context.Context, opts Options, logger *zap.Logger) (*Result, error) {
	if opts.WSURL == "" {
		return nil, errors.New("probe: websocket URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := connectTimeout(ctx, opts.Timeout)

	start := time.Now()

	pw, err := playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	// Stopping the driver aborts an in-flight Connect or NewPage.
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			if err := pw.Stop(); err != nil {
				logger.Warn("failed to stop playwright", zap.Error(err))
			}
		})
	}
	defer stop()
	unwatch := context.AfterFunc(ctx, stop)
	defer unwatch()

	logger.Debug("connecting to camoufox server", zap.String("url", opts.WSURL))

	browser, err := pw.Firefox.Connect(opts.WSURL, playwright.BrowserTypeConnectOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.WSURL, err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := page.Close(); err != nil {
		logger.Warn("failed to close probe page", zap.Error(err))
	}

	return &Result{
		WSURL:    opts.WSURL,
		Version:  browser.Version(),
		Duration: time.Since(start),
	}, nil
}

// connectTimeout shortens timeout to whatever is left before ctx's deadline.
func connectTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return timeout
	}
	if left := time.Until(deadline); left < timeout {
		return max(left, time.Millisecond)
	}
	return timeout
}
