package fetch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"jobscout/internal/logging"
)

// BrowserFetcher renders pages in a shared headless Chrome with stealth
// patches applied. The browser is launched on first use.
type BrowserFetcher struct {
	headless   bool
	navTimeout time.Duration
	limiter    *HostLimiter
	logger     logging.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewBrowserFetcher creates a fetcher; no browser is started yet
func NewBrowserFetcher(headless bool, navTimeout time.Duration, limiter *HostLimiter, logger logging.Logger) *BrowserFetcher {
	if navTimeout <= 0 {
		navTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &BrowserFetcher{
		headless:   headless,
		navTimeout: navTimeout,
		limiter:    limiter,
		logger:     logger.WithField("engine", EngineBrowser),
	}
}

func (b *BrowserFetcher) Name() string { return EngineBrowser }

func (b *BrowserFetcher) ensureBrowser() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().
		Headless(b.headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if bin := systemChromePath(); bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b.logger.Info("Browser launched", map[string]interface{}{"headless": b.headless})
	b.browser = browser
	b.launcher = l
	return browser, nil
}

// Fetch navigates to url and returns the rendered HTML
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	host := HostOf(url)
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}
	}

	browser, err := b.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.navTimeout)
	defer cancel()

	start := time.Now()
	err = rod.Try(func() {
		page.Context(navCtx).MustNavigate(url).MustWaitLoad()
	})
	if err != nil {
		if b.limiter != nil && ctx.Err() == nil {
			b.limiter.RecordFailure(host, err)
		}
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page HTML: %w", err)
	}
	if indicator := DetectChallenge([]byte(html)); indicator != "" {
		return nil, &ChallengeError{URL: url, Indicator: indicator}
	}
	if b.limiter != nil {
		b.limiter.RecordSuccess(host)
	}

	b.logger.Debug("Rendered page", map[string]interface{}{
		"url":         url,
		"bytes":       len(html),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &Page{
		URL:         url,
		StatusCode:  200,
		Body:        []byte(html),
		ContentType: "text/html",
		Engine:      EngineBrowser,
	}, nil
}

// Close shuts the browser down if it was started
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.launcher.Cleanup()
	b.browser = nil
	b.launcher = nil
	return err
}

// systemChromePath finds an installed Chrome, or "" to let rod download one
func systemChromePath() string {
	for _, env := range []string{"CHROME_BIN", "CHROME_PATH"} {
		if p := os.Getenv(env); p != "" {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	for _, p := range []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
