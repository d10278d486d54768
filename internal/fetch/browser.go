package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"articleforge/internal/core"
	"articleforge/internal/logger"
)

// BrowserConfig controls the headless Chrome renderer
type BrowserConfig struct {
	// Bin is the Chrome binary; empty lets the launcher find or download one
	Bin string
	// ControlURL connects to an already running Chrome instead of launching one
	ControlURL        string
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	// Blocked resource types are failed before they hit the network
	Blocked []proto.NetworkResourceType
	// Scroll walks the page to the bottom after load to trigger lazy content
	Scroll bool
}

// DefaultBrowserConfig returns the settings used for reference pages
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		NavigationTimeout: 45 * time.Second,
		SettleDelay:       2 * time.Second,
		Blocked: []proto.NetworkResourceType{
			proto.NetworkResourceTypeImage,
			proto.NetworkResourceTypeStylesheet,
			proto.NetworkResourceTypeFont,
			proto.NetworkResourceTypeMedia,
		},
	}
}

const scrollScript = `() => new Promise((resolve) => {
	let total = 0;
	const timer = setInterval(() => {
		window.scrollBy(0, 300);
		total += 300;
		if (total >= document.body.scrollHeight) {
			clearInterval(timer);
			window.scrollTo(0, 0);
			resolve();
		}
	}, 100);
})`

// BrowserRenderer renders pages in headless Chrome. The browser process is
// started on first use and shared; every Render call gets its own incognito
// context which is disposed before Render returns.
type BrowserRenderer struct {
	cfg      BrowserConfig
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewBrowserRenderer creates a renderer; Chrome is not started until the first Render
func NewBrowserRenderer(cfg BrowserConfig) *BrowserRenderer {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	return &BrowserRenderer{cfg: cfg}
}

func (b *BrowserRenderer) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(true).NoSandbox(true).Set("disable-dev-shm-usage").Set("disable-gpu")
		if b.cfg.Bin != "" {
			l = l.Bin(b.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
		b.launcher = l
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	b.browser = browser
	logger.Debug("Headless browser connected", "control_url", controlURL)
	return browser, nil
}

// Render loads url in a fresh incognito context and returns the rendered HTML
func (b *BrowserRenderer) Render(ctx context.Context, url string) (html string, err error) {
	browser, err := b.connect()
	if err != nil {
		return "", err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return "", fmt.Errorf("incognito context: %w", err)
	}
	defer func() {
		if cerr := incognito.Close(); cerr != nil {
			logger.Debug("Failed to dispose browser context", "url", url, "error", cerr.Error())
		}
	}()

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()
	page = page.Context(ctx)

	if len(b.cfg.Blocked) > 0 {
		router := page.HijackRequests()
		if err := router.Add("*", "", b.blockHandler()); err != nil {
			return "", fmt.Errorf("hijack requests: %w", err)
		}
		go router.Run()
		defer func() { _ = router.Stop() }()
	}

	if b.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			return "", fmt.Errorf("set user agent: %w", err)
		}
	}

	nav := page.Timeout(b.cfg.NavigationTimeout)
	err = nav.Navigate(url)
	if err == nil {
		if werr := nav.WaitLoad(); werr != nil {
			logger.Debug("Page load did not complete", "url", url, "error", werr.Error())
		}
	}
	nav.CancelTimeout()
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}

	if b.cfg.Scroll {
		sp := page.Timeout(b.cfg.NavigationTimeout)
		if _, serr := sp.Eval(scrollScript); serr != nil {
			logger.Debug("Scroll script failed", "url", url, "error", serr.Error())
		}
		sp.CancelTimeout()
	}

	if err := core.Wait(ctx, b.cfg.SettleDelay); err != nil {
		return "", err
	}

	html, err = page.HTML()
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (b *BrowserRenderer) blockHandler() func(*rod.Hijack) {
	blocked := make(map[proto.NetworkResourceType]bool, len(b.cfg.Blocked))
	for _, t := range b.cfg.Blocked {
		blocked[t] = true
	}
	return func(h *rod.Hijack) {
		if blocked[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}
}

// Close shuts down the browser if one was started
func (b *BrowserRenderer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
