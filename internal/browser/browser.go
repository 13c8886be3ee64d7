package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	log "github.com/sirupsen/logrus"

	"ozon/parser/internal/proxy"
	"ozon/parser/internal/useragent"
)

const scrollToBottomScript = "window.scrollTo(0, document.body.scrollHeight);"

type Options struct {
	Headless    bool
	Timeout     time.Duration
	LoadPause   time.Duration // settle time after navigation
	ScrollPause time.Duration // settle time after scrolling to the bottom
	Locale      string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:    true,
		Timeout:     30 * time.Second,
		LoadPause:   7 * time.Second,
		ScrollPause: time.Second,
		Locale:      "ru-RU",
	}
}

// Launcher owns the playwright driver and starts one Browser per caller.
type Launcher struct {
	opts    *Options
	agents  useragent.Pool
	proxies proxy.Supplier

	once sync.Once
	pw   *playwright.Playwright
	err  error
}

func NewLauncher(opts *Options, agents useragent.Pool, proxies proxy.Supplier) *Launcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Launcher{opts: opts, agents: agents, proxies: proxies}
}

func (l *Launcher) driver() (*playwright.Playwright, error) {
	l.once.Do(func() {
		l.pw, l.err = playwright.Run()
		if l.err != nil {
			l.err = fmt.Errorf("failed to start playwright: %w", l.err)
		}
	})
	return l.pw, l.err
}

// Launch starts a dedicated Chromium instance with a freshly chosen user agent.
func (l *Launcher) Launch() (*Browser, error) {
	pw, err := l.driver()
	if err != nil {
		return nil, err
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--ignore-certificate-errors",
			"--ignore-ssl-errors",
		},
	}
	if l.proxies != nil {
		if server := l.proxies.Get(); server != "" {
			launchOpts.Proxy = &playwright.Proxy{Server: server}
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	userAgent := l.agents.Random()
	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &userAgent,
		Locale:            &l.opts.Locale,
		IgnoreHttpsErrors: playwright.Bool(true),
		JavaScriptEnabled: playwright.Bool(true),
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		browserContext.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(l.opts.Timeout.Milliseconds()))

	return &Browser{
		browser: browser,
		context: browserContext,
		page:    page,
		opts:    l.opts,
	}, nil
}

// Stop shuts the playwright driver down once every Browser is closed.
func (l *Launcher) Stop() error {
	if l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// Browser is a single Chromium tab. It is not safe for concurrent use.
type Browser struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
}

// Render navigates to url, waits for scripts to populate the page, scrolls to the
// bottom to trigger lazy loading and returns the resulting markup.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	if _, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if err := Pause(ctx, b.opts.LoadPause); err != nil {
		return "", err
	}

	if _, err := b.page.Evaluate(scrollToBottomScript); err != nil {
		log.WithField("url", url).Warnf("Failed to scroll page: %v", err)
	}

	if err := Pause(ctx, b.opts.ScrollPause); err != nil {
		return "", err
	}

	content, err := b.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return content, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Pause sleeps for d unless ctx ends first.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
