package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"

	"portalpass/internal/portal"
)

// PlaywrightOptions configures the Firefox engine.
type PlaywrightOptions struct {
	BrowserPath string
	// DriverDir is where the playwright driver lives. Browsers are never
	// downloaded; BrowserPath must point at an installed Firefox.
	DriverDir        string
	Headless         bool
	IgnoreCertErrors bool
}

type PlaywrightLauncher struct {
	opts PlaywrightOptions
	log  zerolog.Logger
}

func NewPlaywrightLauncher(opts PlaywrightOptions, log zerolog.Logger) *PlaywrightLauncher {
	return &PlaywrightLauncher{opts: opts, log: log.With().Str("component", "playwright").Logger()}
}

func (l *PlaywrightLauncher) Launch(ctx context.Context) (portal.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(&playwright.RunOptions{
		DriverDirectory:     l.opts.DriverDir,
		SkipInstallBrowsers: true,
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
	}
	if l.opts.BrowserPath != "" {
		launchOpts.ExecutablePath = playwright.String(l.opts.BrowserPath)
	}
	b, err := pw.Firefox.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := b.NewPage(playwright.BrowserNewPageOptions{
		IgnoreHttpsErrors: playwright.Bool(l.opts.IgnoreCertErrors),
	})
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.OnDialog(func(d playwright.Dialog) {
		l.log.Info().Str("type", d.Type()).Str("message", d.Message()).Msg("accepting page dialog")
		_ = d.Accept()
	})

	l.log.Debug().Str("bin", l.opts.BrowserPath).Bool("headless", l.opts.Headless).Msg("browser launched")
	return &PlaywrightSession{pw: pw, browser: b, page: page, log: l.log}, nil
}

// PlaywrightSession adapts a playwright page to the login script. Playwright
// calls take a timeout rather than a context, so each call gets whatever
// remains of the context deadline.
type PlaywrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	log     zerolog.Logger
}

func xpathSelector(xpath string) string { return "xpath=" + xpath }

// Navigate returns once the response is committed; the element waits that
// follow cover the rest of the page load.
func (s *PlaywrightSession) Navigate(ctx context.Context, url string) error {
	timeout, err := remaining(ctx)
	if err != nil {
		return err
	}
	_, err = s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeout,
		WaitUntil: playwright.WaitUntilStateCommit,
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (s *PlaywrightSession) WaitClickable(ctx context.Context, xpath string) error {
	sel := xpathSelector(xpath)
	timeout, err := remaining(ctx)
	if err != nil {
		return err
	}
	if _, err := s.page.WaitForSelector(sel, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeout,
	}); err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}

	for {
		timeout, err := remaining(ctx)
		if err != nil {
			return fmt.Errorf("element stayed disabled: %w", err)
		}
		enabled, err := s.page.IsEnabled(sel, playwright.PageIsEnabledOptions{Timeout: timeout})
		if err != nil {
			return fmt.Errorf("enabled check failed: %w", err)
		}
		if enabled {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("element stayed disabled: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (s *PlaywrightSession) Click(ctx context.Context, xpath string) error {
	timeout, err := remaining(ctx)
	if err != nil {
		return err
	}
	if err := s.page.Click(xpathSelector(xpath), playwright.PageClickOptions{Timeout: timeout}); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (s *PlaywrightSession) TypeText(ctx context.Context, xpath, text string) error {
	timeout, err := remaining(ctx)
	if err != nil {
		return err
	}
	if err := s.page.Fill(xpathSelector(xpath), text, playwright.PageFillOptions{Timeout: timeout}); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

func (s *PlaywrightSession) Screenshot() ([]byte, error) {
	return s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
}

// Quit closes the browser and stops the driver process.
func (s *PlaywrightSession) Quit() error {
	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	if len(errs) == 0 {
		s.log.Debug().Msg("playwright stopped")
	}
	return errors.Join(errs...)
}

// remaining converts the context deadline into a playwright timeout in
// milliseconds. Without a deadline playwright's own default applies.
func remaining(ctx context.Context) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil, nil
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		return nil, context.DeadlineExceeded
	}
	return &ms, nil
}
