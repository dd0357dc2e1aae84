package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"

	"portalpass/internal/appdirs"
	"portalpass/internal/portal"
)

const pollInterval = 100 * time.Millisecond

// RodOptions configures the Chromium-family engine (Brave, Chrome, Edge).
type RodOptions struct {
	BrowserPath string
	Headless    bool
	Stealth     bool
	// NetActivity logs network traffic at info instead of debug.
	NetActivity      bool
	IgnoreCertErrors bool
}

type RodLauncher struct {
	opts RodOptions
	log  zerolog.Logger
}

func NewRodLauncher(opts RodOptions, log zerolog.Logger) *RodLauncher {
	return &RodLauncher{opts: opts, log: log.With().Str("component", "rod").Logger()}
}

// Launch starts the browser with a throwaway profile and opens a blank page.
func (l *RodLauncher) Launch(ctx context.Context) (portal.Session, error) {
	path := l.opts.BrowserPath
	profileDir, err := l.profileDir()
	if err != nil {
		return nil, err
	}

	lnch := launcher.New().Context(ctx).Bin(path).
		Set("disable-setuid-sandbox").
		Set("no-first-run", "true").
		Set("no-default-browser-check").
		Set("disable-gpu").
		UserDataDir(profileDir).
		Headless(l.opts.Headless)
	if l.opts.IgnoreCertErrors {
		lnch.Set("ignore-certificate-errors")
	}

	controlURL, err := lnch.Launch()
	if err != nil {
		os.RemoveAll(profileDir)
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		lnch.Kill()
		os.RemoveAll(profileDir)
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", controlURL, err)
	}

	var page *rod.Page
	if l.opts.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		b.Close()
		lnch.Kill()
		os.RemoveAll(profileDir)
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	s := &RodSession{browser: b, page: page, launcher: lnch, profileDir: profileDir, log: l.log, netActivity: l.opts.NetActivity}
	s.watch()
	l.log.Debug().Str("bin", path).Str("profile", profileDir).Bool("headless", l.opts.Headless).Msg("browser launched")
	return s, nil
}

func (l *RodLauncher) profileDir() (string, error) {
	root, err := appdirs.UserDataDir()
	if err != nil {
		return "", err
	}
	if err := appdirs.EnsureDir(root); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(root, "profile-")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary user data dir: %w", err)
	}
	return dir, nil
}

// RodSession is one browser process with one page. Not safe for concurrent use.
type RodSession struct {
	browser     *rod.Browser
	page        *rod.Page
	launcher    *launcher.Launcher
	profileDir  string
	log         zerolog.Logger
	netActivity bool
}

// watch logs network activity and accepts JavaScript dialogs so an alert
// raised by the portal cannot stall the script.
func (s *RodSession) watch() {
	page := s.page
	page.EnableDomain(proto.NetworkEnable{})

	level := zerolog.DebugLevel
	if s.netActivity {
		level = zerolog.InfoLevel
	}
	go page.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			s.log.WithLevel(level).Str("url", e.Request.URL).Msg("request sent")
		},
		func(e *proto.NetworkResponseReceived) {
			s.log.WithLevel(level).Str("url", e.Response.URL).Int("status", e.Response.Status).Msg("response received")
		},
		func(e *proto.PageFrameNavigated) {
			s.log.Debug().Str("url", e.Frame.URL).Msg("navigated")
		},
		func(e *proto.PageJavascriptDialogOpening) {
			s.log.Info().Str("type", string(e.Type)).Str("message", e.Message).Msg("accepting page dialog")
			_ = proto.PageHandleJavaScriptDialog{Accept: true}.Call(page)
		},
	)()
}

// Navigate returns once the document is committed. The load event is awaited
// but not required: the element waits that follow cover a slow page.
func (s *RodSession) Navigate(ctx context.Context, target string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(target); err != nil {
		return err
	}
	if err := p.WaitLoad(); err != nil {
		s.log.Debug().Err(err).Str("url", target).Msg("page still loading, continuing")
	}
	return nil
}

// WaitClickable waits for the element to exist, become interactable and stop
// being disabled.
func (s *RodSession) WaitClickable(ctx context.Context, xpath string) error {
	el, err := s.page.Context(ctx).ElementX(xpath)
	if err != nil {
		return err
	}
	if _, err := el.WaitInteractable(); err != nil {
		return err
	}
	for {
		res, err := el.Eval(`() => !this.disabled`)
		if err != nil {
			return err
		}
		if truthy(res.Value) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("element stayed disabled: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Click clicks the element. When an anchor cannot be clicked (an overlay,
// a zero-size box) the session follows its href instead.
func (s *RodSession) Click(ctx context.Context, xpath string) error {
	el, err := s.page.Context(ctx).ElementX(xpath)
	if err != nil {
		return err
	}
	clickErr := el.Click(proto.InputMouseButtonLeft, 1)
	if clickErr == nil {
		return nil
	}
	href, ok := s.hrefFallback(el)
	if !ok {
		return clickErr
	}
	s.log.Debug().Err(clickErr).Str("href", href).Msg("click failed, following href")
	if err := s.Navigate(ctx, href); err != nil {
		return errors.Join(clickErr, fmt.Errorf("fallback navigation: %w", err))
	}
	return nil
}

func (s *RodSession) hrefFallback(el *rod.Element) (string, bool) {
	attr, err := el.Attribute("href")
	if err != nil || attr == nil {
		return "", false
	}
	href := strings.TrimSpace(*attr)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	base := ""
	if info, err := s.page.Info(); err == nil {
		base = info.URL
	}
	resolved, err := resolveURL(base, href)
	if err != nil || resolved == "" {
		return "", false
	}
	return resolved, true
}

func (s *RodSession) TypeText(ctx context.Context, xpath, text string) error {
	el, err := s.page.Context(ctx).ElementX(xpath)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func (s *RodSession) Screenshot() ([]byte, error) {
	res, err := CaptureScreenshot(s.page.Timeout(5*time.Second), ScreenshotOptions{FullPage: true})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Quit closes the browser, makes sure the process is gone and removes the
// temporary profile. All steps run even if an earlier one fails.
func (s *RodSession) Quit() error {
	var errs []error
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	if s.profileDir != "" {
		if err := os.RemoveAll(s.profileDir); err != nil {
			errs = append(errs, fmt.Errorf("remove profile %s: %w", s.profileDir, err))
		}
	}
	return errors.Join(errs...)
}

func truthy(v gson.JSON) bool {
	return !v.Nil() && v.Bool()
}

func resolveURL(base, href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("cannot resolve relative URL %q without a base", href)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(u).String(), nil
}
