// Package portal drives the captive portal's login page through a browser
// session: a fixed script of clicks and text entry, each step bounded by its
// own wait, no retries inside the sequence.
package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portalpass/internal/appdirs"
)

// Session is the browser capability set the login script needs. Locators are
// XPath expressions.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitClickable(ctx context.Context, xpath string) error
	Click(ctx context.Context, xpath string) error
	TypeText(ctx context.Context, xpath, text string) error
	Quit() error
}

// Screenshotter is implemented by sessions that can capture the current page.
type Screenshotter interface {
	Screenshot() ([]byte, error)
}

// Launcher starts a fresh browser session. Each Login acquires exactly one.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

type Options struct {
	PortalURL   string
	Steps       []Step
	StepTimeout time.Duration
	// NavTimeout bounds loading the portal page. Zero leaves only the login
	// deadline. The first step's wait covers a page that is still loading.
	NavTimeout   time.Duration
	LoginTimeout time.Duration
	// Settle is slept before the session is released.
	Settle time.Duration
	// ScreenshotDir receives a PNG when a step fails. Empty disables capture.
	ScreenshotDir string
}

type Automator struct {
	launcher Launcher
	opts     Options
	log      zerolog.Logger

	Sleep func(time.Duration)
	Now   func() time.Time
}

func New(l Launcher, opts Options, log zerolog.Logger) *Automator {
	return &Automator{
		launcher: l,
		opts:     opts,
		log:      log.With().Str("component", "portal").Logger(),
		Sleep:    time.Sleep,
		Now:      time.Now,
	}
}

// Login runs the whole script once. It never returns without releasing the
// session it launched, including when an engine panics.
func (a *Automator) Login(ctx context.Context, creds Credentials) (out Outcome) {
	if a.opts.LoginTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.LoginTimeout)
		defer cancel()
	}

	a.log.Info().Str("portal", a.opts.PortalURL).Msg("launching browser")
	sess, err := a.launch(ctx)
	if err != nil {
		return a.classify(ctx, StepLaunch, err)
	}
	defer a.release(sess)

	current := StepOpen
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Kind: FailedAtStep, Step: current, Err: fmt.Errorf("browser fault: %v", r)}
			a.log.Error().Str("step", current).Interface("panic", r).Msg("browser engine panicked")
		}
	}()

	openCtx, cancel := a.navContext(ctx)
	err = sess.Navigate(openCtx, a.opts.PortalURL)
	cancel()
	if err != nil {
		a.snapshot(sess, current)
		return a.classify(ctx, current, fmt.Errorf("navigate to %s: %w", a.opts.PortalURL, err))
	}
	a.log.Info().Msg("loaded portal login page")

	for _, st := range a.opts.Steps {
		current = st.Name
		if err := a.runStep(ctx, sess, st, creds); err != nil {
			a.snapshot(sess, st.Name)
			out = a.classify(ctx, st.Name, err)
			a.log.Error().Err(err).Str("step", st.Name).Stringer("outcome", out.Kind).Msg("login step failed")
			return out
		}
		a.log.Info().Str("step", st.Name).Msg("step done")
	}

	a.log.Info().Msg("credentials submitted")
	return Outcome{Kind: Succeeded}
}

func (a *Automator) runStep(ctx context.Context, sess Session, st Step, creds Credentials) error {
	sctx, cancel := a.stepContext(ctx)
	defer cancel()

	if err := sess.WaitClickable(sctx, st.Locator); err != nil {
		return fmt.Errorf("wait for %s: %w", st.Locator, err)
	}

	switch st.Action {
	case Click:
		if err := sess.Click(sctx, st.Locator); err != nil {
			return fmt.Errorf("click %s: %w", st.Locator, err)
		}
	case Type:
		// The text may be the password; keep it out of the error.
		if err := sess.TypeText(sctx, st.Locator, st.text(creds)); err != nil {
			return fmt.Errorf("type into %s: %w", st.Locator, err)
		}
	default:
		return fmt.Errorf("unknown action %d", st.Action)
	}
	return nil
}

// launch turns a panic in the engine's startup into a launch error.
func (a *Automator) launch(ctx context.Context) (sess Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Str("step", StepLaunch).Interface("panic", r).Msg("browser engine panicked")
			sess, err = nil, fmt.Errorf("browser fault: %v", r)
		}
	}()
	return a.launcher.Launch(ctx)
}

func (a *Automator) navContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.NavTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.opts.NavTimeout)
}

func (a *Automator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.opts.StepTimeout)
}

// classify maps a step error onto an outcome. When the whole login deadline
// (or the caller) ended the attempt it is an abort, otherwise the step failed.
func (a *Automator) classify(ctx context.Context, step string, err error) Outcome {
	if ctx.Err() != nil {
		return Outcome{Kind: AbortedByTimeout, Step: step, Err: err}
	}
	return Outcome{Kind: FailedAtStep, Step: step, Err: err}
}

func (a *Automator) release(sess Session) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn().Interface("panic", r).Msg("browser session panicked while closing")
		}
	}()

	if a.opts.Settle > 0 && a.Sleep != nil {
		a.Sleep(a.opts.Settle)
	}
	if err := sess.Quit(); err != nil {
		a.log.Warn().Err(err).Msg("browser session did not close cleanly")
		return
	}
	a.log.Debug().Msg("browser session released")
}

func (a *Automator) snapshot(sess Session, step string) {
	if a.opts.ScreenshotDir == "" {
		return
	}
	shooter, ok := sess.(Screenshotter)
	if !ok {
		return
	}

	data, err := shooter.Screenshot()
	if err != nil {
		a.log.Warn().Err(err).Msg("failure screenshot not captured")
		return
	}
	path, err := a.writeSnapshot(step, data)
	if err != nil {
		a.log.Warn().Err(err).Msg("failure screenshot not saved")
		return
	}
	a.log.Info().Str("path", path).Msg("saved failure screenshot")
}

func (a *Automator) writeSnapshot(step string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty screenshot")
	}
	if err := appdirs.EnsureDir(a.opts.ScreenshotDir); err != nil {
		return "", err
	}
	now := a.Now
	if now == nil {
		now = time.Now
	}
	slug := strings.ReplaceAll(strings.ToLower(step), " ", "-")
	name := fmt.Sprintf("login-%s-%s.png", slug, now().Format("20060102-150405"))
	path := filepath.Join(a.opts.ScreenshotDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
