package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"portalpass/browser"
	"portalpass/internal/appdirs"
	"portalpass/internal/config"
	"portalpass/internal/netid"
	"portalpass/internal/orchestrator"
	"portalpass/internal/portal"
	"portalpass/internal/reach"
)

// runLogin performs one orchestrated run, prints the summary and waits the
// exit settle delay. A LoginFailed run returns an *ExitError with code 2.
func runLogin(ctx context.Context, out io.Writer, cfg config.Config) error {
	launcher, err := newLauncher(cfg)
	if err != nil {
		return err
	}

	opts := automatorOptions(cfg)
	if cfg.ScreenshotOnFailure {
		if dir, err := appdirs.LogsDir(); err == nil {
			opts.ScreenshotDir = dir
		} else {
			log.Warn().Err(err).Msg("failure screenshots disabled")
		}
	}

	orch := orchestrator.New(
		netid.NewProbe(cfg.WifiInterface, log),
		reach.NewProber(log),
		portal.New(launcher, opts, log),
		orchestratorOptions(cfg),
		log,
	)

	res := orch.Run(ctx)
	fmt.Fprintln(out, summary(res))

	settle(ctx, cfg.ExitSettle)

	if res.State == orchestrator.LoginFailed {
		return &ExitError{Code: 2, Err: fmt.Errorf("login failed: %s", res.Reason)}
	}
	return nil
}

func newLauncher(cfg config.Config) (portal.Launcher, error) {
	switch cfg.Engine {
	case config.EngineRod:
		return browser.NewRodLauncher(rodOptions(cfg), log), nil
	case config.EnginePlaywright:
		if cfg.Stealth {
			log.Warn().Msg("--stealth has no effect with the playwright engine")
		}
		return browser.NewPlaywrightLauncher(playwrightOptions(cfg), log), nil
	}
	return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
}

func rodOptions(cfg config.Config) browser.RodOptions {
	return browser.RodOptions{
		BrowserPath:      cfg.BrowserPath,
		Headless:         cfg.Headless,
		Stealth:          cfg.Stealth,
		NetActivity:      ShowNetActivity,
		IgnoreCertErrors: cfg.IgnoreCertErrors,
	}
}

func playwrightOptions(cfg config.Config) browser.PlaywrightOptions {
	return browser.PlaywrightOptions{
		BrowserPath:      cfg.BrowserPath,
		DriverDir:        cfg.DriverPath,
		Headless:         cfg.Headless,
		IgnoreCertErrors: cfg.IgnoreCertErrors,
	}
}

func automatorOptions(cfg config.Config) portal.Options {
	return portal.Options{
		PortalURL:    cfg.PortalURL,
		Steps:        portal.Steps(cfg.Locators),
		StepTimeout:  cfg.StepTimeout,
		NavTimeout:   cfg.NavTimeout,
		LoginTimeout: cfg.LoginTimeout,
		Settle:       cfg.SessionSettle,
	}
}

func orchestratorOptions(cfg config.Config) orchestrator.Options {
	return orchestrator.Options{
		SSID:         cfg.SSID,
		Internet:     reach.Endpoint{Name: "internet", URL: cfg.InternetURL, WantStatus: cfg.InternetStatus},
		Portal:       reach.Endpoint{Name: "portal", URL: cfg.PortalURL},
		ProbeTimeout: cfg.ProbeTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Backoff:      cfg.Backoff,
		Credentials:  portal.Credentials{Username: cfg.Username, Password: cfg.Password},
		VerifyLogin:  cfg.VerifyLogin,
		VerifyDelay:  cfg.VerifyDelay,
	}
}

func summary(res orchestrator.Result) string {
	switch res.State {
	case orchestrator.WrongNetwork:
		ssid := res.SSID
		if ssid == "" {
			ssid = "no wifi network"
		}
		return fmt.Sprintf("Not on the campus network (%s); nothing to do.", ssid)
	case orchestrator.AlreadyOnline:
		return "Already online; no login needed."
	case orchestrator.LoginSucceeded:
		msg := fmt.Sprintf("Login submitted after %d portal check(s).", res.Attempts)
		if res.Verified != nil {
			if *res.Verified {
				msg += " Internet is reachable."
			} else {
				msg += " Internet is still unreachable."
			}
		}
		return msg
	case orchestrator.LoginFailed:
		return fmt.Sprintf("Login failed: %s.", res.Reason)
	}
	return "Stopped in state " + res.State.String() + "."
}

func settle(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
