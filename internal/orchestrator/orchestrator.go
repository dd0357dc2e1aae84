// Package orchestrator decides, once per run, whether the machine needs to log
// in to the captive portal and drives the login when it does.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"portalpass/internal/netid"
	"portalpass/internal/portal"
	"portalpass/internal/reach"
)

// State is a step of a run. WrongNetwork, AlreadyOnline, LoginSucceeded and
// LoginFailed are terminal.
type State int

const (
	Idle State = iota
	IdentityChecked
	WrongNetwork
	NetworkConfirmed
	AlreadyOnline
	NeedsLogin
	PortalCheck
	PortalUnreachable
	RetryLoop
	PortalReachable
	LoginAttempt
	LoginSucceeded
	LoginFailed
)

var stateNames = [...]string{
	Idle:              "idle",
	IdentityChecked:   "identity checked",
	WrongNetwork:      "wrong network",
	NetworkConfirmed:  "network confirmed",
	AlreadyOnline:     "already online",
	NeedsLogin:        "needs login",
	PortalCheck:       "portal check",
	PortalUnreachable: "portal unreachable",
	RetryLoop:         "retry loop",
	PortalReachable:   "portal reachable",
	LoginAttempt:      "login attempt",
	LoginSucceeded:    "login succeeded",
	LoginFailed:       "login failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the run ends in s.
func (s State) Terminal() bool {
	switch s {
	case WrongNetwork, AlreadyOnline, LoginSucceeded, LoginFailed:
		return true
	}
	return false
}

// ReasonPortalUnreachable is the LoginFailed reason when every portal probe failed.
const ReasonPortalUnreachable = "portal unreachable"

var errPortalDown = errors.New(ReasonPortalUnreachable)

type IdentityProbe interface {
	Current(ctx context.Context) netid.Identity
}

type ReachabilityProbe interface {
	IsReachable(ctx context.Context, ep reach.Endpoint, timeout time.Duration) bool
}

type LoginAutomator interface {
	Login(ctx context.Context, creds portal.Credentials) portal.Outcome
}

type Options struct {
	SSID         string
	Internet     reach.Endpoint
	Portal       reach.Endpoint
	ProbeTimeout time.Duration
	MaxAttempts  int
	Backoff      time.Duration
	Credentials  portal.Credentials

	// VerifyLogin re-probes the internet VerifyDelay after a successful login.
	VerifyLogin bool
	VerifyDelay time.Duration
}

// Result summarises a finished run.
type Result struct {
	State State
	SSID  string
	// Attempts counts portal probes.
	Attempts int
	Outcome  *portal.Outcome
	Reason   string
	// Verified is set only when post-login verification ran.
	Verified *bool
}

type Orchestrator struct {
	identity IdentityProbe
	reach    ReachabilityProbe
	login    LoginAutomator
	opts     Options
	log      zerolog.Logger

	// Sleep waits d or until ctx ends, whichever comes first.
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(id IdentityProbe, rp ReachabilityProbe, la LoginAutomator, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Orchestrator{
		identity: id,
		reach:    rp,
		login:    la,
		opts:     opts,
		log:      log.With().Str("component", "orchestrator").Logger(),
		Sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run performs one pass of the state machine and returns its terminal state.
func (o *Orchestrator) Run(ctx context.Context) Result {
	var res Result
	o.enter(&res, Idle)

	id := o.identity.Current(ctx)
	res.SSID = id.SSID
	o.enter(&res, IdentityChecked, "ssid", id.String())

	if id.SSID != o.opts.SSID {
		return o.finish(&res, WrongNetwork, "connected to "+id.String()+", want "+o.opts.SSID)
	}
	o.enter(&res, NetworkConfirmed)

	if o.reach.IsReachable(ctx, o.opts.Internet, o.opts.ProbeTimeout) {
		return o.finish(&res, AlreadyOnline, "")
	}
	o.enter(&res, NeedsLogin)

	if err := o.awaitPortal(ctx, &res); err != nil {
		if ctx.Err() != nil {
			return o.finish(&res, LoginFailed, ctx.Err().Error())
		}
		return o.finish(&res, LoginFailed, ReasonPortalUnreachable)
	}

	o.enter(&res, LoginAttempt)
	out := o.login.Login(ctx, o.opts.Credentials)
	res.Outcome = &out
	if !out.Succeeded() {
		return o.finish(&res, LoginFailed, out.String())
	}
	o.finish(&res, LoginSucceeded, "")

	if o.opts.VerifyLogin {
		o.verify(ctx, &res)
	}
	return res
}

// awaitPortal probes the portal up to MaxAttempts times, waiting Backoff
// between attempts. It returns nil as soon as one probe succeeds.
func (o *Orchestrator) awaitPortal(ctx context.Context, res *Result) error {
	o.enter(res, PortalCheck)
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		if o.reach.IsReachable(ctx, o.opts.Portal, o.opts.ProbeTimeout) {
			o.enter(res, PortalReachable, "attempt", attempt)
			return nil
		}
		o.enter(res, PortalUnreachable, "attempt", attempt)
		if attempt >= o.opts.MaxAttempts {
			return errPortalDown
		}
		if attempt == 1 {
			o.enter(res, RetryLoop, "max_attempts", o.opts.MaxAttempts)
		}
		if err := o.Sleep(ctx, o.opts.Backoff); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) verify(ctx context.Context, res *Result) {
	if err := o.Sleep(ctx, o.opts.VerifyDelay); err != nil {
		o.log.Warn().Err(err).Msg("login verification skipped")
		return
	}
	ok := o.reach.IsReachable(ctx, o.opts.Internet, o.opts.ProbeTimeout)
	res.Verified = &ok
	if ok {
		o.log.Info().Msg("internet reachable after login")
	} else {
		o.log.Warn().Msg("internet still unreachable after login")
	}
}

func (o *Orchestrator) enter(res *Result, s State, fields ...any) {
	res.State = s
	o.log.Info().Stringer("state", s).Fields(fields).Msg("state changed")
}

func (o *Orchestrator) finish(res *Result, s State, reason string) Result {
	res.State = s
	res.Reason = reason
	ev := o.log.Info()
	if s == LoginFailed {
		ev = o.log.Error()
	}
	ev.Stringer("state", s).Int("attempts", res.Attempts).Str("reason", reason).Msg("run finished")
	return *res
}
