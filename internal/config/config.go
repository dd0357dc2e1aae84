// Package config builds the single immutable Config used by a portalpass run.
//
// Values are resolved once at startup with the precedence
// defaults < config file < environment < command-line overrides, then
// validated. Secrets come from the environment (or an interactive prompt) only;
// the config file never carries them.
package config

import (
	"time"

	"github.com/rs/zerolog"
)

// Engine names a browser automation backend.
type Engine string

const (
	EngineRod        Engine = "rod"
	EnginePlaywright Engine = "playwright"
)

// Default values used when neither the config file nor the environment set an option.
const (
	DefaultSSID          = "CAMPUS CONNECT AUS"
	DefaultPortalURL     = "http://122.252.242.93/"
	DefaultInternetURL   = "https://www.google.com"
	DefaultProbeTimeout  = 5 * time.Second
	DefaultMaxAttempts   = 5
	DefaultBackoff       = 2 * time.Second
	DefaultStepTimeout   = 10 * time.Second
	DefaultNavTimeout    = 30 * time.Second
	DefaultLoginTimeout  = 60 * time.Second
	DefaultSessionSettle = 2 * time.Second
	DefaultExitSettle    = 3 * time.Second
	DefaultVerifyDelay   = 3 * time.Second
)

// Locators are the XPath expressions of the portal's fixed page layout.
type Locators struct {
	FirstMenu  string `validate:"required"`
	SecondMenu string `validate:"required"`
	Username   string `validate:"required"`
	Password   string `validate:"required"`
	Submit     string `validate:"required"`
}

// DefaultLocators match the portal layout at the time of writing.
func DefaultLocators() Locators {
	return Locators{
		FirstMenu:  "/html/body/div/div[3]/a[1]",
		SecondMenu: "/html/body/div/div[3]/a[2]",
		Username:   `//*[@id="form1"]/div[1]/input[1]`,
		Password:   `//*[@id="form1"]/div[1]/input[2]`,
		Submit:     `//*[@id="form1"]/div[3]/input`,
	}
}

type Config struct {
	SSID           string `validate:"required"`
	PortalURL      string `validate:"required,url"`
	InternetURL    string `validate:"required,url"`
	InternetStatus int    `validate:"gte=0,lte=599"`
	WifiInterface  string

	Username string `validate:"required"`
	Password string `validate:"required"`

	Engine      Engine `validate:"oneof=rod playwright"`
	BrowserPath string `validate:"required,file"`
	DriverPath  string `validate:"omitempty,file|dir"`
	Headless    bool
	Stealth     bool
	// IgnoreCertErrors accepts self-signed certificates on the portal.
	IgnoreCertErrors bool

	ProbeTimeout  time.Duration `validate:"gt=0"`
	MaxAttempts   int           `validate:"gte=1"`
	Backoff       time.Duration `validate:"gte=0"`
	StepTimeout   time.Duration `validate:"gt=0"`
	NavTimeout    time.Duration `validate:"gt=0"`
	LoginTimeout  time.Duration `validate:"gt=0"`
	SessionSettle time.Duration `validate:"gte=0"`
	ExitSettle    time.Duration `validate:"gte=0"`

	VerifyLogin         bool
	VerifyDelay         time.Duration `validate:"gte=0"`
	ScreenshotOnFailure bool

	Locators Locators

	// Source is the config file that contributed values, empty if none was read.
	Source string `validate:"-"`
}

func defaults() Config {
	return Config{
		SSID:          DefaultSSID,
		PortalURL:     DefaultPortalURL,
		InternetURL:   DefaultInternetURL,
		Engine:        EngineRod,
		ProbeTimeout:  DefaultProbeTimeout,
		MaxAttempts:   DefaultMaxAttempts,
		Backoff:       DefaultBackoff,
		StepTimeout:   DefaultStepTimeout,
		NavTimeout:    DefaultNavTimeout,
		LoginTimeout:  DefaultLoginTimeout,
		SessionSettle: DefaultSessionSettle,
		ExitSettle:    DefaultExitSettle,
		VerifyDelay:   DefaultVerifyDelay,
		Locators:      DefaultLocators(),
	}
}

// MarshalZerologObject logs every setting except the credentials.
func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("ssid", c.SSID).
		Str("portal_url", c.PortalURL).
		Str("internet_url", c.InternetURL).
		Str("engine", string(c.Engine)).
		Str("browser_path", c.BrowserPath).
		Str("driver_path", c.DriverPath).
		Bool("headless", c.Headless).
		Bool("stealth", c.Stealth).
		Bool("ignore_cert_errors", c.IgnoreCertErrors).
		Dur("probe_timeout", c.ProbeTimeout).
		Int("max_attempts", c.MaxAttempts).
		Dur("backoff", c.Backoff).
		Dur("step_timeout", c.StepTimeout).
		Dur("nav_timeout", c.NavTimeout).
		Bool("verify_login", c.VerifyLogin).
		Bool("username_set", c.Username != "").
		Str("source", c.Source)
}
