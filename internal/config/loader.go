package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables read by the loader. The legacy names are what the
// original login scripts used and keep existing Task Scheduler setups working.
const (
	EnvUsername    = "PORTALPASS_USERNAME"
	EnvPassword    = "PORTALPASS_PASSWORD"
	EnvEngine      = "PORTALPASS_ENGINE"
	EnvBrowserPath = "PORTALPASS_BROWSER_PATH"
	EnvDriverPath  = "PORTALPASS_DRIVER_PATH"
	EnvConfigPath  = "PORTALPASS_CONFIG"
	EnvHeadless    = "PORTALPASS_HEADLESS"

	legacyUsername       = "aus_wifi_username"
	legacyPassword       = "aus_wifi_password"
	legacyBraveBrowser   = "BRAVE_BROWSER_PATH"
	legacyChromeDriver   = "CHROME_DRIVER_PATH"
	legacyFirefoxBrowser = "FIREFOX_BROWSER_PATH"
	legacyGeckoDriver    = "GECKO_DRIVER_PATH"
)

// Overrides carries command-line flags. Nil or empty fields leave the
// resolved value alone.
type Overrides struct {
	Engine   string
	Headless *bool
	Stealth  *bool
	Verify   *bool
}

// PromptFunc asks the user for a missing credential. field is "username" or
// "password"; secret is true for the password.
type PromptFunc func(field string, secret bool) (string, error)

// Loader resolves the run configuration.
type Loader struct {
	// ConfigPath points at a TOML file. If empty the loader uses $PORTALPASS_CONFIG
	// and then DefaultPath. A missing file is not an error.
	ConfigPath string

	// DefaultPath is the fallback config file location, usually appdirs.ConfigFile().
	DefaultPath string

	// Getenv is used to pull environment variables. Defaults to os.Getenv.
	Getenv func(string) string

	// ReadFile is used to read the config file. Defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)

	// Prompt, when set, is consulted for credentials the environment left empty.
	Prompt PromptFunc

	Overrides Overrides

	// NetworkOnly skips credentials and browser settings, for commands that
	// only probe the network.
	NetworkOnly bool
}

// fileConfig mirrors the TOML layout. Pointers distinguish "unset" from zero.
type fileConfig struct {
	SSID                string    `toml:"ssid"`
	PortalURL           string    `toml:"portal_url"`
	InternetURL         string    `toml:"internet_url"`
	InternetStatus      *int      `toml:"internet_status"`
	WifiInterface       string    `toml:"wifi_interface"`
	Engine              string    `toml:"engine"`
	BrowserPath         string    `toml:"browser_path"`
	DriverPath          string    `toml:"driver_path"`
	Headless            *bool     `toml:"headless"`
	Stealth             *bool     `toml:"stealth"`
	IgnoreCertErrors    *bool     `toml:"ignore_cert_errors"`
	ProbeTimeout        *duration `toml:"probe_timeout"`
	MaxAttempts         *int      `toml:"max_attempts"`
	Backoff             *duration `toml:"backoff"`
	StepTimeout         *duration `toml:"step_timeout"`
	NavTimeout          *duration `toml:"nav_timeout"`
	LoginTimeout        *duration `toml:"login_timeout"`
	SessionSettle       *duration `toml:"session_settle"`
	ExitSettle          *duration `toml:"exit_settle"`
	VerifyLogin         *bool     `toml:"verify_login"`
	VerifyDelay         *duration `toml:"verify_delay"`
	ScreenshotOnFailure *bool     `toml:"screenshot_on_failure"`
	Locators            struct {
		FirstMenu  string `toml:"first_menu"`
		SecondMenu string `toml:"second_menu"`
		Username   string `toml:"username"`
		Password   string `toml:"password"`
		Submit     string `toml:"submit"`
	} `toml:"locators"`

	// Rejected on sight so nobody is tempted to store secrets on disk.
	SecretUsername string `toml:"username"`
	SecretPassword string `toml:"password"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Load resolves and validates the configuration. The returned error is either
// a file problem or a *ValidationError listing every invalid setting.
func (l *Loader) Load() (Config, error) {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	readFile := l.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	cfg := defaults()

	path, explicit := l.ConfigPath, true
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(getenv(EnvConfigPath))
	}
	if path == "" {
		path, explicit = l.DefaultPath, false
	}

	fc, err := readConfig(path, explicit, readFile)
	if err != nil {
		return Config{}, err
	}
	if fc != nil {
		if fc.SecretUsername != "" || fc.SecretPassword != "" {
			return Config{}, fmt.Errorf("config file %s: credentials must come from %s and %s, not the file", path, EnvUsername, EnvPassword)
		}
		applyFile(&cfg, fc)
		cfg.Source = path
	}

	applyEnv(&cfg, getenv, l.Overrides.Engine)
	applyOverrides(&cfg, l.Overrides)

	if l.Prompt != nil && !l.NetworkOnly {
		if err := promptMissing(&cfg, l.Prompt); err != nil {
			return Config{}, err
		}
	}

	if err := validate(cfg, l.NetworkOnly); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readConfig(path string, explicit bool, readFile func(string) ([]byte, error)) (*fileConfig, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	data, err := readFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if _, err := toml.Decode(string(data), &fc); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &fc, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	setString(&cfg.SSID, fc.SSID)
	setString(&cfg.PortalURL, fc.PortalURL)
	setString(&cfg.InternetURL, fc.InternetURL)
	setString(&cfg.WifiInterface, fc.WifiInterface)
	setString(&cfg.BrowserPath, fc.BrowserPath)
	setString(&cfg.DriverPath, fc.DriverPath)
	if e := strings.TrimSpace(fc.Engine); e != "" {
		cfg.Engine = Engine(strings.ToLower(e))
	}
	if fc.InternetStatus != nil {
		cfg.InternetStatus = *fc.InternetStatus
	}
	if fc.MaxAttempts != nil {
		cfg.MaxAttempts = *fc.MaxAttempts
	}
	setBool(&cfg.Headless, fc.Headless)
	setBool(&cfg.Stealth, fc.Stealth)
	setBool(&cfg.IgnoreCertErrors, fc.IgnoreCertErrors)
	setBool(&cfg.VerifyLogin, fc.VerifyLogin)
	setBool(&cfg.ScreenshotOnFailure, fc.ScreenshotOnFailure)
	setDuration(&cfg.ProbeTimeout, fc.ProbeTimeout)
	setDuration(&cfg.Backoff, fc.Backoff)
	setDuration(&cfg.StepTimeout, fc.StepTimeout)
	setDuration(&cfg.NavTimeout, fc.NavTimeout)
	setDuration(&cfg.LoginTimeout, fc.LoginTimeout)
	setDuration(&cfg.SessionSettle, fc.SessionSettle)
	setDuration(&cfg.ExitSettle, fc.ExitSettle)
	setDuration(&cfg.VerifyDelay, fc.VerifyDelay)

	setString(&cfg.Locators.FirstMenu, fc.Locators.FirstMenu)
	setString(&cfg.Locators.SecondMenu, fc.Locators.SecondMenu)
	setString(&cfg.Locators.Username, fc.Locators.Username)
	setString(&cfg.Locators.Password, fc.Locators.Password)
	setString(&cfg.Locators.Submit, fc.Locators.Submit)
}

// engineFlag is consulted only to pick the legacy path variables; the flag
// itself is applied later by applyOverrides.
func applyEnv(cfg *Config, getenv func(string) string, engineFlag string) {
	setString(&cfg.Username, firstEnv(getenv, EnvUsername, legacyUsername))
	// Passwords may legitimately have surrounding spaces; only emptiness matters.
	if v := getenv(EnvPassword); v != "" {
		cfg.Password = v
	} else if v := getenv(legacyPassword); v != "" {
		cfg.Password = v
	}

	if e := strings.TrimSpace(getenv(EnvEngine)); e != "" {
		cfg.Engine = Engine(strings.ToLower(e))
	}

	if b, ok := parseBool(getenv(EnvHeadless)); ok {
		cfg.Headless = b
	}

	engine := cfg.Engine
	if e := strings.TrimSpace(engineFlag); e != "" {
		engine = Engine(strings.ToLower(e))
	}
	legacyBrowser, legacyDriver := legacyBraveBrowser, legacyChromeDriver
	if engine == EnginePlaywright {
		legacyBrowser, legacyDriver = legacyFirefoxBrowser, legacyGeckoDriver
	}
	setString(&cfg.BrowserPath, firstEnv(getenv, EnvBrowserPath, legacyBrowser))
	setString(&cfg.DriverPath, firstEnv(getenv, EnvDriverPath, legacyDriver))
}

func applyOverrides(cfg *Config, o Overrides) {
	if e := strings.TrimSpace(o.Engine); e != "" {
		cfg.Engine = Engine(strings.ToLower(e))
	}
	setBool(&cfg.Headless, o.Headless)
	setBool(&cfg.Stealth, o.Stealth)
	setBool(&cfg.VerifyLogin, o.Verify)
}

func promptMissing(cfg *Config, prompt PromptFunc) error {
	if cfg.Username == "" {
		v, err := prompt("username", false)
		if err != nil {
			return fmt.Errorf("prompt username: %w", err)
		}
		cfg.Username = strings.TrimSpace(v)
	}
	if cfg.Password == "" {
		v, err := prompt("password", true)
		if err != nil {
			return fmt.Errorf("prompt password: %w", err)
		}
		cfg.Password = v
	}
	return nil
}

func firstEnv(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *duration) {
	if v != nil {
		*dst = v.Duration
	}
}

// parseBool accepts strconv spellings plus yes/no/on/off.
func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	return b, err == nil
}
