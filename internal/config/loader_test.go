package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeEnv map[string]string

func (f fakeEnv) Get(key string) string {
	return f[key]
}

type fakeFS struct {
	files map[string]string
	err   error
}

func (f fakeFS) ReadFile(path string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if data, ok := f.files[path]; ok {
		return []byte(data), nil
	}
	return nil, os.ErrNotExist
}

// touch creates an empty file so "file" validation passes.
func touch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, nil, 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoaderDefaultsFromEnvOnly(t *testing.T) {
	brave := touch(t, "brave")
	env := fakeEnv{
		EnvUsername:    "student",
		EnvPassword:    "s3cret",
		EnvBrowserPath: brave,
	}

	loader := Loader{Getenv: env.Get, ReadFile: fakeFS{}.ReadFile, DefaultPath: "/nowhere/config.toml"}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SSID != DefaultSSID {
		t.Fatalf("expected default SSID, got %q", cfg.SSID)
	}
	if cfg.PortalURL != DefaultPortalURL || cfg.InternetURL != DefaultInternetURL {
		t.Fatalf("unexpected URLs %q / %q", cfg.PortalURL, cfg.InternetURL)
	}
	if cfg.Engine != EngineRod {
		t.Fatalf("expected rod engine by default, got %q", cfg.Engine)
	}
	if cfg.MaxAttempts != 5 || cfg.Backoff != 2*time.Second || cfg.ProbeTimeout != 5*time.Second {
		t.Fatalf("unexpected retry policy %d/%s/%s", cfg.MaxAttempts, cfg.Backoff, cfg.ProbeTimeout)
	}
	if cfg.StepTimeout != 10*time.Second {
		t.Fatalf("unexpected step timeout %s", cfg.StepTimeout)
	}
	if cfg.NavTimeout <= cfg.StepTimeout {
		t.Fatalf("page load must get longer than one step wait, got %s", cfg.NavTimeout)
	}
	if cfg.Locators != DefaultLocators() {
		t.Fatalf("expected default locators, got %#v", cfg.Locators)
	}
	if cfg.Source != "" {
		t.Fatalf("expected no config source, got %q", cfg.Source)
	}
}

func TestLoaderLegacyVariables(t *testing.T) {
	brave := touch(t, "brave")
	chromedriver := touch(t, "chromedriver")
	firefox := touch(t, "firefox")
	gecko := touch(t, "geckodriver")

	tests := []struct {
		name        string
		env         fakeEnv
		flagEngine  string
		wantBrowser string
		wantDriver  string
	}{
		{
			name: "rod uses brave and chromedriver",
			env: fakeEnv{
				legacyUsername: "u", legacyPassword: "p",
				legacyBraveBrowser: brave, legacyChromeDriver: chromedriver,
				legacyFirefoxBrowser: firefox, legacyGeckoDriver: gecko,
			},
			wantBrowser: brave,
			wantDriver:  chromedriver,
		},
		{
			name: "playwright via env uses firefox and gecko",
			env: fakeEnv{
				legacyUsername: "u", legacyPassword: "p", EnvEngine: "Playwright",
				legacyBraveBrowser: brave, legacyChromeDriver: chromedriver,
				legacyFirefoxBrowser: firefox, legacyGeckoDriver: gecko,
			},
			wantBrowser: firefox,
			wantDriver:  gecko,
		},
		{
			name: "playwright via flag uses firefox and gecko",
			env: fakeEnv{
				legacyUsername: "u", legacyPassword: "p",
				legacyBraveBrowser: brave, legacyChromeDriver: chromedriver,
				legacyFirefoxBrowser: firefox, legacyGeckoDriver: gecko,
			},
			flagEngine:  "playwright",
			wantBrowser: firefox,
			wantDriver:  gecko,
		},
		{
			name: "new names win over legacy",
			env: fakeEnv{
				EnvUsername: "new", legacyUsername: "old", EnvPassword: "p",
				EnvBrowserPath: firefox, legacyBraveBrowser: brave,
			},
			wantBrowser: firefox,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			loader := Loader{Getenv: tc.env.Get, ReadFile: fakeFS{}.ReadFile, Overrides: Overrides{Engine: tc.flagEngine}}
			cfg, err := loader.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.BrowserPath != tc.wantBrowser {
				t.Fatalf("expected browser %q, got %q", tc.wantBrowser, cfg.BrowserPath)
			}
			if cfg.DriverPath != tc.wantDriver {
				t.Fatalf("expected driver %q, got %q", tc.wantDriver, cfg.DriverPath)
			}
			if cfg.Username == "old" {
				t.Fatalf("legacy username should not override %s", EnvUsername)
			}
		})
	}
}

func TestLoaderReadsConfigFile(t *testing.T) {
	brave := touch(t, "brave")
	configPath := filepath.FromSlash("/etc/portalpass.toml")
	fs := fakeFS{files: map[string]string{
		configPath: `
ssid = "Dorm WiFi"
portal_url = "http://10.0.0.1/login"
internet_status = 204
internet_url = "http://connectivitycheck.gstatic.com/generate_204"
max_attempts = 3
backoff = "500ms"
step_timeout = "15s"
nav_timeout = "45s"
ignore_cert_errors = true
headless = true
verify_login = true

[locators]
submit = "//button[@type='submit']"
`,
	}}
	env := fakeEnv{EnvUsername: "u", EnvPassword: "p", EnvBrowserPath: brave, EnvHeadless: "no"}

	loader := Loader{ConfigPath: configPath, Getenv: env.Get, ReadFile: fs.ReadFile}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SSID != "Dorm WiFi" || cfg.PortalURL != "http://10.0.0.1/login" {
		t.Fatalf("file values not applied: %q %q", cfg.SSID, cfg.PortalURL)
	}
	if cfg.InternetStatus != 204 || cfg.MaxAttempts != 3 || cfg.Backoff != 500*time.Millisecond {
		t.Fatalf("unexpected numeric settings %d %d %s", cfg.InternetStatus, cfg.MaxAttempts, cfg.Backoff)
	}
	if cfg.StepTimeout != 15*time.Second || cfg.NavTimeout != 45*time.Second {
		t.Fatalf("unexpected timeouts step=%s nav=%s", cfg.StepTimeout, cfg.NavTimeout)
	}
	if !cfg.IgnoreCertErrors {
		t.Fatalf("expected ignore_cert_errors from file")
	}
	if cfg.Headless {
		t.Fatalf("expected %s=no to override file headless=true", EnvHeadless)
	}
	if !cfg.VerifyLogin {
		t.Fatalf("expected verify_login from file")
	}
	if cfg.Locators.Submit != "//button[@type='submit']" {
		t.Fatalf("expected submit locator override, got %q", cfg.Locators.Submit)
	}
	if cfg.Locators.FirstMenu != DefaultLocators().FirstMenu {
		t.Fatalf("expected untouched locators to keep defaults")
	}
	if cfg.Source != configPath {
		t.Fatalf("expected source %q, got %q", configPath, cfg.Source)
	}
}

func TestLoaderFlagOverrides(t *testing.T) {
	brave := touch(t, "brave")
	yes := true
	env := fakeEnv{EnvUsername: "u", EnvPassword: "p", EnvBrowserPath: brave, EnvHeadless: "false"}

	loader := Loader{Getenv: env.Get, ReadFile: fakeFS{}.ReadFile, Overrides: Overrides{Headless: &yes, Verify: &yes}}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Headless || !cfg.VerifyLogin {
		t.Fatalf("expected flag overrides to win, got headless=%v verify=%v", cfg.Headless, cfg.VerifyLogin)
	}
	if cfg.Stealth {
		t.Fatalf("nil override must leave stealth alone")
	}
}

func TestLoaderRejectsCredentialsInFile(t *testing.T) {
	fs := fakeFS{files: map[string]string{"/c.toml": `password = "hunter2"`}}
	loader := Loader{ConfigPath: "/c.toml", Getenv: fakeEnv{}.Get, ReadFile: fs.ReadFile}

	_, err := loader.Load()
	if err == nil || !strings.Contains(err.Error(), EnvPassword) {
		t.Fatalf("expected credentials-in-file error, got %v", err)
	}
}

func TestLoaderFileErrors(t *testing.T) {
	t.Run("explicit missing file", func(t *testing.T) {
		loader := Loader{ConfigPath: "/missing.toml", Getenv: fakeEnv{}.Get, ReadFile: fakeFS{}.ReadFile}
		if _, err := loader.Load(); err == nil || !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected not-exist error, got %v", err)
		}
	})
	t.Run("malformed toml", func(t *testing.T) {
		fs := fakeFS{files: map[string]string{"/bad.toml": `ssid = `}}
		loader := Loader{ConfigPath: "/bad.toml", Getenv: fakeEnv{}.Get, ReadFile: fs.ReadFile}
		if _, err := loader.Load(); err == nil || !strings.Contains(err.Error(), "decode config") {
			t.Fatalf("expected decode error, got %v", err)
		}
	})
	t.Run("bad duration", func(t *testing.T) {
		fs := fakeFS{files: map[string]string{"/bad.toml": `backoff = "soon"`}}
		loader := Loader{ConfigPath: "/bad.toml", Getenv: fakeEnv{}.Get, ReadFile: fs.ReadFile}
		if _, err := loader.Load(); err == nil {
			t.Fatalf("expected duration parse error")
		}
	})
}

func TestLoaderValidation(t *testing.T) {
	brave := touch(t, "brave")
	dir := t.TempDir()

	tests := []struct {
		name    string
		env     fakeEnv
		file    string
		wantAll []string
	}{
		{
			name:    "missing everything",
			env:     fakeEnv{},
			wantAll: []string{EnvUsername, EnvPassword, EnvBrowserPath},
		},
		{
			name:    "browser path does not exist",
			env:     fakeEnv{EnvUsername: "u", EnvPassword: "p", EnvBrowserPath: filepath.Join(dir, "nope")},
			wantAll: []string{"does not exist or is not a file"},
		},
		{
			name:    "driver path does not exist",
			env:     fakeEnv{EnvUsername: "u", EnvPassword: "p", EnvBrowserPath: brave, EnvDriverPath: filepath.Join(dir, "nope")},
			wantAll: []string{EnvDriverPath},
		},
		{
			name:    "unknown engine",
			env:     fakeEnv{EnvUsername: "u", EnvPassword: "p", EnvBrowserPath: brave, EnvEngine: "selenium"},
			wantAll: []string{"must be one of"},
		},
		{
			name:    "playwright needs driver",
			env:     fakeEnv{EnvUsername: "u", EnvPassword: "p", EnvBrowserPath: brave, EnvEngine: "playwright"},
			wantAll: []string{"required for the playwright engine"},
		},
		{
			name:    "bad numbers from file",
			env:     fakeEnv{EnvUsername: "u", EnvPassword: "p", EnvBrowserPath: brave},
			file:    "max_attempts = 0\nprobe_timeout = \"0s\"\nportal_url = \"not a url\"\n[locators]\n",
			wantAll: []string{"max_attempts", "probe_timeout", "portal_url"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := fakeFS{files: map[string]string{}}
			loader := Loader{Getenv: tc.env.Get, ReadFile: fs.ReadFile}
			if tc.file != "" {
				fs.files["/c.toml"] = tc.file
				loader.ConfigPath = "/c.toml"
			}

			_, err := loader.Load()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			for _, want := range tc.wantAll {
				if !strings.Contains(err.Error(), want) {
					t.Fatalf("expected %q in %q", want, err.Error())
				}
			}
		})
	}
}

func TestLoaderPlaywrightAcceptsDriverDirectory(t *testing.T) {
	firefox := touch(t, "firefox")
	env := fakeEnv{EnvUsername: "u", EnvPassword: "p", EnvEngine: "playwright", EnvBrowserPath: firefox, EnvDriverPath: t.TempDir()}

	loader := Loader{Getenv: env.Get, ReadFile: fakeFS{}.ReadFile}
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoaderPromptsForMissingCredentials(t *testing.T) {
	brave := touch(t, "brave")
	var asked []string
	prompt := func(field string, secret bool) (string, error) {
		asked = append(asked, field)
		if field == "password" && !secret {
			t.Fatalf("password prompt must be secret")
		}
		return " " + field + "-value ", nil
	}

	env := fakeEnv{EnvUsername: "u", EnvBrowserPath: brave}
	loader := Loader{Getenv: env.Get, ReadFile: fakeFS{}.ReadFile, Prompt: prompt}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(asked) != 1 || asked[0] != "password" {
		t.Fatalf("expected only password prompt, got %v", asked)
	}
	if cfg.Password != " password-value " {
		t.Fatalf("password should be kept verbatim, got %q", cfg.Password)
	}

	failing := func(string, bool) (string, error) { return "", errors.New("interrupted") }
	loader = Loader{Getenv: fakeEnv{EnvBrowserPath: brave}.Get, ReadFile: fakeFS{}.ReadFile, Prompt: failing}
	if _, err := loader.Load(); err == nil || !strings.Contains(err.Error(), "prompt username") {
		t.Fatalf("expected prompt error, got %v", err)
	}
}

func TestLoaderNetworkOnly(t *testing.T) {
	prompt := func(string, bool) (string, error) {
		t.Fatalf("network-only load must not prompt")
		return "", nil
	}
	loader := Loader{Getenv: fakeEnv{}.Get, ReadFile: fakeFS{}.ReadFile, Prompt: prompt, NetworkOnly: true}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Username != "" || cfg.PortalURL != DefaultPortalURL {
		t.Fatalf("unexpected config %+v", cfg)
	}

	fs := fakeFS{files: map[string]string{"/c.toml": "portal_url = \"nope\"\n"}}
	loader = Loader{Getenv: fakeEnv{}.Get, ReadFile: fs.ReadFile, ConfigPath: "/c.toml", NetworkOnly: true}
	_, err = loader.Load()
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Problems) != 1 || !strings.Contains(err.Error(), "portal_url") {
		t.Fatalf("expected a single portal_url problem, got %v", err)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in     string
		value  bool
		parsed bool
	}{
		{"", false, false},
		{"1", true, true},
		{"TRUE", true, true},
		{" yes ", true, true},
		{"off", false, true},
		{"maybe", false, false},
	}
	for _, tc := range tests {
		v, ok := parseBool(tc.in)
		if v != tc.value || ok != tc.parsed {
			t.Fatalf("parseBool(%q) = %v,%v; want %v,%v", tc.in, v, ok, tc.value, tc.parsed)
		}
	}
}
