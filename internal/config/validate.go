package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every configuration problem found in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// settingNames maps struct namespaces to the names users see, with the
// environment variable to set where one exists.
var settingNames = map[string]string{
	"SSID":           "ssid",
	"PortalURL":      "portal_url",
	"InternetURL":    "internet_url",
	"InternetStatus": "internet_status",
	"Username":       "username (set " + EnvUsername + ")",
	"Password":       "password (set " + EnvPassword + ")",
	"Engine":         "engine (set " + EnvEngine + ")",
	"BrowserPath":    "browser path (set " + EnvBrowserPath + ")",
	"DriverPath":     "driver path (set " + EnvDriverPath + ")",
	"ProbeTimeout":   "probe_timeout",
	"MaxAttempts":    "max_attempts",
	"Backoff":        "backoff",
	"StepTimeout":    "step_timeout",
	"NavTimeout":     "nav_timeout",
	"LoginTimeout":   "login_timeout",
	"SessionSettle":  "session_settle",
	"ExitSettle":     "exit_settle",
	"VerifyDelay":    "verify_delay",
}

var structValidator = validator.New()

// networkFields are the settings the probes need. They are all that is
// checked when the loader only resolves network settings.
var networkFields = []string{"SSID", "PortalURL", "InternetURL", "InternetStatus", "ProbeTimeout"}

func validate(cfg Config, networkOnly bool) error {
	var problems []string

	var err error
	if networkOnly {
		err = structValidator.StructPartial(cfg, networkFields...)
	} else {
		err = structValidator.Struct(cfg)
	}
	if err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if !networkOnly && cfg.Engine == EnginePlaywright && cfg.DriverPath == "" {
		problems = append(problems, fmt.Sprintf("%s is required for the playwright engine", settingNames["DriverPath"]))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	ns := strings.TrimPrefix(fe.StructNamespace(), "Config.")
	name, ok := settingNames[ns]
	if !ok {
		if strings.HasPrefix(ns, "Locators.") {
			name = "locators." + toSnake(strings.TrimPrefix(ns, "Locators."))
		} else {
			name = ns
		}
	}

	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "url":
		return fmt.Sprintf("%s %q is not a valid URL", name, fe.Value())
	case "file":
		return fmt.Sprintf("%s %q does not exist or is not a file", name, fe.Value())
	case "file|dir":
		return fmt.Sprintf("%s %q does not exist", name, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s %q must be one of: %s", name, fe.Value(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", name, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	}
	return fmt.Sprintf("%s failed %q check", name, fe.Tag())
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
