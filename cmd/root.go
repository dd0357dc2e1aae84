package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"portalpass/internal/appdirs"
	"portalpass/internal/config"
)

var (
	ConfigPath      string
	EngineName      string
	Headless        bool
	Stealth         bool
	Prompt          bool
	Verify          bool
	ShowNetActivity bool
	Verbose         bool
)

// Version is overridden at build time with -ldflags "-X portalpass/cmd.Version=...".
var Version = "dev"

// ExitError carries a process exit status out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an Execute error onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

var log = zerolog.Nop()

var RootCmd = &cobra.Command{
	Use:   "portalpass",
	Short: "Log in to the campus captive portal when the WiFi needs it",
	Long: `portalpass checks which WiFi network the machine is on. On the campus network
without internet access it waits for the captive portal to come up, then fills in
and submits the portal's login form with a browser. It does nothing on any other
network, or when the internet is already reachable.

Credentials come from PORTALPASS_USERNAME and PORTALPASS_PASSWORD (or the legacy
aus_wifi_username / aus_wifi_password), never from the config file.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = newLogger(os.Stderr, os.Getenv("LOG_LEVEL"), Verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}
		return runLogin(cmd.Context(), cmd.OutOrStdout(), cfg)
	},
}

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the portalpass version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "portalpass", Version)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Path to the TOML config file (default $PORTALPASS_CONFIG or the user config dir)")
	RootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false, "Log at debug level")

	RootCmd.Flags().StringVar(&EngineName, "engine", "", "Browser engine: rod (Brave/Chrome) or playwright (Firefox)")
	RootCmd.Flags().BoolVar(&Headless, "headless", false, "Run the browser without a window")
	RootCmd.Flags().BoolVar(&Stealth, "stealth", false, "Hide automation markers from the portal page (rod only)")
	RootCmd.Flags().BoolVar(&Prompt, "prompt", false, "Ask for missing credentials on the terminal")
	RootCmd.Flags().BoolVar(&Verify, "verify", false, "Re-check internet access after submitting the login form")
	RootCmd.Flags().BoolVarP(&ShowNetActivity, "net-activity", "n", false, "Log the browser's network requests")

	RootCmd.AddCommand(StatusCmd)
	RootCmd.AddCommand(VersionCmd)
}

// Execute runs the command line under ctx.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

func newLogger(w io.Writer, level string, verbose bool) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

// loadConfig resolves the run configuration from the file, the environment
// and this command's flags.
func loadConfig(cmd *cobra.Command, networkOnly bool) (config.Config, error) {
	defaultPath, err := appdirs.ConfigFile()
	if err != nil {
		log.Debug().Err(err).Msg("no default config location")
	}

	loader := config.Loader{
		ConfigPath:  ConfigPath,
		DefaultPath: defaultPath,
		NetworkOnly: networkOnly,
		Overrides: config.Overrides{
			Engine:   EngineName,
			Headless: changedBool(cmd, "headless", Headless),
			Stealth:  changedBool(cmd, "stealth", Stealth),
			Verify:   changedBool(cmd, "verify", Verify),
		},
	}
	if Prompt && !networkOnly {
		if isInteractive() {
			loader.Prompt = askCredential
		} else {
			log.Warn().Msg("--prompt requested but no interactive terminal available; using the environment only")
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return config.Config{}, err
	}
	log.Debug().Object("config", cfg).Msg("configuration loaded")
	return cfg, nil
}

func changedBool(cmd *cobra.Command, name string, v bool) *bool {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}
	return &v
}
