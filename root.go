package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/zwy923/easyEmail/internal/api"
	"github.com/zwy923/easyEmail/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagServerURL  string
	flagBrowser    string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// CLIContext bundles the resolved configuration and shared collaborators
// for subcommands. It is stored on the command context by the root
// pre-run phase.
type CLIContext struct {
	Cfg    *config.Resolved
	Logger *slog.Logger
	Client *api.Client

	Flags struct {
		JSON    bool
		Verbose bool
		Quiet   bool
	}
}

type ctxKey int

const cliContextKey ctxKey = iota

// mustCLIContext extracts the CLIContext installed by the root pre-run.
// Panics on a wiring bug — every RunE runs after PersistentPreRunE.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey).(*CLIContext)
	if !ok {
		panic("CLI context not initialized — PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "easyemail",
		Short: "easyEmail dashboard companion CLI",
		Long: `Command-line client for the easyEmail backend.

Connects mail accounts through the provider authorization window and
submits and tracks background jobs: mail fetch, read-state sync, and
classification.`,
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		// PersistentPreRunE resolves configuration and builds the shared
		// backend client before every command.
		PersistentPreRunE: setupCLIContext,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "backend API base URL")
	cmd.PersistentFlags().StringVar(&flagBrowser, "browser", "", "browser used for the authorization window")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newConnectCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newSyncStatusCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newAccountsCmd())

	return cmd
}

// setupCLIContext resolves the override chain, builds the logger and
// backend client, and installs the CLIContext plus signal handling on the
// command context.
func setupCLIContext(cmd *cobra.Command, _ []string) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		ServerURL:  flagServerURL,
		Browser:    flagBrowser,
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := buildLogger(resolved)

	httpClient := &http.Client{Timeout: resolved.RequestTimeout}

	cc := &CLIContext{
		Cfg:    resolved,
		Logger: logger,
		Client: api.NewClient(resolved.BaseURL, httpClient, logger),
	}
	cc.Flags.JSON = flagJSON
	cc.Flags.Verbose = flagVerbose
	cc.Flags.Quiet = flagQuiet

	ctx := context.WithValue(cmd.Context(), cliContextKey, cc)
	cmd.SetContext(interruptContext(ctx, logger))

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. Format "auto" picks
// text on a terminal and JSON otherwise.
func buildLogger(cfg *config.Resolved) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	format := cfg.LogFormat
	if format == "auto" {
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "text"
		} else {
			format = "json"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
