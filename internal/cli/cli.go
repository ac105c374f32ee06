// Package cli implements the killfeed command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/killfeed/internal/config"
	"github.com/okian/killfeed/pkg/logger"
	"github.com/okian/killfeed/pkg/metrics"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// flags holds the values bound to command line flags.
type flags struct {
	configPath string
	logPath    string
	player     string
	logLevel   string
	force      bool
	yes        bool
	unsent     bool
}

// app carries state shared by subcommands once the root has run.
type app struct {
	flags flags
	cfg   *config.Config
	log   logger.Logger
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "killfeed",
		Short: "Report Star Citizen kills and deaths from the game log",
		Long: `killfeed follows the game client log, extracts kills and deaths of your
character and reports them to a collection API. Missed events can be
recovered with a rescan of the whole log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Config file (.yaml, .yml or .toml)")
	pf.StringVar(&a.flags.logPath, "log-path", "", "Game log to follow (overrides log_path)")
	pf.StringVar(&a.flags.player, "player", "", "Character name to track (overrides player)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newMonitorCmd(a), newRescanCmd(a), newPingCmd(a), newSimulateCmd(a))
	return cmd
}

// setup loads configuration and initializes logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.logPath != "" {
		cfg.LogPath = a.flags.logPath
	}
	if a.flags.player != "" {
		cfg.Player = a.flags.player
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}

	if err := logger.InitWithOptions(logger.Options{Writer: cmd.ErrOrStderr(), Format: cfg.LogFormat}); err != nil {
		return err
	}
	a.log = logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		a.log.Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	a.cfg = cfg
	return nil
}

// ready validates the configuration for commands that touch the log and API.
func (a *app) ready() error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if err := a.cfg.EnsureClientID(); err != nil {
		return fmt.Errorf("client id: %w", err)
	}
	metrics.Configure(
		metrics.WithNamespace(a.cfg.MetricsNamespace),
		metrics.WithSubsystem(a.cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(a.cfg.MetricsLatencyBucketsMS),
	)
	return nil
}

// confirm asks a yes/no question on in/out. Anything but y or yes is no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	var answer string
	if _, err := fmt.Fscanln(in, &answer); err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}
