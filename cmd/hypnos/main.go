// Package main is the CLI entry point for hypnos.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/hypnos/internal/config"
	"github.com/eliteGoblin/hypnos/internal/daemon"
	"github.com/eliteGoblin/hypnos/internal/domain"
	"github.com/eliteGoblin/hypnos/internal/infra"
	"github.com/eliteGoblin/hypnos/internal/infra/wayland"
	"github.com/eliteGoblin/hypnos/internal/rules"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hypnos",
	Short: "Idle manager for Wayland compositors",
	Long: `hypnos runs shell commands after configurable periods of inactivity
and optionally restores state when activity resumes. Rules live in
~/.config/hypnos/config.json and are reloaded when the file changes.

The daemon is controlled by signals: 'hypnos reload', 'hypnos inhibit'
and 'hypnos pause' find the running instance and signal it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the idle daemon in the foreground",
	Long: `Connects to the compositor, subscribes an idle notification per rule
and runs actions as the seat goes idle and resumes. This is what the
systemd user unit executes.`,
	RunE: runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	settingsFile string
	jsonOutput   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "config", "", "Settings file (default $XDG_CONFIG_HOME/hypnos/settings.toml)")
	rootCmd.PersistentFlags().String("rules-file", "", "Rule file (default $XDG_CONFIG_HOME/hypnos/config.json)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console, json")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")

	runCmd.Flags().Duration("inhibit-duration", 0, "How long 'hypnos inhibit' holds off idle")
	runCmd.Flags().Int("queue-capacity", 0, "Router event queue capacity")
	runCmd.Flags().Duration("enqueue-timeout", 0, "How long a producer waits on a full queue before the daemon gives up")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(inhibitCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadSettings resolves paths and settings for cmd.
func loadSettings(cmd *cobra.Command) (config.Settings, *infra.Paths, error) {
	paths, err := infra.DetectPaths()
	if err != nil {
		return config.Settings{}, nil, err
	}

	file := settingsFile
	if file == "" {
		file = paths.SettingsFile
	}

	loader := config.NewLoader(file, config.DefaultSettings(paths.RulesFile))
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return config.Settings{}, nil, err
	}
	settings, err := loader.Load()
	if err != nil {
		return config.Settings{}, nil, err
	}
	return settings, paths, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	settings, paths, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logger, err := createLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pm := infra.NewProcessManager()
	instances := infra.NewFileInstanceRegistry(paths.InstanceFile, pm)
	if info, err := instances.Get(); err == nil {
		return fmt.Errorf("%w: pid %d", domain.ErrAlreadyRunning, info.PID)
	}

	created, err := rules.EnsureFile(settings.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to create rule file: %w", err)
	}
	if created {
		logger.Info("wrote default rule file", zap.String("path", settings.RulesFile))
	}

	protocol, err := wayland.Connect(logger.Named("wayland"))
	if err != nil {
		return err
	}

	sources := []domain.EventSource{
		daemon.NewSignalSource(logger.Named("signals")),
		infra.NewPowerWatcher(logger.Named("upower")),
		infra.NewSessionWatcher(logger.Named("logind")),
		infra.NewRuleFileWatcher(settings.RulesFile, logger.Named("rulefile")),
	}

	info := domain.DaemonInfo{
		PID:        os.Getpid(),
		StartedAt:  time.Now(),
		AppVersion: Version,
		RulesFile:  settings.RulesFile,
	}

	d := daemon.New(
		daemon.Config{
			InhibitDuration: settings.InhibitDuration,
			QueueCapacity:   settings.QueueCapacity,
			EnqueueTimeout:  settings.EnqueueTimeout,
		},
		protocol,
		rules.NewFileSource(settings.RulesFile, logger.Named("rules")),
		infra.NewShellRunner(logger.Named("command")),
		sources,
		instances,
		info,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited", zap.Error(err))
		return err
	}
	return nil
}

// createLogger builds the daemon logger from settings. Console output goes to
// stderr, which journald captures under the systemd unit.
func createLogger(s config.Settings) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = s.LogFormat
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if s.LogFormat == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if s.LogFile != "" {
		cfg.OutputPaths = []string{s.LogFile}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("hypnos %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// notRunning reports whether err means no daemon is recorded.
func notRunning(err error) bool {
	return errors.Is(err, domain.ErrNotRunning)
}
