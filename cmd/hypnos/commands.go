package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/hypnos/internal/daemon"
	"github.com/eliteGoblin/hypnos/internal/domain"
	"github.com/eliteGoblin/hypnos/internal/infra"
	"github.com/eliteGoblin/hypnos/internal/rules"
)

// busTimeout bounds every systemd call made by the CLI.
const busTimeout = 10 * time.Second

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a rule file",
	Long: `Parses the rule file (the configured one by default) and prints the
rules the daemon would accept and the ones it would skip.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the active rules",
	Long:  `Shows the rules in the file the running daemon watches, or the configured file if no daemon is running.`,
	RunE:  runRules,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  `Shows whether the daemon is running, since when, and the state of the systemd user unit.`,
	RunE:  runStatus,
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the rule file",
	RunE:  signalCommand(daemon.SignalReload, "reload requested"),
}

var inhibitCmd = &cobra.Command{
	Use:   "inhibit",
	Short: "Hold off idle for the configured inhibit duration",
	RunE:  signalCommand(daemon.SignalInhibit, "inhibit requested"),
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Toggle pause (idle actions are skipped while paused)",
	RunE:  signalCommand(daemon.SignalPause, "pause toggled"),
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the systemd user unit",
	RunE:  runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop, disable and remove the systemd user unit",
	RunE: unitCommand(func(ctx context.Context, m domain.UnitManager) error {
		if err := m.Uninstall(ctx); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", m.UnitPath())
		return nil
	}),
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start hypnos with the graphical session",
	RunE: unitCommand(func(ctx context.Context, m domain.UnitManager) error {
		if err := ensureInstalled(m); err != nil {
			return err
		}
		if err := m.Enable(ctx); err != nil {
			return err
		}
		fmt.Println("Enabled")
		return nil
	}),
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop starting hypnos with the graphical session",
	RunE: unitCommand(func(ctx context.Context, m domain.UnitManager) error {
		if err := m.Disable(ctx); err != nil {
			return err
		}
		fmt.Println("Disabled")
		return nil
	}),
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the systemd user unit",
	RunE: unitCommand(func(ctx context.Context, m domain.UnitManager) error {
		if err := ensureInstalled(m); err != nil {
			return err
		}
		if err := m.Start(ctx); err != nil {
			return err
		}
		fmt.Println("Started")
		return nil
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the systemd user unit",
	RunE: unitCommand(func(ctx context.Context, m domain.UnitManager) error {
		if err := m.Stop(ctx); err != nil {
			return err
		}
		fmt.Println("Stopped")
		return nil
	}),
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the systemd user unit",
	RunE: unitCommand(func(ctx context.Context, m domain.UnitManager) error {
		if err := ensureInstalled(m); err != nil {
			return err
		}
		if err := m.Restart(ctx); err != nil {
			return err
		}
		fmt.Println("Restarted")
		return nil
	}),
}

func runCheck(cmd *cobra.Command, args []string) error {
	settings, _, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	path := settings.RulesFile
	if len(args) == 1 {
		path = args[0]
	}
	return printRules(path)
}

func runRules(cmd *cobra.Command, args []string) error {
	settings, paths, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	path := settings.RulesFile
	instances := infra.NewFileInstanceRegistry(paths.InstanceFile, infra.NewProcessManager())
	if info, err := instances.Get(); err == nil && info.RulesFile != "" {
		path = info.RulesFile
	}
	return printRules(path)
}

// printRules parses path and prints accepted and skipped rules. A file that
// fails to parse is an error.
func printRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rule file: %w", err)
	}
	result, err := rules.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Printf("\n=== Rules (%s) ===\n", path)
	if len(result.Rules) == 0 {
		fmt.Println("No rules.")
	}
	for i, r := range result.Rules {
		fmt.Printf("\n[%d] after %s idle\n", i, time.Duration(r.TimeoutSeconds)*time.Second)
		fmt.Printf("  Action:  %s\n", r.Action)
		if r.HasRestore() {
			fmt.Printf("  Restore: %s\n", r.RestoreAction)
		}
		if r.OnBatteryOnly {
			fmt.Println("  Only on battery")
		}
	}

	if len(result.Skipped) > 0 {
		fmt.Printf("\nSkipped %d invalid rules:\n", len(result.Skipped))
		for _, s := range result.Skipped {
			fmt.Printf("  - entry %d: %v\n", s.Index, s.Err)
		}
	}
	fmt.Println("\n====================")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, paths, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	fmt.Println("\n=== hypnos Status ===")

	instances := infra.NewFileInstanceRegistry(paths.InstanceFile, infra.NewProcessManager())
	info, err := instances.Get()
	switch {
	case err == nil:
		fmt.Println("Status: RUNNING")
		fmt.Printf("PID: %d\n", info.PID)
		fmt.Printf("Uptime: %s\n", time.Since(info.StartedAt).Round(time.Second))
		if info.AppVersion != "" {
			fmt.Printf("Version: %s\n", info.AppVersion)
		}
		fmt.Printf("Rule file: %s\n", info.RulesFile)
	case notRunning(err):
		fmt.Println("Status: NOT RUNNING")
	default:
		fmt.Printf("Status: UNKNOWN (%v)\n", err)
	}

	units := infra.NewSystemdUnitManager(paths)
	fmt.Printf("\nUnit file: %s\n", units.UnitPath())
	if !units.IsInstalled() {
		fmt.Println("Unit: not installed (run 'hypnos install')")
		fmt.Println("=====================")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), busTimeout)
	defer cancel()

	if enabled, err := units.IsEnabled(ctx); err != nil {
		fmt.Printf("Auto-start: unknown (%v)\n", err)
	} else if enabled {
		fmt.Println("Auto-start: enabled")
	} else {
		fmt.Println("Auto-start: disabled")
	}
	if active, err := units.IsActive(ctx); err != nil {
		fmt.Printf("Unit state: unknown (%v)\n", err)
	} else if active {
		fmt.Println("Unit state: active")
	} else {
		fmt.Println("Unit state: inactive")
	}
	if exe, err := os.Executable(); err == nil && units.NeedsUpdate(exe) {
		fmt.Println("Unit file is out of date (run 'hypnos install')")
	}

	fmt.Println("=====================")
	return nil
}

// signalCommand sends sig to the running daemon.
func signalCommand(sig os.Signal, done string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, paths, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		pm := infra.NewProcessManager()
		info, err := infra.NewFileInstanceRegistry(paths.InstanceFile, pm).Get()
		if err != nil {
			if notRunning(err) {
				return fmt.Errorf("hypnos is not running")
			}
			return err
		}

		if err := pm.Signal(info.PID, sig); err != nil {
			return fmt.Errorf("failed to signal pid %d: %w", info.PID, err)
		}
		fmt.Printf("%s (pid %d)\n", done, info.PID)
		return nil
	}
}

func runInstall(cmd *cobra.Command, args []string) error {
	_, paths, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	units := infra.NewSystemdUnitManager(paths)
	switch {
	case !units.IsInstalled():
		if err := units.Install(exe); err != nil {
			return err
		}
		fmt.Printf("Installed %s\n", units.UnitPath())
	case units.NeedsUpdate(exe):
		if err := units.Update(exe); err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", units.UnitPath())
	default:
		fmt.Printf("%s is up to date\n", units.UnitPath())
	}
	return nil
}

// unitCommand runs fn against the systemd user unit with a bounded context.
func unitCommand(fn func(context.Context, domain.UnitManager) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		_, paths, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), busTimeout)
		defer cancel()

		return fn(ctx, infra.NewSystemdUnitManager(paths))
	}
}

// ensureInstalled installs or refreshes the unit file for the current binary.
func ensureInstalled(m domain.UnitManager) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if !m.IsInstalled() {
		if err := m.Install(exe); err != nil {
			return err
		}
		fmt.Printf("Installed %s\n", m.UnitPath())
		return nil
	}
	if m.NeedsUpdate(exe) {
		return m.Update(exe)
	}
	return nil
}
