package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

const unitTemplate = `[Unit]
Description=hypnos idle management daemon
PartOf=graphical-session.target
After=graphical-session.target

[Service]
Type=simple
ExecStart={{.ExecutablePath}} run
Restart=on-failure
RestartSec=5

[Install]
WantedBy=graphical-session.target
`

const (
	systemdService      = "org.freedesktop.systemd1"
	systemdPath         = dbus.ObjectPath("/org/freedesktop/systemd1")
	systemdManagerIface = "org.freedesktop.systemd1.Manager"
	systemdUnitIface    = "org.freedesktop.systemd1.Unit"

	// reloadTimeout bounds manager calls made without a caller context.
	reloadTimeout = 10 * time.Second
)

type unitConfig struct {
	ExecutablePath string
}

type unitFileChange struct {
	Type        string
	Filename    string
	Destination string
}

// unitBus is the slice of the systemd manager API the unit manager uses.
type unitBus interface {
	Call(ctx context.Context, method string, args []interface{}, out ...interface{}) error
	ActiveState(ctx context.Context, unit dbus.ObjectPath) (string, error)
	Close() error
}

// dbusUnitBus talks to the user's systemd instance on the session bus.
type dbusUnitBus struct {
	conn *dbus.Conn
}

func connectUserSystemd() (unitBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &dbusUnitBus{conn: conn}, nil
}

func (b *dbusUnitBus) Call(ctx context.Context, method string, args []interface{}, out ...interface{}) error {
	call := b.conn.Object(systemdService, systemdPath).
		CallWithContext(ctx, systemdManagerIface+"."+method, 0, args...)
	if call.Err != nil {
		return fmt.Errorf("%s: %w", method, call.Err)
	}
	if len(out) == 0 {
		return nil
	}
	if err := call.Store(out...); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (b *dbusUnitBus) ActiveState(ctx context.Context, unit dbus.ObjectPath) (string, error) {
	v, err := b.conn.Object(systemdService, unit).GetProperty(systemdUnitIface + ".ActiveState")
	if err != nil {
		return "", err
	}
	state, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected ActiveState type %s", v.Signature())
	}
	return state, nil
}

func (b *dbusUnitBus) Close() error {
	return b.conn.Close()
}

// SystemdUnitManager implements domain.UnitManager for a systemd user unit.
type SystemdUnitManager struct {
	unitDir  string
	unitPath string
	unitName string
	connect  func() (unitBus, error)
}

// NewSystemdUnitManager creates a manager for the unit at paths.UnitPath.
func NewSystemdUnitManager(paths *Paths) *SystemdUnitManager {
	return &SystemdUnitManager{
		unitDir:  paths.UnitDir,
		unitPath: paths.UnitPath,
		unitName: filepath.Base(paths.UnitPath),
		connect:  connectUserSystemd,
	}
}

// generateUnitContent renders the unit file for execPath.
func (m *SystemdUnitManager) generateUnitContent(execPath string) ([]byte, error) {
	tmpl, err := template.New("unit").Parse(unitTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, unitConfig{ExecutablePath: execPath}); err != nil {
		return nil, fmt.Errorf("failed to execute unit template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the unit file and reloads the manager.
func (m *SystemdUnitManager) Install(execPath string) error {
	if err := os.MkdirAll(m.unitDir, 0755); err != nil {
		return err
	}
	if err := m.writeUnit(execPath); err != nil {
		return err
	}
	return m.reload()
}

// Uninstall stops, disables and removes the unit.
func (m *SystemdUnitManager) Uninstall(ctx context.Context) error {
	// Ignore errors: the unit may be neither running nor enabled
	_ = m.Stop(ctx)
	_ = m.Disable(ctx)

	if err := os.Remove(m.unitPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return m.reload()
}

// IsInstalled checks if the unit file exists.
func (m *SystemdUnitManager) IsInstalled() bool {
	_, err := os.Stat(m.unitPath)
	return err == nil
}

// NeedsUpdate checks if the unit file exists but differs from the expected content.
func (m *SystemdUnitManager) NeedsUpdate(execPath string) bool {
	if !m.IsInstalled() {
		return false // Doesn't exist, needs install not update
	}

	current, err := os.ReadFile(m.unitPath)
	if err != nil {
		return true
	}
	expected, err := m.generateUnitContent(execPath)
	if err != nil {
		return true
	}
	return !bytes.Equal(current, expected)
}

// Update rewrites the unit file and reloads the manager.
func (m *SystemdUnitManager) Update(execPath string) error {
	if err := m.writeUnit(execPath); err != nil {
		return err
	}
	return m.reload()
}

// UnitPath returns the unit file path.
func (m *SystemdUnitManager) UnitPath() string {
	return m.unitPath
}

// Enable enables the unit for the graphical session.
func (m *SystemdUnitManager) Enable(ctx context.Context) error {
	return m.withBus(func(bus unitBus) error {
		var carriesInstallInfo bool
		var changes []unitFileChange
		args := []interface{}{[]string{m.unitName}, false, true}
		if err := bus.Call(ctx, "EnableUnitFiles", args, &carriesInstallInfo, &changes); err != nil {
			return err
		}
		return bus.Call(ctx, "Reload", nil)
	})
}

// Disable disables the unit.
func (m *SystemdUnitManager) Disable(ctx context.Context) error {
	return m.withBus(func(bus unitBus) error {
		var changes []unitFileChange
		args := []interface{}{[]string{m.unitName}, false}
		if err := bus.Call(ctx, "DisableUnitFiles", args, &changes); err != nil {
			return err
		}
		return bus.Call(ctx, "Reload", nil)
	})
}

// IsEnabled reports whether the unit file state is "enabled".
func (m *SystemdUnitManager) IsEnabled(ctx context.Context) (bool, error) {
	var state string
	err := m.withBus(func(bus unitBus) error {
		return bus.Call(ctx, "GetUnitFileState", []interface{}{m.unitName}, &state)
	})
	return state == "enabled", err
}

// Start starts the unit.
func (m *SystemdUnitManager) Start(ctx context.Context) error {
	return m.job(ctx, "StartUnit")
}

// Stop stops the unit.
func (m *SystemdUnitManager) Stop(ctx context.Context) error {
	return m.job(ctx, "StopUnit")
}

// Restart restarts the unit.
func (m *SystemdUnitManager) Restart(ctx context.Context) error {
	return m.job(ctx, "RestartUnit")
}

// IsActive reports whether the unit's ActiveState is "active".
func (m *SystemdUnitManager) IsActive(ctx context.Context) (bool, error) {
	var state string
	err := m.withBus(func(bus unitBus) error {
		var unit dbus.ObjectPath
		if err := bus.Call(ctx, "LoadUnit", []interface{}{m.unitName}, &unit); err != nil {
			return err
		}
		var err error
		state, err = bus.ActiveState(ctx, unit)
		return err
	})
	return state == "active", err
}

func (m *SystemdUnitManager) job(ctx context.Context, method string) error {
	return m.withBus(func(bus unitBus) error {
		var job dbus.ObjectPath
		return bus.Call(ctx, method, []interface{}{m.unitName, "replace"}, &job)
	})
}

func (m *SystemdUnitManager) reload() error {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	return m.withBus(func(bus unitBus) error {
		return bus.Call(ctx, "Reload", nil)
	})
}

func (m *SystemdUnitManager) withBus(fn func(unitBus) error) error {
	bus, err := m.connect()
	if err != nil {
		return err
	}
	defer bus.Close()
	return fn(bus)
}

func (m *SystemdUnitManager) writeUnit(execPath string) error {
	content, err := m.generateUnitContent(execPath)
	if err != nil {
		return fmt.Errorf("failed to generate unit content: %w", err)
	}
	return os.WriteFile(m.unitPath, content, 0644)
}

// Ensure SystemdUnitManager implements domain.UnitManager.
var _ domain.UnitManager = (*SystemdUnitManager)(nil)
