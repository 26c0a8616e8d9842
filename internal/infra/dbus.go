package infra

import (
	"context"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

const (
	upowerService   = "org.freedesktop.UPower"
	upowerPath      = dbus.ObjectPath("/org/freedesktop/UPower")
	propertiesIface = "org.freedesktop.DBus.Properties"

	logindService      = "org.freedesktop.login1"
	logindPath         = dbus.ObjectPath("/org/freedesktop/login1")
	logindManagerIface = "org.freedesktop.login1.Manager"
	logindSessionIface = "org.freedesktop.login1.Session"
)

// PowerWatcher reports the UPower OnBattery property: once on start, then on
// every change.
type PowerWatcher struct {
	logger *zap.Logger
}

// NewPowerWatcher creates a UPower watcher.
func NewPowerWatcher(logger *zap.Logger) *PowerWatcher {
	return &PowerWatcher{logger: logger}
}

// Name implements domain.EventSource.
func (w *PowerWatcher) Name() string { return "upower" }

// Run implements domain.EventSource.
func (w *PowerWatcher) Run(ctx context.Context, sink domain.EventSink) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(upowerPath),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return fmt.Errorf("failed to subscribe to UPower changes: %w", err)
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	prop, err := conn.Object(upowerService, upowerPath).GetProperty(upowerService + ".OnBattery")
	if err != nil {
		return fmt.Errorf("failed to read UPower OnBattery: %w", err)
	}
	onBattery, ok := prop.Value().(bool)
	if !ok {
		return fmt.Errorf("unexpected OnBattery type %s", prop.Signature())
	}

	w.logger.Info("power watcher started", zap.Bool("on_battery", onBattery))
	if err := sink.Push(domain.PowerStateChanged{OnBattery: onBattery}); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok || sig == nil {
				return fmt.Errorf("system bus connection closed")
			}
			onBattery, ok := OnBatteryFromSignal(sig)
			if !ok {
				continue
			}
			if err := sink.Push(domain.PowerStateChanged{OnBattery: onBattery}); err != nil {
				return err
			}
		}
	}
}

// OnBatteryFromSignal extracts OnBattery from a UPower PropertiesChanged signal.
func OnBatteryFromSignal(sig *dbus.Signal) (bool, bool) {
	if sig.Path != upowerPath || sig.Name != propertiesIface+".PropertiesChanged" {
		return false, false
	}
	if len(sig.Body) < 2 {
		return false, false
	}
	if iface, ok := sig.Body[0].(string); !ok || iface != upowerService {
		return false, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false, false
	}
	v, ok := changed["OnBattery"]
	if !ok {
		return false, false
	}
	onBattery, ok := v.Value().(bool)
	return onBattery, ok
}

// SessionWatcher reports logind lock, unlock, sleep and wake transitions.
type SessionWatcher struct {
	logger *zap.Logger
}

// NewSessionWatcher creates a logind watcher.
func NewSessionWatcher(logger *zap.Logger) *SessionWatcher {
	return &SessionWatcher{logger: logger}
}

// Name implements domain.EventSource.
func (w *SessionWatcher) Name() string { return "logind" }

// Run implements domain.EventSource.
func (w *SessionWatcher) Run(ctx context.Context, sink domain.EventSink) error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindManagerIface),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		return fmt.Errorf("failed to subscribe to PrepareForSleep: %w", err)
	}

	sessionPath, err := w.resolveSession(conn)
	if err != nil {
		w.logger.Warn("no login session, lock events unavailable", zap.Error(err))
	} else if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(sessionPath),
		dbus.WithMatchInterface(logindSessionIface),
	); err != nil {
		w.logger.Warn("failed to subscribe to session signals", zap.Error(err))
	}

	signals := make(chan *dbus.Signal, 8)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	w.logger.Info("session watcher started", zap.String("session", string(sessionPath)))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok || sig == nil {
				return fmt.Errorf("system bus connection closed")
			}
			name, ok := SessionEventFromSignal(sig, sessionPath)
			if !ok {
				continue
			}
			if err := sink.Push(domain.SessionEvent{Name: name}); err != nil {
				return err
			}
		}
	}
}

// resolveSession finds the logind session of this user: XDG_SESSION_ID when
// set, otherwise logind's "auto" display session.
func (w *SessionWatcher) resolveSession(conn *dbus.Conn) (dbus.ObjectPath, error) {
	id := os.Getenv("XDG_SESSION_ID")
	if id == "" {
		id = "auto"
	}

	var path dbus.ObjectPath
	err := conn.Object(logindService, logindPath).
		Call(logindManagerIface+".GetSession", 0, id).
		Store(&path)
	if err != nil {
		return "", fmt.Errorf("GetSession(%s): %w", id, err)
	}
	return path, nil
}

// SessionEventFromSignal maps a logind signal to a session event name.
func SessionEventFromSignal(sig *dbus.Signal, sessionPath dbus.ObjectPath) (string, bool) {
	switch sig.Name {
	case logindManagerIface + ".PrepareForSleep":
		if len(sig.Body) < 1 {
			return "", false
		}
		entering, ok := sig.Body[0].(bool)
		if !ok {
			return "", false
		}
		if entering {
			return domain.SessionPrepareSleep, true
		}
		return domain.SessionWakeup, true
	case logindSessionIface + ".Lock":
		return domain.SessionLock, sessionPath != "" && sig.Path == sessionPath
	case logindSessionIface + ".Unlock":
		return domain.SessionUnlock, sessionPath != "" && sig.Path == sessionPath
	default:
		return "", false
	}
}

var (
	_ domain.EventSource = (*PowerWatcher)(nil)
	_ domain.EventSource = (*SessionWatcher)(nil)
)
