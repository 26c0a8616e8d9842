package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// FileInstanceRegistry implements domain.InstanceRegistry with a JSON file in
// the runtime directory. Updates are serialized with flock on a sibling lock
// file and written atomically.
type FileInstanceRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileInstanceRegistry creates a registry at path.
func NewFileInstanceRegistry(path string, pm domain.ProcessManager) *FileInstanceRegistry {
	return &FileInstanceRegistry{
		path:           path,
		processManager: pm,
	}
}

// Path returns the instance file path.
func (r *FileInstanceRegistry) Path() string {
	return r.path
}

// Register records info unless another live daemon is recorded. A missing or
// unreadable record is overwritten.
func (r *FileInstanceRegistry) Register(info domain.DaemonInfo) error {
	return r.withLock(func() error {
		existing, err := r.read()
		if err == nil && existing.PID != info.PID && r.processManager.IsRunning(existing.PID) {
			return fmt.Errorf("%w: pid %d", domain.ErrAlreadyRunning, existing.PID)
		}
		return r.atomicWrite(&info)
	})
}

// Get returns the recorded daemon if it is still alive.
func (r *FileInstanceRegistry) Get() (*domain.DaemonInfo, error) {
	info, err := r.read()
	if err != nil {
		return nil, err
	}
	if !r.processManager.IsRunning(info.PID) {
		return nil, fmt.Errorf("%w: stale record for pid %d", domain.ErrNotRunning, info.PID)
	}
	return info, nil
}

// Clear removes the record if it belongs to pid.
func (r *FileInstanceRegistry) Clear(pid int) error {
	return r.withLock(func() error {
		info, err := r.read()
		if errors.Is(err, domain.ErrNotRunning) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.PID != pid {
			return nil
		}
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
}

func (r *FileInstanceRegistry) read() (*domain.DaemonInfo, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotRunning
		}
		return nil, err
	}

	var info domain.DaemonInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("corrupt instance file %s: %w", r.path, err)
	}
	return &info, nil
}

func (r *FileInstanceRegistry) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	lockFile, err := os.OpenFile(r.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = unix.Flock(int(lockFile.Fd()), unix.LOCK_UN) }()

	return fn()
}

// atomicWrite writes the record to a temp file and renames it into place.
func (r *FileInstanceRegistry) atomicWrite(info *domain.DaemonInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileInstanceRegistry implements domain.InstanceRegistry.
var _ domain.InstanceRegistry = (*FileInstanceRegistry)(nil)
