package infra

import (
	"os"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	signals     map[int][]os.Signal
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		signals:     make(map[int][]os.Signal),
	}
}

func (m *mockProcessManager) FindByName(name string) ([]int, error) {
	return nil, nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) Signal(pid int, sig os.Signal) error {
	m.signals[pid] = append(m.signals[pid], sig)
	return nil
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}
