package fixtures

import (
	"context"
	"sync"

	"github.com/eliteGoblin/hypnos/internal/domain"
	"github.com/eliteGoblin/hypnos/internal/rules"
)

// RecordingRunner is a domain.CommandRunner that records commands instead of
// spawning them.
type RecordingRunner struct {
	mu       sync.Mutex
	commands []string
	Err      error
}

// Run implements domain.CommandRunner.
func (r *RecordingRunner) Run(ctx context.Context, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	return r.Err
}

// Commands returns the recorded commands in order.
func (r *RecordingRunner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// MemoryRules is a domain.RuleSource serving rule-file content from memory.
type MemoryRules struct {
	mu      sync.Mutex
	content string
	loads   int
}

// NewMemoryRules creates a source with content.
func NewMemoryRules(content string) *MemoryRules {
	return &MemoryRules{content: content}
}

// Set replaces the content served by the next Load.
func (m *MemoryRules) Set(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
}

// Loads returns the number of Load calls.
func (m *MemoryRules) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Load implements domain.RuleSource.
func (m *MemoryRules) Load() ([]domain.Rule, string, error) {
	m.mu.Lock()
	m.loads++
	data := []byte(m.content)
	m.mu.Unlock()

	result, err := rules.Parse(data)
	if err != nil {
		return nil, "", err
	}
	return result.Rules, rules.Digest(data), nil
}

// Path implements domain.RuleSource.
func (m *MemoryRules) Path() string { return "memory" }

// MemoryInstances is an in-memory domain.InstanceRegistry.
type MemoryInstances struct {
	mu   sync.Mutex
	info *domain.DaemonInfo
}

// Register implements domain.InstanceRegistry.
func (m *MemoryInstances) Register(info domain.DaemonInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.info != nil {
		return domain.ErrAlreadyRunning
	}
	m.info = &info
	return nil
}

// Get implements domain.InstanceRegistry.
func (m *MemoryInstances) Get() (*domain.DaemonInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.info == nil {
		return nil, domain.ErrNotRunning
	}
	info := *m.info
	return &info, nil
}

// Clear implements domain.InstanceRegistry.
func (m *MemoryInstances) Clear(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.info != nil && m.info.PID == pid {
		m.info = nil
	}
	return nil
}

// Path implements domain.InstanceRegistry.
func (m *MemoryInstances) Path() string { return "memory" }

var (
	_ domain.CommandRunner    = (*RecordingRunner)(nil)
	_ domain.RuleSource       = (*MemoryRules)(nil)
	_ domain.InstanceRegistry = (*MemoryInstances)(nil)
)
