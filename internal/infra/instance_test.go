package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

func newTestInstanceRegistry(t *testing.T) (*FileInstanceRegistry, *mockProcessManager) {
	t.Helper()
	pm := newMockProcessManager()
	path := filepath.Join(t.TempDir(), "hypnos", "instance.json")
	return NewFileInstanceRegistry(path, pm), pm
}

func TestFileInstanceRegistry_RegisterAndGet(t *testing.T) {
	r, pm := newTestInstanceRegistry(t)
	pm.SetRunning(12345, true)

	started := time.Now().Truncate(time.Second)
	require.NoError(t, r.Register(domain.DaemonInfo{
		PID:        12345,
		StartedAt:  started,
		AppVersion: "1.2.3",
		RulesFile:  "/home/u/.config/hypnos/config.json",
	}))

	info, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, 12345, info.PID)
	assert.True(t, started.Equal(info.StartedAt))
	assert.Equal(t, "1.2.3", info.AppVersion)
	assert.Equal(t, "/home/u/.config/hypnos/config.json", info.RulesFile)

	stat, err := os.Stat(r.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), stat.Mode().Perm())
}

func TestFileInstanceRegistry_GetMissing(t *testing.T) {
	r, _ := newTestInstanceRegistry(t)

	_, err := r.Get()
	assert.ErrorIs(t, err, domain.ErrNotRunning)
}

func TestFileInstanceRegistry_GetStale(t *testing.T) {
	r, _ := newTestInstanceRegistry(t)
	require.NoError(t, r.Register(domain.DaemonInfo{PID: 999}))

	_, err := r.Get()
	assert.ErrorIs(t, err, domain.ErrNotRunning)
}

func TestFileInstanceRegistry_RefusesLiveInstance(t *testing.T) {
	r, pm := newTestInstanceRegistry(t)
	pm.SetRunning(100, true)
	require.NoError(t, r.Register(domain.DaemonInfo{PID: 100}))

	err := r.Register(domain.DaemonInfo{PID: 200})
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)

	// A dead previous instance is replaced
	pm.SetRunning(100, false)
	require.NoError(t, r.Register(domain.DaemonInfo{PID: 200}))
}

func TestFileInstanceRegistry_ReRegisterSamePID(t *testing.T) {
	r, pm := newTestInstanceRegistry(t)
	pm.SetRunning(100, true)

	require.NoError(t, r.Register(domain.DaemonInfo{PID: 100}))
	assert.NoError(t, r.Register(domain.DaemonInfo{PID: 100, AppVersion: "2"}))
}

func TestFileInstanceRegistry_ClearOnlyOwnRecord(t *testing.T) {
	r, pm := newTestInstanceRegistry(t)
	pm.SetRunning(100, true)
	require.NoError(t, r.Register(domain.DaemonInfo{PID: 100}))

	require.NoError(t, r.Clear(200))
	_, err := r.Get()
	assert.NoError(t, err, "record of another pid must survive")

	require.NoError(t, r.Clear(100))
	_, err = os.Stat(r.Path())
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, r.Clear(100), "clearing twice is fine")
}

func TestFileInstanceRegistry_CorruptFile(t *testing.T) {
	r, _ := newTestInstanceRegistry(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(r.Path()), 0700))
	require.NoError(t, os.WriteFile(r.Path(), []byte("{not json"), 0600))

	_, err := r.Get()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotRunning)
}

func TestFileInstanceRegistry_RegisterOverCorruptFile(t *testing.T) {
	r, pm := newTestInstanceRegistry(t)
	pm.SetRunning(7, true)
	require.NoError(t, os.MkdirAll(filepath.Dir(r.Path()), 0700))
	require.NoError(t, os.WriteFile(r.Path(), []byte("{not json"), 0600))

	require.NoError(t, r.Register(domain.DaemonInfo{PID: 7}))
	info, err := r.Get()
	require.NoError(t, err)
	assert.Equal(t, 7, info.PID)
}
