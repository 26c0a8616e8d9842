package daemon

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
	"github.com/eliteGoblin/hypnos/internal/usecase"
	"github.com/eliteGoblin/hypnos/test/fixtures"
)

// mockLoop implements LoopControl for testing
type mockLoop struct {
	mu      sync.Mutex
	applied [][]domain.Rule
	flushes int
	err     error
}

func (m *mockLoop) ApplyRules(ctx context.Context, rules []domain.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, rules)
	return nil
}

func (m *mockLoop) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return m.err
}

// mockInhibitRequester implements InhibitRequester for testing
type mockInhibitRequester struct {
	requests int
}

func (m *mockInhibitRequester) Request(ctx context.Context) bool {
	m.requests++
	return true
}

const twoRules = `[
  {"timeout": 1, "action": "echoA"},
  {"timeout": 2, "action": "echoB", "restoreAction": "echoB-restore"}
]`

type routerHarness struct {
	router    *Router
	rules     *fixtures.MemoryRules
	loop      *mockLoop
	runner    *fixtures.RecordingRunner
	state     *usecase.SharedState
	inhibitor *mockInhibitRequester
}

func newRouterHarness(content string) *routerHarness {
	h := &routerHarness{
		rules:     fixtures.NewMemoryRules(content),
		loop:      &mockLoop{},
		runner:    &fixtures.RecordingRunner{},
		state:     usecase.NewSharedState(),
		inhibitor: &mockInhibitRequester{},
	}
	h.router = NewRouter(nil, h.rules, h.loop, h.runner, h.state, h.inhibitor, zap.NewNop())
	return h
}

func TestRouter_ReloadAppliesRules(t *testing.T) {
	h := newRouterHarness(twoRules)

	require.NoError(t, h.router.handle(context.Background(), domain.ReloadConfig{}))

	require.Len(t, h.loop.applied, 1)
	assert.Equal(t, []domain.Rule{
		{TimeoutSeconds: 1, Action: "echoA"},
		{TimeoutSeconds: 2, Action: "echoB", RestoreAction: "echoB-restore"},
	}, h.loop.applied[0])
}

func TestRouter_ReloadUnchangedIsNoop(t *testing.T) {
	h := newRouterHarness(twoRules)
	ctx := context.Background()

	require.NoError(t, h.router.handle(ctx, domain.ReloadConfig{}))
	require.NoError(t, h.router.handle(ctx, domain.ReloadConfig{}))
	assert.Len(t, h.loop.applied, 1)

	h.rules.Set(`[{"timeout": 9, "action": "other"}]`)
	require.NoError(t, h.router.handle(ctx, domain.ReloadConfig{}))
	assert.Len(t, h.loop.applied, 2)
	assert.Equal(t, 3, h.rules.Loads())
}

func TestRouter_ReloadParseFailureKeepsRules(t *testing.T) {
	h := newRouterHarness(twoRules)
	ctx := context.Background()

	require.NoError(t, h.router.handle(ctx, domain.ReloadConfig{}))

	h.rules.Set(`[{"timeout": 1, "action": `)
	require.NoError(t, h.router.handle(ctx, domain.ReloadConfig{}))
	assert.Len(t, h.loop.applied, 1, "broken file must not be applied")

	// Restoring the previously applied content is still a no-op
	h.rules.Set(twoRules)
	require.NoError(t, h.router.handle(ctx, domain.ReloadConfig{}))
	assert.Len(t, h.loop.applied, 1)
}

func TestRouter_ReloadRetriesAfterApplyFailure(t *testing.T) {
	h := newRouterHarness(twoRules)
	ctx := context.Background()

	h.loop.err = assert.AnError
	require.NoError(t, h.router.handle(ctx, domain.ReloadConfig{}))

	h.loop.err = nil
	require.NoError(t, h.router.handle(ctx, domain.ReloadConfig{}))
	assert.Len(t, h.loop.applied, 1)
}

func TestRouter_ConnectionLostIsFatal(t *testing.T) {
	h := newRouterHarness(twoRules)
	h.loop.err = domain.ErrConnectionLost

	err := h.router.handle(context.Background(), domain.ReloadConfig{})
	assert.ErrorIs(t, err, domain.ErrConnectionLost)

	err = h.router.handle(context.Background(), domain.Flush{})
	assert.ErrorIs(t, err, domain.ErrConnectionLost)
}

func TestRouter_RunCommand(t *testing.T) {
	h := newRouterHarness(twoRules)
	ctx := context.Background()

	require.NoError(t, h.router.handle(ctx, domain.RunCommand{Command: "echoB"}))
	h.runner.Err = assert.AnError
	require.NoError(t, h.router.handle(ctx, domain.RunCommand{Command: "fails"}), "spawn failures are not fatal")

	assert.Equal(t, []string{"echoB", "fails"}, h.runner.Commands())
}

func TestRouter_PowerState(t *testing.T) {
	h := newRouterHarness(twoRules)
	ctx := context.Background()

	require.NoError(t, h.router.handle(ctx, domain.PowerStateChanged{OnBattery: true}))
	assert.Equal(t, domain.PowerBattery, h.state.PowerState())

	require.NoError(t, h.router.handle(ctx, domain.PowerStateChanged{OnBattery: false}))
	assert.Equal(t, domain.PowerAC, h.state.PowerState())
}

func TestRouter_TogglePause(t *testing.T) {
	h := newRouterHarness(twoRules)
	ctx := context.Background()

	require.NoError(t, h.router.handle(ctx, domain.TogglePause{}))
	assert.True(t, h.state.Paused())
	require.NoError(t, h.router.handle(ctx, domain.TogglePause{}))
	assert.False(t, h.state.Paused())
}

func TestRouter_InhibitFlushSession(t *testing.T) {
	h := newRouterHarness(twoRules)
	ctx := context.Background()

	require.NoError(t, h.router.handle(ctx, domain.Inhibit{}))
	require.NoError(t, h.router.handle(ctx, domain.Flush{}))
	require.NoError(t, h.router.handle(ctx, domain.SessionEvent{Name: domain.SessionLock}))

	assert.Equal(t, 1, h.inhibitor.requests)
	assert.Equal(t, 1, h.loop.flushes)
	assert.Empty(t, h.runner.Commands())
}

func TestRouter_RunProcessesInOrder(t *testing.T) {
	events := make(chan domain.Event, 8)
	runner := &fixtures.RecordingRunner{}
	r := NewRouter(events, fixtures.NewMemoryRules("[]"), &mockLoop{}, runner,
		usecase.NewSharedState(), &mockInhibitRequester{}, zap.NewNop())

	for _, cmd := range []string{"one", "two", "three"} {
		events <- domain.RunCommand{Command: cmd}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return len(runner.Commands()) == 3 }, waitFor, tick)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []string{"one", "two", "three"}, runner.Commands())
}
