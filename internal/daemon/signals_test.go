package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
	"github.com/eliteGoblin/hypnos/internal/usecase"
)

func TestEventForSignal(t *testing.T) {
	assert.Equal(t, domain.ReloadConfig{}, EventForSignal(syscall.SIGHUP))
	assert.Equal(t, domain.Inhibit{}, EventForSignal(syscall.SIGUSR1))
	assert.Equal(t, domain.TogglePause{}, EventForSignal(syscall.SIGUSR2))
	assert.Nil(t, EventForSignal(syscall.SIGTERM))
}

func TestSignalSource_DeliversEvents(t *testing.T) {
	// Keep SIGUSR2 from terminating the test binary before Run registers
	guard := make(chan os.Signal, 8)
	signal.Notify(guard, syscall.SIGUSR2)
	defer signal.Stop(guard)

	queue := usecase.NewEventQueue(4, time.Second)
	src := NewSignalSource(zap.NewNop())
	assert.Equal(t, "signals", src.Name())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, queue) }()

	// signal.Notify is registered asynchronously; retry until delivered
	require.Eventually(t, func() bool {
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGUSR2)
		return queue.Len() > 0
	}, waitFor, 20*time.Millisecond)

	assert.Equal(t, domain.TogglePause{}, <-queue.Events())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
