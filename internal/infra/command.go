package infra

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/domain"
)

// ShellRunner implements domain.CommandRunner. Commands are split into words
// the way a POSIX shell would, without invoking a shell, and started in their
// own session so they outlive the daemon's terminal. Exit status is logged
// asynchronously; spawned processes are not tracked for cancellation.
type ShellRunner struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewShellRunner creates a command runner.
func NewShellRunner(logger *zap.Logger) *ShellRunner {
	return &ShellRunner{logger: logger}
}

// SplitCommand splits command into program and arguments.
func SplitCommand(command string) ([]string, error) {
	words, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", command, err)
	}
	if len(words) == 0 {
		return nil, domain.ErrEmptyCommand
	}
	return words, nil
}

// Run starts command and returns without waiting for it to exit.
func (r *ShellRunner) Run(ctx context.Context, command string) error {
	words, err := SplitCommand(command)
	if err != nil {
		return err
	}

	// Not bound to ctx: an action started before shutdown runs to completion.
	cmd := exec.Command(words[0], words[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn %q: %w", words[0], err)
	}

	r.logger.Info("command started",
		zap.String("command", command),
		zap.Int("pid", cmd.Process.Pid))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := cmd.Wait()
		fields := []zap.Field{
			zap.String("command", command),
			zap.Int("exit_code", cmd.ProcessState.ExitCode()),
			zap.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			r.logger.Warn("command failed", append(fields, zap.Error(err))...)
			return
		}
		r.logger.Debug("command exited", fields...)
	}()

	return nil
}

// Wait blocks until every started command has exited.
func (r *ShellRunner) Wait() {
	r.wg.Wait()
}

// Ensure ShellRunner implements domain.CommandRunner.
var _ domain.CommandRunner = (*ShellRunner)(nil)
