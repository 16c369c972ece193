// Package command provides a scheduler.Runner that executes a shell
// command, streaming its output into the task's capture sink.
package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/aristath/buildrunner/internal/ctxlog"
	"github.com/aristath/buildrunner/internal/scheduler"
)

// Command runs one shell script as a task. The zero value of Script is a
// no-op task that succeeds immediately.
type Command struct {
	Script string // Passed to "sh -c"; empty means nothing to do
	Dir    string // Working directory; empty means inherit
	Env    []string

	// Opaque run flags, forwarded to the script's environment and never
	// interpreted here.
	IsIncrementalBuildAllowed bool
	ChangedProjectsOnly       bool
}

// Run executes the script and maps its exit to a task status: exit 0
// with a clean error stream is a success, exit 0 with error-stream
// content is a success with warnings, anything else is a failure.
func (c *Command) Run(ctx context.Context, out scheduler.OutputSink) scheduler.TaskStatus {
	logger := ctxlog.FromContext(ctx)

	if c.Script == "" {
		return scheduler.StatusSuccess
	}

	cmd := newCommand(ctx, "sh", "-c", c.Script)
	cmd.Dir = c.Dir
	cmd.Env = c.environment()

	stderrBytes, err := stream(cmd, out)
	if err != nil {
		logger.Debug("command failed", "script", c.Script, "error", err)
		fmt.Fprintf(out.Stderr(), "%v\n", err)
		return scheduler.StatusFailure
	}

	if stderrBytes > 0 {
		return scheduler.StatusSuccessWithWarning
	}
	return scheduler.StatusSuccess
}

// environment builds the child environment, surfacing the opaque run
// flags for scripts that care about them.
func (c *Command) environment() []string {
	base := c.Env
	if base == nil {
		base = os.Environ()
	}

	// Copy so appending never writes into the caller's backing array.
	env := make([]string, len(base), len(base)+2)
	copy(env, base)

	if c.IsIncrementalBuildAllowed {
		env = append(env, "BUILD_INCREMENTAL=1")
	}
	if c.ChangedProjectsOnly {
		env = append(env, "BUILD_CHANGED_ONLY=1")
	}
	return env
}

// newCommand creates an exec.Cmd with process group isolation so the
// whole subprocess tree dies together on cancellation.
func newCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

// stream starts the command and drains both pipes concurrently into the
// sink. Draining before cmd.Wait prevents deadlocks when the subprocess
// output exceeds the pipe buffer capacity. Returns how many bytes the
// subprocess wrote to stderr.
func stream(cmd *exec.Cmd, out scheduler.OutputSink) (int64, error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start command: %w", err)
	}

	var wg sync.WaitGroup
	var stderrBytes int64
	wg.Add(2)

	go func() {
		defer wg.Done()
		io.Copy(out.Stdout(), stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		stderrBytes, _ = io.Copy(out.Stderr(), stderrPipe)
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return stderrBytes, fmt.Errorf("command failed: %w", err)
	}
	return stderrBytes, nil
}
