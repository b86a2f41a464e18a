//go:build unix

// Package gitutil runs git subprocesses under a context timeout, in their
// own process group, with OpenTelemetry tracing. Shared between
// internal/claim (the ledger worktree protocol) and internal/syncer (the
// data.jsonl merge sync), both of which need the same cancellation and
// observability behavior around `git`. Ported from the teacher's
// hooks_unix.go runHook, extended with a SIGTERM-then-SIGKILL grace
// window (hooks_unix.go kills immediately with SIGKILL; spec.md §5's
// cancellation model asks git specifically to be given a chance to unwind
// cleanly — e.g. release its index.lock — before being forced).
package gitutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eluent/eluent/internal/types"
)

// GraceTimeout is how long a git process is given to exit cleanly after
// SIGTERM before Run escalates to SIGKILL.
const GraceTimeout = 2 * time.Second

// Run executes `git <args...>` in dir under timeout, in its own process
// group so descendants die with it, wrapped in an otel span that records
// failure.
func Run(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracer := otel.Tracer("github.com/eluent/eluent/gitutil")
	ctx, span := tracer.Start(ctx, "git."+firstOr(args, "git"),
		trace.WithAttributes(
			attribute.StringSlice("git.args", args),
			attribute.String("git.dir", dir),
		),
	)
	var retErr error
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	// #nosec G204 -- args are constructed internally from fixed verbs, never passed through from user input
	// Plain exec.Command: expiry of ctx is handled by the select below, so
	// the process group gets SIGTERM before SIGKILL.
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		retErr = fmt.Errorf("start git %v: %w", args, err)
		return "", retErr
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		killProcessGroup(cmd, syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(GraceTimeout):
			killProcessGroup(cmd, syscall.SIGKILL)
			<-done
		}
		retErr = types.ErrGitTimeout(firstOr(args, "git"))
		return "", retErr
	case err := <-done:
		if err != nil {
			retErr = fmt.Errorf("%w (stderr: %s)", types.ErrGit(firstOr(args, "git"), err.Error()), stderr.String())
			return "", retErr
		}
		return stdout.String(), nil
	}
}

func killProcessGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		_ = err // best-effort: the process may have already exited
	}
}

func firstOr(args []string, fallback string) string {
	if len(args) == 0 {
		return fallback
	}
	return args[0]
}
