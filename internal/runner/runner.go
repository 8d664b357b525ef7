package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/govod/internal/domain"
)

const (
	DefaultStderrLimit = 64 * 1024
	DefaultGracePeriod = 5 * time.Second
)

type Options struct {
	// Timeout bounds a single invocation. Zero means no limit beyond ctx.
	Timeout time.Duration
	// GracePeriod is how long a cancelled process has to exit after the
	// interrupt before it is killed.
	GracePeriod time.Duration
	StderrLimit int
	Logger      hclog.Logger
}

// ExecRunner runs commands as child processes. It holds no state across calls.
type ExecRunner struct {
	opts Options
}

func New(opts Options) *ExecRunner {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.StderrLimit <= 0 {
		opts.StderrLimit = DefaultStderrLimit
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	return &ExecRunner{opts: opts}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{ExitCode: -1}, &domain.CancelledError{Command: name, Cause: err}
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.opts.GracePeriod

	var stdout bytes.Buffer
	stderr := newTailBuffer(r.opts.StderrLimit)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	log := r.opts.Logger.With("command", name)
	log.Debug("starting process", "args", strings.Join(args, " "))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		log.Error("process failed to start", "error", err)
		return domain.Result{ExitCode: -1}, &domain.ProcessSpawnError{Command: name, Err: err}
	}

	waitErr := cmd.Wait()
	res := domain.Result{
		ExitCode:  cmd.ProcessState.ExitCode(),
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.String(),
		Truncated: stderr.Truncated(),
	}
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("process cancelled", "elapsed", elapsed, "reason", ctxErr)
		return res, &domain.CancelledError{Command: name, Cause: ctxErr}
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return res, &domain.ProcessSpawnError{Command: name, Err: waitErr}
		}
		log.Debug("process exited with error", "code", res.ExitCode, "elapsed", elapsed)
		return res, &domain.ProcessError{
			Command:   name,
			ExitCode:  res.ExitCode,
			Stderr:    res.Stderr,
			Truncated: res.Truncated,
		}
	}

	log.Debug("process finished", "elapsed", elapsed)
	return res, nil
}
