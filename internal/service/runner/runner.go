// Package runner executes the external git and docker tools on behalf of chat
// commands. Arguments are always passed as an argv, never through a shell.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"time"

	"littlebot/internal/logger"
	"littlebot/internal/model"

	"go.uber.org/zap"
)

// ErrProgramNotAllowed is returned for programs outside the allow-list
var ErrProgramNotAllowed = errors.New("program not allowed")

// ExecRunner runs allow-listed programs in a fixed directory with a timeout
type ExecRunner struct {
	dir     string
	timeout time.Duration
	allowed []string
}

// New creates an ExecRunner. allowed defaults to git and docker.
func New(dir string, timeout time.Duration, allowed ...string) *ExecRunner {
	if len(allowed) == 0 {
		allowed = []string{"git", "docker"}
	}
	return &ExecRunner{dir: dir, timeout: timeout, allowed: allowed}
}

// Run executes name with args and returns combined stdout and stderr. A
// non-zero exit still returns the captured output alongside the error.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if !slices.Contains(r.allowed, name) {
		return "", fmt.Errorf("%w: %s", ErrProgramNotAllowed, name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.dir

	start := time.Now()
	out, err := cmd.CombinedOutput()
	logger.GetLogger().Info("command finished",
		zap.String("program", name),
		zap.Strings("args", args),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))

	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("timed out after %s: %w", r.timeout, ctx.Err())
		}
		return string(out), model.NewExternalCallError(name, fmt.Sprint(args), err)
	}
	return string(out), nil
}
