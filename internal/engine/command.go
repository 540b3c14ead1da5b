package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
)

// Command is an out-of-process engine invocation: a binary, an argument
// template and an optional deadline. Template arguments may reference
// {name} placeholders that Run fills from its vars.
type Command struct {
	Binary  string
	Args    []string
	Timeout time.Duration
}

// Output holds the captured streams of a finished command.
type Output struct {
	Stdout string
	Stderr string
}

// Expand returns the argument list with placeholders replaced.
func (c Command) Expand(vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = r.Replace(a)
	}
	return args
}

// Run executes the command and waits for it. A non-zero exit is an engine
// error whose detail is the captured stderr, or stdout when stderr is
// empty. Exceeding Timeout is an engine timeout.
func (c Command) Run(ctx context.Context, vars map[string]string) (Output, error) {
	if c.Binary == "" {
		return Output{}, apperr.Engine("engine binary is not configured", nil)
	}
	name := filepath.Base(c.Binary)

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Binary, c.Expand(vars)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	out := Output{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if err == nil {
		return out, nil
	}

	if c.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, apperr.EngineTimeout(fmt.Sprintf("%s timed out after %s", name, c.Timeout), err)
	}
	if ctxErr := contextError(ctx, name); ctxErr != nil {
		return out, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := out.Stderr
		if detail == "" {
			detail = out.Stdout
		}
		if detail == "" {
			detail = fmt.Sprintf("%s exited with status %d", name, exitErr.ExitCode())
		}
		return out, apperr.Engine(detail, err)
	}
	return out, apperr.Engine(fmt.Sprintf("%s: %v", name, err), err)
}

// EnsureBinary checks whether binary is available on PATH.
func EnsureBinary(binary string) error {
	if binary == "" {
		return errors.New("engine binary is not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s binary not found: %w", binary, err)
	}
	return nil
}

// ResolveBinary returns the absolute binary path if available on PATH.
func ResolveBinary(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", err
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs, nil
	}
	return path, nil
}
