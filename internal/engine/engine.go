// Package engine wraps external conversion engines behind a uniform
// adapter contract.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
)

// Params are the optional, engine-interpreted parameters of a job.
type Params struct {
	Language string
	DPI      int
}

// Job describes one conversion. Inputs and Output live inside the
// request workspace; Workdir is a scratch directory owned by the same
// workspace. Adapters must not write anywhere else.
type Job struct {
	Inputs  []string
	Output  string
	Workdir string
	Params  Params
}

// Adapter transforms a job's inputs into its output.
type Adapter interface {
	Convert(ctx context.Context, job Job) error
}

// AdapterFunc lets a plain function act as an Adapter.
type AdapterFunc func(ctx context.Context, job Job) error

// Convert calls f.
func (f AdapterFunc) Convert(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// contextError converts a finished context into the matching engine error.
func contextError(ctx context.Context, engine string) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.EngineTimeout(fmt.Sprintf("%s timed out", engine), err)
	default:
		return apperr.Engine(fmt.Sprintf("%s cancelled", engine), err)
	}
}

func requireInputs(engine string, job Job, single bool) error {
	if len(job.Inputs) == 0 {
		return apperr.Engine(engine+": no input files", nil)
	}
	if single && len(job.Inputs) != 1 {
		return apperr.Engine(fmt.Sprintf("%s: expects one input, got %d", engine, len(job.Inputs)), nil)
	}
	if job.Output == "" {
		return apperr.Engine(engine+": output path is required", nil)
	}
	return nil
}
