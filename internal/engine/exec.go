package engine

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
)

const (
	DefaultOCRBinary  = "ocrmypdf"
	DefaultDOCXBinary = "pdf2docx"
	DefaultTimeout    = 2 * time.Minute
)

// DefaultOCRArgs makes already-searchable pages pass through untouched.
var DefaultOCRArgs = []string{"--skip-text", "--optimize", "1", "-l", "{lang}", "{input}", "{output}"}

var DefaultDOCXArgs = []string{"convert", "{input}", "{output}"}

// ExecAdapter runs a single-input Command and checks that it produced
// the job's output.
type ExecAdapter struct {
	Name    string
	Command Command
}

// NewOCR returns the ocrmypdf adapter. Empty fields take defaults.
func NewOCR(cmd Command) *ExecAdapter {
	return newExecAdapter("ocr", cmd, DefaultOCRBinary, DefaultOCRArgs)
}

// NewDOCX returns the pdf2docx adapter. Empty fields take defaults.
func NewDOCX(cmd Command) *ExecAdapter {
	return newExecAdapter("pdf-to-docx", cmd, DefaultDOCXBinary, DefaultDOCXArgs)
}

func newExecAdapter(name string, cmd Command, binary string, args []string) *ExecAdapter {
	if cmd.Binary == "" {
		cmd.Binary = binary
	}
	if len(cmd.Args) == 0 {
		cmd.Args = args
	}
	if cmd.Timeout <= 0 {
		cmd.Timeout = DefaultTimeout
	}
	return &ExecAdapter{Name: name, Command: cmd}
}

// Convert runs the command with the job's paths and parameters.
func (a *ExecAdapter) Convert(ctx context.Context, job Job) error {
	if err := requireInputs(a.Name, job, true); err != nil {
		return err
	}

	vars := map[string]string{
		"input":   job.Inputs[0],
		"output":  job.Output,
		"outdir":  filepath.Dir(job.Output),
		"workdir": job.Workdir,
		"lang":    job.Params.Language,
		"dpi":     strconv.Itoa(job.Params.DPI),
	}
	if _, err := a.Command.Run(ctx, vars); err != nil {
		return err
	}

	if info, err := os.Stat(job.Output); err != nil || info.Size() == 0 {
		return apperr.Engine(a.Name+": engine produced no output", err)
	}
	return nil
}

// Preflight verifies that the adapter's binary is installed.
func (a *ExecAdapter) Preflight() error {
	return EnsureBinary(a.Command.Binary)
}
