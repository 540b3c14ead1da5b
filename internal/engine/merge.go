package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
)

// Merger concatenates PDFs in input order using pdfcpu.
type Merger struct{}

// NewMerger returns the merge adapter.
func NewMerger() *Merger {
	return &Merger{}
}

// Convert writes the pages of every input, in order, to job.Output.
func (m *Merger) Convert(ctx context.Context, job Job) error {
	if err := requireInputs("merge", job, false); err != nil {
		return err
	}
	if err := contextError(ctx, "merge"); err != nil {
		return err
	}

	conf := pdfConfig()
	if len(job.Inputs) == 1 {
		if err := api.ValidateFile(job.Inputs[0], conf); err != nil {
			return apperr.Engine(err.Error(), err)
		}
		return copyFile(job.Inputs[0], job.Output)
	}

	if err := api.MergeCreateFile(job.Inputs, job.Output, false, conf); err != nil {
		return apperr.Engine(err.Error(), err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return apperr.Storage("open "+filepath.Base(src), err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return apperr.Storage("create "+filepath.Base(dst), err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return apperr.Storage("write "+filepath.Base(dst), err)
	}
	if err := out.Close(); err != nil {
		return apperr.Storage("close "+filepath.Base(dst), err)
	}
	return nil
}
