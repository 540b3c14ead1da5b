package engine

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/klauspost/compress/zip"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
)

// Rasterizer renders every PDF page to PNG with MuPDF and packs the
// pages into a ZIP archive named page_NNN.png, starting at 1.
type Rasterizer struct {
	Timeout time.Duration
}

// NewRasterizer returns the pdf-to-png adapter. A zero timeout means no deadline.
func NewRasterizer(timeout time.Duration) *Rasterizer {
	return &Rasterizer{Timeout: timeout}
}

// PageName returns the archive entry name of the 1-based page n.
func PageName(n int) string {
	return fmt.Sprintf("page_%03d.png", n)
}

// Convert renders job.Inputs[0] at job.Params.DPI into a ZIP at job.Output.
func (r *Rasterizer) Convert(ctx context.Context, job Job) error {
	if err := requireInputs("pdf-to-png", job, true); err != nil {
		return err
	}
	if job.Workdir == "" {
		return apperr.Engine("pdf-to-png: scratch directory is required", nil)
	}
	if job.Params.DPI <= 0 {
		return apperr.Engine(fmt.Sprintf("pdf-to-png: unsupported dpi %d", job.Params.DPI), nil)
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	doc, err := fitz.New(job.Inputs[0])
	if err != nil {
		return apperr.Engine(err.Error(), err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count == 0 {
		return apperr.Engine("pdf-to-png: document has no pages", nil)
	}

	pages := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if err := contextError(ctx, "pdf-to-png"); err != nil {
			return err
		}
		img, err := doc.ImageDPI(i, float64(job.Params.DPI))
		if err != nil {
			return apperr.Engine(fmt.Sprintf("render page %d: %v", i+1, err), err)
		}
		path := filepath.Join(job.Workdir, PageName(i+1))
		if err := writePNG(path, img); err != nil {
			return err
		}
		pages = append(pages, path)
	}

	return writeZip(job.Output, pages)
}

func writePNG(path string, img image.Image) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return apperr.Storage("create "+filepath.Base(path), err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return apperr.Engine(fmt.Sprintf("encode %s: %v", filepath.Base(path), err), err)
	}
	if err := f.Close(); err != nil {
		return apperr.Storage("close "+filepath.Base(path), err)
	}
	return nil
}

func writeZip(dst string, files []string) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return apperr.Storage("create "+filepath.Base(dst), err)
	}
	zw := zip.NewWriter(out)

	for _, path := range files {
		if err := addToZip(zw, path); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return apperr.Storage("finish "+filepath.Base(dst), err)
	}
	if err := out.Close(); err != nil {
		return apperr.Storage("close "+filepath.Base(dst), err)
	}
	return nil
}

func addToZip(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return apperr.Storage("open "+filepath.Base(path), err)
	}
	defer in.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.Base(path),
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return apperr.Storage("add "+filepath.Base(path), err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return apperr.Storage("write "+filepath.Base(path), err)
	}
	return nil
}
