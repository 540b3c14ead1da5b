package engine

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"golang.org/x/sync/errgroup"

	"github.com/zzkydev/Convertify-PDF/internal/apperr"
)

// ImagePacker builds one PDF page per input image, in input order.
// Images with transparency are composited onto white first.
type ImagePacker struct{}

// NewImagePacker returns the img-to-pdf adapter.
func NewImagePacker() *ImagePacker {
	return &ImagePacker{}
}

// Convert flattens the inputs into job.Workdir and imports them as pages.
func (p *ImagePacker) Convert(ctx context.Context, job Job) error {
	if err := requireInputs("img-to-pdf", job, false); err != nil {
		return err
	}
	if job.Workdir == "" {
		return apperr.Engine("img-to-pdf: scratch directory is required", nil)
	}

	pages := make([]string, len(job.Inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, in := range job.Inputs {
		g.Go(func() error {
			if err := contextError(gctx, "img-to-pdf"); err != nil {
				return err
			}
			out, err := Flatten(in, filepath.Join(job.Workdir, fmt.Sprintf("flat_%03d.png", i+1)))
			if err != nil {
				return err
			}
			pages[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := api.ImportImagesFile(pages, job.Output, pdfcpu.DefaultImportConfig(), pdfConfig()); err != nil {
		return apperr.Engine(err.Error(), err)
	}
	return nil
}

// Flatten returns src unchanged when the image is opaque. Otherwise it
// composites the image onto a white background, writes it to dst as PNG
// and returns dst.
func Flatten(src, dst string) (string, error) {
	img, err := decodeImage(src)
	if err != nil {
		return "", err
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return src, nil
	}

	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Over)

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", apperr.Storage("create "+filepath.Base(dst), err)
	}
	if err := png.Encode(f, canvas); err != nil {
		f.Close()
		return "", apperr.Engine(fmt.Sprintf("encode %s: %v", filepath.Base(dst), err), err)
	}
	if err := f.Close(); err != nil {
		return "", apperr.Storage("close "+filepath.Base(dst), err)
	}
	return dst, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Storage("open "+filepath.Base(path), err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apperr.Engine(fmt.Sprintf("decode %s: %v", filepath.Base(path), err), err)
	}
	return img, nil
}
