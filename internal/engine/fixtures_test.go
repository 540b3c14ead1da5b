package engine

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/stretchr/testify/require"
)

// writeImage writes a w x h image filled with c. The format follows the
// extension of path.
func writeImage(t *testing.T, path string, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	default:
		require.NoError(t, png.Encode(f, img))
	}
	return path
}

// makePDF builds a PDF with one page per generated image.
func makePDF(t *testing.T, dir, name string, pages int) string {
	t.Helper()
	imgs := make([]string, pages)
	for i := range imgs {
		imgs[i] = writeImage(t, filepath.Join(dir, fmt.Sprintf("%s_src_%d.png", name, i)), 40+i, 60, color.NRGBA{R: uint8(50 * i), G: 90, B: 200, A: 255})
	}
	out := filepath.Join(dir, name+".pdf")
	require.NoError(t, api.ImportImagesFile(imgs, out, pdfcpu.DefaultImportConfig(), pdfConfig()))
	return out
}

func pageCount(t *testing.T, path string) int {
	t.Helper()
	n, err := api.PageCountFile(path)
	require.NoError(t, err)
	return n
}

// pageWidths returns the width of every page, in order. Fixture pages
// differ in width, so this identifies where each page came from.
func pageWidths(t *testing.T, path string) []int {
	t.Helper()
	dims, err := api.PageDimsFile(path)
	require.NoError(t, err)
	widths := make([]int, len(dims))
	for i, d := range dims {
		widths[i] = int(math.Round(d.Width))
	}
	return widths
}
