//go:build fitz

package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
)

// Fitz rasterises in-process with MuPDF.
type Fitz struct{}

func NewFitz() (Fitz, error) { return Fitz{}, nil }

func (Fitz) Name() string { return "fitz" }

func (Fitz) Rasterize(ctx context.Context, pdfPath string, page, dpi int, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("fitz open: %w", err)
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return "", fmt.Errorf("fitz: page %d out of range (%d pages)", page, doc.NumPage())
	}
	png, err := doc.ImagePNG(page-1, float64(dpi))
	if err != nil {
		return "", fmt.Errorf("fitz render page %d: %w", page, err)
	}
	out := filepath.Join(dir, "page.png")
	if err := os.WriteFile(out, png, 0o600); err != nil {
		return "", err
	}
	return out, nil
}
