//go:build !fitz

package ocr

import (
	"context"
	"fmt"
)

// Fitz is unavailable in this build; rebuild with -tags fitz.
type Fitz struct{}

func NewFitz() (Fitz, error) {
	return Fitz{}, fmt.Errorf("%w: MuPDF support not compiled in; rebuild with -tags fitz", ErrUnavailable)
}

func (Fitz) Name() string { return "fitz" }

func (Fitz) Check(context.Context) error {
	return fmt.Errorf("%w: MuPDF support not compiled in", ErrUnavailable)
}

func (Fitz) Rasterize(context.Context, string, int, int, string) (string, error) {
	return "", fmt.Errorf("%w: MuPDF support not compiled in", ErrUnavailable)
}
