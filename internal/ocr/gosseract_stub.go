//go:build !ocr

package ocr

import (
	"context"
	"fmt"
)

// Gosseract is unavailable in this build; rebuild with -tags ocr.
type Gosseract struct {
	DPI int
}

func NewGosseract(int) (Gosseract, error) {
	return Gosseract{}, fmt.Errorf("%w: gosseract support not compiled in; rebuild with -tags ocr", ErrUnavailable)
}

func (Gosseract) Name() string { return "gosseract" }

func (Gosseract) Check(context.Context) error {
	return fmt.Errorf("%w: gosseract support not compiled in", ErrUnavailable)
}

func (Gosseract) Recognize(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("%w: gosseract support not compiled in", ErrUnavailable)
}
