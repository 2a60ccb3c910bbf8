//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract links libtesseract through cgo. A fresh client is created per
// call; clients are not safe for concurrent use.
type Gosseract struct {
	DPI int
}

func NewGosseract(dpi int) (Gosseract, error) { return Gosseract{DPI: dpi}, nil }

func (Gosseract) Name() string { return "gosseract" }

func (g Gosseract) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	c := gosseract.NewClient()
	defer c.Close()

	if lang == "" {
		lang = DefaultLang
	}
	if err := c.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if g.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(g.DPI)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		t, err := c.Text()
		done <- result{t, err}
	}()
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("recognize text: %w", r.err)
		}
		return r.text, nil
	}
}
