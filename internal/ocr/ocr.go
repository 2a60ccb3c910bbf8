// Package ocr rasterises PDF pages and runs optical character recognition
// over the rendered images.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

var (
	// ErrUnavailable means the engine or rasteriser binary/library is missing.
	ErrUnavailable = errors.New("ocr unavailable")
	ErrTimeout     = errors.New("ocr timeout")
)

const (
	DefaultLang    = "eng"
	DefaultDPI     = 300
	DefaultTimeout = 60 * time.Second
)

// Engine recognises text in a single image file.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath, lang string) (string, error)
}

// Rasterizer renders one 1-based PDF page to an image inside dir and returns its path.
type Rasterizer interface {
	Name() string
	Rasterize(ctx context.Context, pdfPath string, page, dpi int, dir string) (string, error)
}

// Checker is implemented by engines and rasterisers that can report missing
// dependencies before any page is processed.
type Checker interface {
	Check(ctx context.Context) error
}

type Processor struct {
	Rasterizer Rasterizer
	Engine     Engine
	Lang       string
	DPI        int
	Timeout    time.Duration
	TempDir    string
	Logger     *slog.Logger
}

// withDefaults returns a copy with unset fields filled in. The receiver is
// never written, so a shared Processor stays safe for concurrent pages.
func (p Processor) withDefaults() Processor {
	if p.Lang == "" {
		p.Lang = DefaultLang
	}
	if p.DPI <= 0 {
		p.DPI = DefaultDPI
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// Available reports ErrUnavailable if either half of the processor cannot run.
func (p *Processor) Available(ctx context.Context) error {
	if p == nil || p.Engine == nil || p.Rasterizer == nil {
		return fmt.Errorf("%w: no engine configured", ErrUnavailable)
	}
	for _, c := range []any{p.Rasterizer, p.Engine} {
		if ch, ok := c.(Checker); ok {
			if err := ch.Check(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// PageText rasterises page of pdfPath into a private temp dir, recognises it
// and removes the dir before returning.
func (p *Processor) PageText(ctx context.Context, pdfPath string, page int) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: no engine configured", ErrUnavailable)
	}
	s := p.withDefaults()
	if s.Engine == nil || s.Rasterizer == nil {
		return "", fmt.Errorf("%w: no engine configured", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	dir, err := os.MkdirTemp(s.TempDir, "pdfocr-*")
	if err != nil {
		return "", fmt.Errorf("ocr temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	img, err := s.Rasterizer.Rasterize(ctx, pdfPath, page, s.DPI, dir)
	if err != nil {
		return "", classify(ctx, fmt.Errorf("rasterize page %d: %w", page, err))
	}
	text, err := s.Engine.Recognize(ctx, img, s.Lang)
	if err != nil {
		return "", classify(ctx, fmt.Errorf("recognize page %d: %w", page, err))
	}
	s.Logger.Debug("ocr page done", "page", page, "engine", s.Engine.Name(), "chars", len(text))
	return CleanText(text), nil
}

// ImageText recognises a standalone image file.
func (p *Processor) ImageText(ctx context.Context, imagePath string) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: no engine configured", ErrUnavailable)
	}
	s := p.withDefaults()
	if s.Engine == nil {
		return "", fmt.Errorf("%w: no engine configured", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	text, err := s.Engine.Recognize(ctx, imagePath, s.Lang)
	if err != nil {
		return "", classify(ctx, err)
	}
	return CleanText(text), nil
}

// classify maps deadline expiry onto ErrTimeout, leaving other errors untouched.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\f", "\n")
	return strings.TrimSpace(s)
}
