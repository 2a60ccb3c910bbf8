package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Options struct {
	Engine        string // tesseract | gosseract | mistral
	Rasterizer    string // pdftoppm | fitz
	TesseractPath string
	PdftoppmPath  string
	Lang          string
	DPI           int
	Timeout       time.Duration
	MistralAPIKey string
	MistralModel  string
	TempDir       string
	Logger        *slog.Logger
}

// NewProcessor wires the named engine and rasteriser. Backends that cannot be
// constructed in this build are replaced by placeholders that fail every call
// with ErrUnavailable, so callers degrade per page instead of at startup.
func NewProcessor(o Options) *Processor {
	p := &Processor{
		Lang:    o.Lang,
		DPI:     o.DPI,
		Timeout: o.Timeout,
		TempDir: o.TempDir,
		Logger:  o.Logger,
	}
	*p = p.withDefaults()

	switch o.Engine {
	case "", "tesseract":
		p.Engine = Tesseract{Path: o.TesseractPath, DPI: p.DPI}
	case "gosseract":
		if g, err := NewGosseract(p.DPI); err != nil {
			p.Engine = unavailable{name: "gosseract", err: err}
		} else {
			p.Engine = g
		}
	case "mistral":
		p.Engine = Mistral{APIKey: o.MistralAPIKey, Model: o.MistralModel}
	default:
		p.Engine = unavailable{name: o.Engine, err: fmt.Errorf("%w: unknown engine %q", ErrUnavailable, o.Engine)}
	}

	switch o.Rasterizer {
	case "", "pdftoppm", "poppler":
		p.Rasterizer = Pdftoppm{Path: o.PdftoppmPath}
	case "fitz":
		if f, err := NewFitz(); err != nil {
			p.Rasterizer = unavailable{name: "fitz", err: err}
		} else {
			p.Rasterizer = f
		}
	default:
		p.Rasterizer = unavailable{name: o.Rasterizer, err: fmt.Errorf("%w: unknown rasterizer %q", ErrUnavailable, o.Rasterizer)}
	}
	return p
}

type unavailable struct {
	name string
	err  error
}

func (u unavailable) Name() string                { return u.name }
func (u unavailable) Check(context.Context) error { return u.err }
func (u unavailable) Recognize(context.Context, string, string) (string, error) {
	return "", u.err
}
func (u unavailable) Rasterize(context.Context, string, int, int, string) (string, error) {
	return "", u.err
}
