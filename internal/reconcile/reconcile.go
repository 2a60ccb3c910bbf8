// Package reconcile decides, page by page, whether the embedded text layer is
// enough or OCR has to run, and picks the page's resolved text.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/toricodesthings/pdf-parse-service/internal/extractor"
	"github.com/toricodesthings/pdf-parse-service/internal/ocr"
	"github.com/toricodesthings/pdf-parse-service/internal/quality"
	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

// DefaultMinTextChars: a page with fewer non-blank characters counts as empty.
const DefaultMinTextChars = 1

type Policy struct {
	UseOCR       bool
	ForceOCR     bool
	MinTextChars int
}

func (p Policy) threshold() int {
	if p.MinTextChars <= 0 {
		return DefaultMinTextChars
	}
	return p.MinTextChars
}

type Decision struct {
	RunOCR bool
	// BelowThreshold means the embedded text is too thin to stand on its own.
	BelowThreshold bool
}

// Decide applies the OCR policy to a page's embedded text.
func Decide(embedded string, p Policy) Decision {
	below := quality.NonBlank(embedded) < p.threshold()
	return Decision{
		RunOCR:         p.ForceOCR || (below && p.UseOCR),
		BelowThreshold: below,
	}
}

// Resolve picks the authoritative text. OCR output wins only when the embedded
// text was below threshold and OCR produced something.
func Resolve(embedded, ocrText string, d Decision) string {
	if d.BelowThreshold && quality.NonBlank(ocrText) > 0 {
		return ocrText
	}
	return embedded
}

// PageOCR rasterises and recognises one page. *ocr.Processor implements it.
type PageOCR interface {
	PageText(ctx context.Context, pdfPath string, page int) (string, error)
}

type Reconciler struct {
	Policy   Policy
	OCR      PageOCR
	MinWords int
	Logger   *slog.Logger
}

// Page reconciles one page read through doc. It never fails for page-local
// problems; those become warnings on the returned page. Only a cancelled ctx
// is returned as an error.
func (r *Reconciler) Page(ctx context.Context, doc extractor.Document, pdfPath string, index int) (types.Page, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	page := types.Page{Index: index}

	embedded, err := doc.PageText(ctx, index)
	if err != nil {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		log.Warn("text layer failed", "page", index, "error", err)
		page.Warnings = append(page.Warnings, types.Warning{
			Code: types.WarnTextLayerFailed, Page: index, Message: err.Error(),
		})
		embedded = ""
	}
	page.EmbeddedText = embedded
	page.Quality = quality.Evaluate(embedded, r.minWords()).Value

	d := Decide(embedded, r.Policy)
	page.ResolvedText = embedded
	if !d.RunOCR {
		return page, nil
	}

	if r.OCR == nil {
		page.Warnings = append(page.Warnings, ocrWarning(index, fmt.Errorf("%w: no OCR backend configured", ocr.ErrUnavailable)))
		return page, nil
	}
	text, err := r.OCR.PageText(ctx, pdfPath, index)
	if err != nil {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		log.Warn("ocr failed, keeping embedded text", "page", index, "error", err)
		page.Warnings = append(page.Warnings, ocrWarning(index, err))
		return page, nil
	}

	page.OCRUsed = true
	page.OCRText = &text
	page.ResolvedText = Resolve(embedded, text, d)
	return page, nil
}

func (r *Reconciler) minWords() int {
	if r.MinWords <= 0 {
		return 10
	}
	return r.MinWords
}

func ocrWarning(page int, err error) types.Warning {
	code := types.WarnOCRFailed
	switch {
	case errors.Is(err, ocr.ErrUnavailable):
		code = types.WarnOCRUnavailable
	case errors.Is(err, ocr.ErrTimeout):
		code = types.WarnOCRTimeout
	}
	return types.Warning{Code: code, Page: page, Message: err.Error()}
}
