// Package pipeline runs a PDF through text-layer extraction, per-page OCR
// reconciliation, optional table detection and chunking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/toricodesthings/pdf-parse-service/internal/chunk"
	"github.com/toricodesthings/pdf-parse-service/internal/docinfo"
	"github.com/toricodesthings/pdf-parse-service/internal/extractor"
	"github.com/toricodesthings/pdf-parse-service/internal/format"
	"github.com/toricodesthings/pdf-parse-service/internal/ocr"
	"github.com/toricodesthings/pdf-parse-service/internal/reconcile"
	"github.com/toricodesthings/pdf-parse-service/internal/tables"
	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

var (
	// ErrDocumentUnreadable: missing, corrupt, or encrypted without credentials.
	ErrDocumentUnreadable  = errors.New("document unreadable")
	ErrUnsupportedDocument = errors.New("unsupported document")
	ErrInvalidOptions      = errors.New("invalid options")
)

// OCR is the page OCR backend. *ocr.Processor implements it.
type OCR interface {
	reconcile.PageOCR
	Available(ctx context.Context) error
}

// TableExtractor is implemented by *tables.Extractor.
type TableExtractor interface {
	Extract(ctx context.Context, path string, flavour tables.Flavour) ([]types.Table, []types.Warning, error)
}

// Prober reads document-level metadata.
type Prober func(ctx context.Context, path string) (types.Metadata, error)

type Pipeline struct {
	cfg    Config
	text   extractor.TextLayer
	ocr    OCR
	tables TableExtractor
	probe  Prober
	log    *slog.Logger
}

type Option func(*Pipeline)

func WithTextLayer(t extractor.TextLayer) Option { return func(p *Pipeline) { p.text = t } }
func WithOCR(o OCR) Option                       { return func(p *Pipeline) { p.ocr = o } }
func WithTables(t TableExtractor) Option         { return func(p *Pipeline) { p.tables = t } }
func WithProber(pr Prober) Option                { return func(p *Pipeline) { p.probe = pr } }

// New builds a pipeline from cfg. Zero config fields take the package
// defaults; backends not supplied through options are built from cfg.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.defaults()
	p := &Pipeline{cfg: cfg, log: cfg.Logger, probe: docinfo.Probe}
	for _, o := range opts {
		o(p)
	}
	if p.text == nil {
		tl, err := extractor.New(cfg.TextLayer, extractor.PopplerOptions{})
		if err != nil {
			p.log.Warn("falling back to tabula text layer", "text_layer", cfg.TextLayer, "error", err)
			tl = extractor.Tabula{}
		}
		p.text = tl
	}
	if p.ocr == nil {
		p.ocr = ocr.NewProcessor(cfg.OCROptions())
	}
	if p.tables == nil {
		p.tables = tables.NewExtractor(cfg.Logger)
	}
	return p
}

func (p *Pipeline) Config() Config { return p.cfg }

// run holds the per-call settings after options are merged over the config.
type run struct {
	size, overlap int
	policy        reconcile.Policy
	tables        bool
	flavour       tables.Flavour
	metadataOnly  bool
	pages         []int
}

func (p *Pipeline) resolve(o types.ParseOptions) (run, error) {
	r := run{size: p.cfg.ChunkSize, overlap: p.cfg.ChunkOverlap}
	switch {
	case o.ChunkSize != 0:
		r.size, r.overlap = o.ChunkSize, o.ChunkOverlap
	case o.ChunkOverlap != 0:
		r.overlap = o.ChunkOverlap
	}
	if err := chunk.Validate(r.size, r.overlap); err != nil {
		return r, err
	}

	name := o.TableFlavour
	if name == "" {
		name = p.cfg.TableFlavour
	}
	f, err := tables.ParseFlavour(name)
	if err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	r.flavour = f
	r.tables = o.ExtractTables || p.cfg.ExtractTables
	r.metadataOnly = o.MetadataOnly
	r.pages = o.Pages
	r.policy = reconcile.Policy{
		UseOCR:       o.UseOCR || p.cfg.UseOCR,
		ForceOCR:     o.ForceOCR || p.cfg.ForceOCR,
		MinTextChars: p.cfg.MinTextChars,
	}
	return r, nil
}

// Parse processes the document at path. Page-local problems come back as
// warnings on the result; only an unreadable or empty document, invalid
// options, or a cancelled ctx fail the call.
func (p *Pipeline) Parse(ctx context.Context, path string, o types.ParseOptions) (*types.ParseResult, error) {
	r, err := p.resolve(o)
	if err != nil {
		return nil, err
	}
	log := p.log.With("file", filepath.Base(path))
	res := &types.ParseResult{Stage: types.StageUnopened}

	// Unopened -> Opened is the only stage that can fail the document.
	doc, err := p.text.Open(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, filepath.Base(path), err)
	}
	pool := newHandlePool(p.text, path, doc)
	defer pool.close()

	total := doc.NumPages()
	if total <= 0 {
		return nil, fmt.Errorf("%w: %s has no pages", ErrUnsupportedDocument, filepath.Base(path))
	}

	meta, err := p.probe(ctx, path)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, docinfo.ErrEncrypted):
		return nil, fmt.Errorf("%w: %v", ErrDocumentUnreadable, err)
	default:
		log.Warn("metadata unavailable", "error", err)
		res.Warnings = append(res.Warnings, types.Warning{Code: types.WarnMetadataFailed, Message: err.Error()})
	}
	if meta.PageCount <= 0 {
		meta.PageCount = total
	}
	res.Stage = types.StageOpened

	if r.metadataOnly {
		res.Metadata = meta
		res.Chunks = []types.Chunk{}
		res.Stage = types.StageComplete
		return res, nil
	}

	selected := selectPages(r.pages, total)
	pages, err := p.reconcilePages(ctx, pool, path, selected, r.policy, log)
	if err != nil {
		return nil, err
	}
	res.Pages = pages
	res.Stage = types.StagePagesReconciled

	resolved := make([]string, len(pages))
	res.OCRUsed = make([]bool, len(pages))
	var ocrTexts []string
	for i, pg := range pages {
		resolved[i] = pg.ResolvedText
		res.OCRUsed[i] = pg.OCRUsed
		res.Warnings = append(res.Warnings, pg.Warnings...)
		if pg.OCRUsed && pg.OCRText != nil {
			if res.OCRByPage == nil {
				res.OCRByPage = map[int]string{}
			}
			res.OCRByPage[pg.Index] = *pg.OCRText
			ocrTexts = append(ocrTexts, *pg.OCRText)
		}
	}
	res.Text = format.JoinClean(resolved, p.cfg.PageSeparator)

	if r.tables {
		ts, warns, err := p.tables.Extract(ctx, path, r.flavour)
		if err != nil {
			return nil, err
		}
		ts = keepPages(ts, selected, total)
		n := len(ts)
		res.Tables = ts
		res.NumTables = &n
		res.Warnings = append(res.Warnings, warns...)
		res.Stage = types.StageTablesExtracted
	}

	// Validated in resolve, so Split cannot fail here.
	res.Chunks, _ = chunk.Split(res.Text, r.size, r.overlap)
	if res.Chunks == nil {
		res.Chunks = []types.Chunk{}
	}
	res.NumChunks = len(res.Chunks)
	if res.OCRByPage != nil {
		text := format.JoinClean(ocrTexts, p.cfg.PageSeparator)
		res.OCRText = &text
		res.OCRChunks, _ = chunk.Split(text, r.size, r.overlap)
	}
	res.Stage = types.StageChunked

	res.Metadata = meta
	res.Stage = types.StageComplete
	log.Info("parsed",
		"pages", len(pages),
		"ocr_pages", len(res.OCRByPage),
		"chunks", res.NumChunks,
		"tables", len(res.Tables),
		"warnings", len(res.Warnings),
	)
	return res, nil
}

func (p *Pipeline) workers(pages int) int {
	w := runtime.NumCPU()
	if p.cfg.MaxPageWorkers > 0 {
		w = min(w, p.cfg.MaxPageWorkers)
	}
	return max(1, min(w, pages))
}

// reconcilePages fans the selected pages out over a bounded worker pool. Each
// goroutine writes only its own slot.
func (p *Pipeline) reconcilePages(ctx context.Context, pool *handlePool, path string, selected []int, policy reconcile.Policy, log *slog.Logger) ([]types.Page, error) {
	rec := &reconcile.Reconciler{
		Policy:   policy,
		OCR:      p.ocr,
		MinWords: p.cfg.MinWords,
		Logger:   log,
	}
	if policy.UseOCR || policy.ForceOCR {
		if err := p.ocr.Available(ctx); err != nil {
			log.Warn("ocr backend unavailable", "error", err)
			rec.OCR = failingOCR{err: err}
		}
	}

	out := make([]types.Page, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers(len(selected)))
	for i, index := range selected {
		g.Go(func() error {
			doc := pool.get(gctx)
			defer pool.put(doc)
			page, err := rec.Page(gctx, doc, path, index)
			if err != nil {
				return err
			}
			out[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return out, nil
}

type failingOCR struct{ err error }

func (f failingOCR) PageText(context.Context, string, int) (string, error) { return "", f.err }

// Preview reads the text layer only and reports which pages would need OCR.
func (p *Pipeline) Preview(ctx context.Context, path string, o types.ParseOptions) types.PreviewResult {
	doc, err := p.text.Open(ctx, path)
	if err != nil {
		msg := fmt.Sprintf("%v: %v", ErrDocumentUnreadable, err)
		return types.PreviewResult{NeedsOCR: true, Error: &msg}
	}
	defer doc.Close()

	total := doc.NumPages()
	if total <= 0 {
		msg := ErrUnsupportedDocument.Error()
		return types.PreviewResult{NeedsOCR: true, Error: &msg}
	}

	policy := reconcile.Policy{UseOCR: true, ForceOCR: o.ForceOCR || p.cfg.ForceOCR, MinTextChars: p.cfg.MinTextChars}
	res := types.PreviewResult{Success: true, TotalPages: total}
	for _, page := range selectPages(o.Pages, total) {
		if err := ctx.Err(); err != nil {
			msg := err.Error()
			return types.PreviewResult{NeedsOCR: true, TotalPages: total, Error: &msg}
		}
		text, err := doc.PageText(ctx, page)
		if err != nil {
			p.log.Debug("preview page failed", "page", page, "error", err)
			text = ""
		}
		if reconcile.Decide(text, policy).RunOCR {
			res.OCRPages = append(res.OCRPages, page)
		} else {
			res.TextLayerPages++
		}
	}
	res.NeedsOCR = len(res.OCRPages) > 0
	return res
}

// selectPages returns the sorted, deduplicated in-range pages of req, or every
// page when req selects nothing.
func selectPages(req []int, total int) []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(req))
	for _, n := range req {
		if n < 1 || n > total || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		out = make([]int, total)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}
	sort.Ints(out)
	return out
}

func keepPages(ts []types.Table, selected []int, total int) []types.Table {
	if len(selected) == total {
		return ts
	}
	want := make(map[int]bool, len(selected))
	for _, p := range selected {
		want[p] = true
	}
	kept := make([]types.Table, 0, len(ts))
	for _, t := range ts {
		if want[t.Page] {
			kept = append(kept, t)
		}
	}
	return kept
}
