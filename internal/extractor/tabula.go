package extractor

import (
	"context"
	"fmt"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/text"
)

// Tabula reads the text layer with tabula's fragment extractor, which puts
// word spaces and line breaks back from glyph positions.
type Tabula struct{}

func (Tabula) Name() string { return "tabula" }

func (Tabula) Open(ctx context.Context, path string) (doc Document, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("open %s: malformed pdf: %v", path, r)
		}
	}()
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	n, err := r.PageCount()
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("open %s: page count: %w", path, err)
	}
	return &tabulaDoc{r: r, pages: n}, nil
}

type tabulaDoc struct {
	r     *reader.Reader
	pages int
}

func (d *tabulaDoc) NumPages() int { return d.pages }

func (d *tabulaDoc) PageText(ctx context.Context, page int) (s string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkPage(page, d.pages); err != nil {
		return "", err
	}
	defer func() {
		if r := recover(); r != nil {
			s, err = "", fmt.Errorf("page %d: malformed content stream: %v", page, r)
		}
	}()

	pg, err := d.r.GetPage(page - 1)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", page, err)
	}
	contents, err := pg.Contents()
	if err != nil {
		return "", fmt.Errorf("page %d: contents: %w", page, err)
	}
	var data []byte
	for _, obj := range contents {
		st, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		b, err := st.Decode()
		if err != nil {
			return "", fmt.Errorf("page %d: decode: %w", page, err)
		}
		data = append(data, b...)
		data = append(data, '\n')
	}
	if len(data) == 0 {
		return "", nil
	}

	ex := text.NewExtractor()
	// unregistered fonts fall back to the default encoding
	_ = ex.RegisterFontsFromPage(pg, func(ref core.IndirectRef) (core.Object, error) {
		return d.r.ResolveReference(ref)
	})
	if _, err := ex.ExtractFromBytes(data); err != nil {
		return "", fmt.Errorf("page %d: %w", page, err)
	}
	return ex.GetText(), nil
}

func (d *tabulaDoc) Close() error { return d.r.Close() }
