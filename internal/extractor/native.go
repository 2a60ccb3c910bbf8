package extractor

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Native reads the text layer in-process with ledongthuc/pdf. Glyphs are
// laid out by position, so separately placed words and lines keep their
// spaces and breaks.
type Native struct{}

func (Native) Name() string { return "native" }

func (Native) Open(ctx context.Context, path string) (doc Document, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open %s: malformed pdf: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &nativeDoc{f: f, r: r}, nil
}

type nativeDoc struct {
	f *os.File
	r *pdf.Reader
}

func (d *nativeDoc) NumPages() int { return d.r.NumPage() }

func (d *nativeDoc) PageText(ctx context.Context, page int) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkPage(page, d.r.NumPage()); err != nil {
		return "", err
	}
	// malformed content streams panic inside the reader
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: malformed content stream: %v", page, r)
		}
	}()
	p := d.r.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	return layout(p.Content().Text), nil
}

// layout groups glyphs into rows by baseline, top to bottom, and joins
// each row left to right. A horizontal gap wider than a fraction of the
// font size becomes a space.
func layout(glyphs []pdf.Text) string {
	if len(glyphs) == 0 {
		return ""
	}
	type row struct {
		y      float64
		glyphs []pdf.Text
	}
	var rows []*row
	for _, g := range glyphs {
		tol := math.Max(g.FontSize*0.5, 1)
		var dst *row
		for _, r := range rows {
			if math.Abs(r.y-g.Y) <= tol {
				dst = r
				break
			}
		}
		if dst == nil {
			dst = &row{y: g.Y}
			rows = append(rows, dst)
		}
		dst.glyphs = append(dst.glyphs, g)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		sort.SliceStable(r.glyphs, func(i, j int) bool { return r.glyphs[i].X < r.glyphs[j].X })
		for k, g := range r.glyphs {
			if k > 0 {
				prev := r.glyphs[k-1]
				gap := g.X - (prev.X + prev.W)
				if gap > math.Max(prev.FontSize, g.FontSize)*0.25 &&
					!strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(g.S, " ") {
					b.WriteByte(' ')
				}
			}
			b.WriteString(g.S)
		}
	}
	return b.String()
}

func (d *nativeDoc) Close() error { return d.f.Close() }
