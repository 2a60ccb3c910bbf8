package tables

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	tabtables "github.com/tsawler/tabula/tables"
	"github.com/tsawler/tabula/text"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

// Lattice detects ruled tables: grid hypotheses built from the stroked lines
// of each page, filled with the text fragments that fall inside each cell.
type Lattice struct{}

func (Lattice) Strategy() types.Strategy { return types.Lattice }

func (Lattice) Extract(ctx context.Context, path string) ([]types.TableCandidate, error) {
	return eachPage(ctx, path, latticePage)
}

// Stream detects whitespace-aligned tables from text fragment geometry alone.
type Stream struct{}

func (Stream) Strategy() types.Strategy { return types.Stream }

func (Stream) Extract(ctx context.Context, path string) ([]types.TableCandidate, error) {
	return eachPage(ctx, path, streamPage)
}

type pageFunc func(r *reader.Reader, page *pages.Page, number int) ([]types.TableCandidate, error)

// eachPage opens a private reader and applies fn to every page. A page that
// fails or panics is skipped; only an unreadable document is an error.
func eachPage(ctx context.Context, path string, fn pageFunc) ([]types.TableCandidate, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tabula open: %w", err)
	}
	defer r.Close()

	n, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("tabula page count: %w", err)
	}
	var out []types.TableCandidate
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, safePage(r, i, fn)...)
	}
	return out, nil
}

func safePage(r *reader.Reader, idx int, fn pageFunc) (cands []types.TableCandidate) {
	defer func() {
		if rec := recover(); rec != nil {
			cands = nil
		}
	}()
	page, err := r.GetPage(idx)
	if err != nil {
		return nil
	}
	cands, err = fn(r, page, idx+1)
	if err != nil {
		return nil
	}
	return cands
}

func latticePage(r *reader.Reader, page *pages.Page, number int) ([]types.TableCandidate, error) {
	data, err := contentBytes(page)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	ge := graphicsstate.NewGraphicsExtractor()
	if err := ge.ExtractFromBytes(data); err != nil {
		return nil, err
	}
	grids := tabtables.DetectGrids(ge)
	if len(grids.Hypotheses) == 0 {
		return nil, nil
	}
	frags, err := r.ExtractTextFragments(page)
	if err != nil {
		return nil, err
	}

	var out []types.TableCandidate
	for _, h := range grids.Hypotheses {
		grid := h.ToTableGrid()
		if grid.RowCount() == 0 || grid.ColCount() == 0 {
			continue
		}
		out = append(out, types.TableCandidate{
			Strategy:   types.Lattice,
			Page:       number,
			Rows:       fillGrid(grid, frags),
			Confidence: h.Confidence,
		})
	}
	return out, nil
}

func streamPage(r *reader.Reader, page *pages.Page, number int) ([]types.TableCandidate, error) {
	frags, err := r.ExtractTextFragments(page)
	if err != nil || len(frags) == 0 {
		return nil, err
	}
	w, _ := page.Width()
	h, _ := page.Height()
	mp := model.NewPage(w, h)
	mp.Number = number
	for _, f := range frags {
		mp.RawText = append(mp.RawText, model.TextFragment{
			Text:     f.Text,
			BBox:     model.BBox{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height},
			FontSize: f.FontSize,
			FontName: f.FontName,
		})
	}

	det := tabtables.NewGeometricDetector()
	cfg := tabtables.DefaultConfig()
	cfg.UseLines = false
	if err := det.Configure(cfg); err != nil {
		return nil, err
	}
	found, err := det.Detect(mp)
	if err != nil {
		return nil, err
	}
	out := make([]types.TableCandidate, 0, len(found))
	for _, t := range found {
		rows := make([][]string, len(t.Rows))
		for i, row := range t.Rows {
			rows[i] = make([]string, len(row))
			for j, cell := range row {
				rows[i][j] = cell.Text
			}
		}
		out = append(out, types.TableCandidate{
			Strategy:   types.Stream,
			Page:       number,
			Rows:       rows,
			Confidence: t.Confidence,
		})
	}
	return out, nil
}

func contentBytes(page *pages.Page) ([]byte, error) {
	contents, err := page.Contents()
	if err != nil {
		return nil, err
	}
	var all []byte
	for _, obj := range contents {
		s, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		data, err := s.Decode()
		if err != nil {
			return nil, err
		}
		all = append(all, data...)
		all = append(all, '\n')
	}
	return all, nil
}

// fillGrid places each fragment in the cell containing its centre. Grid row
// boundaries may be sorted either way; rows are emitted top to bottom.
func fillGrid(grid *model.TableGrid, frags []text.TextFragment) [][]string {
	ys := append([]float64(nil), grid.Rows...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))
	xs := append([]float64(nil), grid.Cols...)
	sort.Float64s(xs)

	type placed struct {
		x, y float64
		s    string
	}
	cells := make([][][]placed, len(ys)-1)
	for i := range cells {
		cells[i] = make([][]placed, len(xs)-1)
	}
	for _, f := range frags {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		cx, cy := f.X+f.Width/2, f.Y+f.Height/2
		row := findBand(ys, cy, true)
		col := findBand(xs, cx, false)
		if row < 0 || col < 0 {
			continue
		}
		cells[row][col] = append(cells[row][col], placed{f.X, f.Y, f.Text})
	}

	out := make([][]string, len(cells))
	for i, row := range cells {
		out[i] = make([]string, len(row))
		for j, frs := range row {
			sort.SliceStable(frs, func(a, b int) bool {
				if math.Abs(frs[a].y-frs[b].y) > 2 {
					return frs[a].y > frs[b].y
				}
				return frs[a].x < frs[b].x
			})
			parts := make([]string, len(frs))
			for k, p := range frs {
				parts[k] = strings.TrimSpace(p.s)
			}
			out[i][j] = strings.Join(parts, " ")
		}
	}
	return out
}

// findBand returns the index i with v between bounds[i] and bounds[i+1].
func findBand(bounds []float64, v float64, descending bool) int {
	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := bounds[i], bounds[i+1]
		if descending {
			lo, hi = hi, lo
		}
		if v >= lo && v <= hi {
			return i
		}
	}
	return -1
}
