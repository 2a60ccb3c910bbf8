package tables

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

const DefaultMinCells = 4

// Filter rejects candidates that are unlikely to be real tables. It runs
// before deduplication, so identical grids that fail it (two copies of a
// yes/no grid, say) yield no table at all rather than one. Set Disabled to
// keep every non-empty grid and deduplicate only.
type Filter struct {
	MinRows, MinCols int
	MinConfidence    float64
	MaxEmptyRatio    float64
	MinDistinct      int
	Disabled         bool
}

func DefaultFilter() Filter {
	return Filter{MinRows: 2, MinCols: 2, MinConfidence: 0.3, MaxEmptyRatio: 0.6, MinDistinct: 3}
}

func (f Filter) Accept(c types.TableCandidate) bool {
	if f.Disabled {
		return len(c.Rows) > 0
	}
	rows, cols := len(c.Rows), width(c.Rows)
	if rows < f.MinRows || cols < f.MinCols {
		return false
	}
	if c.Confidence < f.MinConfidence {
		return false
	}
	total, empty := 0, 0
	distinct := map[string]struct{}{}
	for _, row := range c.Rows {
		for _, cell := range row {
			total++
			if cell == "" {
				empty++
				continue
			}
			distinct[cell] = struct{}{}
		}
	}
	if total == 0 || float64(empty)/float64(total) > f.MaxEmptyRatio {
		return false
	}
	return len(distinct) >= f.MinDistinct
}

// Reconcile merges both strategies: per page the lattice candidates win when
// any of them has at least minCells cells, otherwise the page's stream
// candidates are used.
func Reconcile(lattice, stream []types.TableCandidate, f Filter, minCells int) []types.Table {
	lat := groupByPage(normalizeAll(lattice, f))
	str := groupByPage(normalizeAll(stream, f))

	pages := map[int]struct{}{}
	for p := range lat {
		pages[p] = struct{}{}
	}
	for p := range str {
		pages[p] = struct{}{}
	}

	var chosen []types.TableCandidate
	for _, p := range sortedKeys(pages) {
		if hasNonTrivial(lat[p], minCells) {
			chosen = append(chosen, lat[p]...)
		} else {
			chosen = append(chosen, str[p]...)
		}
	}
	return assign(chosen)
}

// Finalize filters, deduplicates and numbers the candidates of a single strategy.
func Finalize(cands []types.TableCandidate, f Filter) []types.Table {
	grouped := groupByPage(normalizeAll(cands, f))
	pages := map[int]struct{}{}
	for p := range grouped {
		pages[p] = struct{}{}
	}
	var ordered []types.TableCandidate
	for _, p := range sortedKeys(pages) {
		ordered = append(ordered, grouped[p]...)
	}
	return assign(ordered)
}

// assign deduplicates per page by grid hash and hands out <page>-<ordinal> ids
// in emission order. Input must already be sorted by page.
func assign(cands []types.TableCandidate) []types.Table {
	var out []types.Table
	seen := map[int]map[[32]byte]struct{}{}
	ordinal := map[int]int{}
	for _, c := range cands {
		h := GridHash(c.Rows)
		if seen[c.Page] == nil {
			seen[c.Page] = map[[32]byte]struct{}{}
		}
		if _, dup := seen[c.Page][h]; dup {
			continue
		}
		seen[c.Page][h] = struct{}{}
		ordinal[c.Page]++
		out = append(out, types.Table{
			ID:         fmt.Sprintf("%d-%d", c.Page, ordinal[c.Page]),
			Page:       c.Page,
			Strategy:   c.Strategy,
			Rows:       c.Rows,
			Confidence: c.Confidence,
		})
	}
	return out
}

// GridHash hashes the full cell grid. Lengths are framed so that
// [["ab"],["c"]] and [["a"],["bc"]] differ.
func GridHash(rows [][]string) [32]byte {
	h := sha256.New()
	var buf [8]byte
	for _, row := range rows {
		binary.BigEndian.PutUint64(buf[:], uint64(len(row)))
		h.Write(buf[:])
		for _, cell := range row {
			binary.BigEndian.PutUint64(buf[:], uint64(len(cell)))
			h.Write(buf[:])
			h.Write([]byte(cell))
		}
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func normalizeAll(cands []types.TableCandidate, f Filter) []types.TableCandidate {
	out := make([]types.TableCandidate, 0, len(cands))
	for _, c := range cands {
		c.Rows = normalizeRows(c.Rows)
		if f.Accept(c) {
			out = append(out, c)
		}
	}
	return out
}

// normalizeRows trims cells, drops rows with no content and pads ragged rows.
func normalizeRows(rows [][]string) [][]string {
	w := width(rows)
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		clean := make([]string, w)
		blank := true
		for i, cell := range row {
			clean[i] = strings.TrimSpace(cell)
			if clean[i] != "" {
				blank = false
			}
		}
		if !blank {
			out = append(out, clean)
		}
	}
	return out
}

func hasNonTrivial(cands []types.TableCandidate, minCells int) bool {
	for _, c := range cands {
		if len(c.Rows)*width(c.Rows) >= minCells {
			return true
		}
	}
	return false
}

func groupByPage(cands []types.TableCandidate) map[int][]types.TableCandidate {
	m := map[int][]types.TableCandidate{}
	for _, c := range cands {
		m[c.Page] = append(m[c.Page], c)
	}
	return m
}

func sortedKeys(m map[int]struct{}) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func width(rows [][]string) int {
	w := 0
	for _, r := range rows {
		w = max(w, len(r))
	}
	return w
}
