// Package export writes extracted tables and text to CSV files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

// WriteError reports a single file that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// TableFileName is <base>_table_<id>.csv.
func TableFileName(base, id string) string {
	return fmt.Sprintf("%s_table_%s.csv", base, id)
}

// Tables writes one CSV per table into dir. A failing file does not stop the
// others: the paths that were written come back together with the joined
// *WriteError values.
func Tables(tables []types.Table, dir, base string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &WriteError{Path: dir, Err: err}
	}
	var (
		paths []string
		errs  []error
	)
	for _, t := range tables {
		path := filepath.Join(dir, TableFileName(base, t.ID))
		if err := writeCSV(path, t.Rows, ','); err != nil {
			errs = append(errs, &WriteError{Path: path, Err: err})
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

var delimiters = []rune{',', '\t', '|', ';'}

var multiSpace = regexp.MustCompile(` {2,}`)

// Text writes text as <base>_text.csv, guessing its column structure: the
// most frequent of , \t | ; splits fields, falling back to runs of two or more
// spaces when none occurs.
func Text(text, dir, base string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &WriteError{Path: dir, Err: err}
	}
	path := filepath.Join(dir, base+"_text.csv")
	if err := writeCSV(path, SplitText(text), ','); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	return path, nil
}

func SplitText(text string) [][]string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	best, bestCount := ',', 0
	for _, d := range delimiters {
		n := 0
		for _, l := range lines {
			n += strings.Count(l, string(d))
		}
		if n > bestCount {
			best, bestCount = d, n
		}
	}

	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		var parts []string
		if bestCount == 0 {
			parts = multiSpace.Split(l, -1)
		} else {
			parts = strings.Split(l, string(best))
		}
		row := make([]string, 0, len(parts))
		for _, p := range parts {
			row = append(row, strings.TrimSpace(p))
		}
		rows = append(rows, row)
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	for i, r := range rows {
		for len(r) < width {
			r = append(r, "")
		}
		rows[i] = r
	}
	return rows
}

func writeCSV(path string, rows [][]string, comma rune) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Comma = comma
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
