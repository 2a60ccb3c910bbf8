// Package chunk windows resolved document text into overlapping, fixed-size
// character slices. Offsets and lengths count runes, not bytes.
package chunk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

var ErrInvalidConfig = errors.New("invalid chunk config")

// Validate reports whether size/overlap describe a window that always advances.
func Validate(size, overlap int) error {
	switch {
	case size <= 0:
		return fmt.Errorf("%w: chunk_size must be > 0 (got %d)", ErrInvalidConfig, size)
	case overlap < 0:
		return fmt.Errorf("%w: chunk_overlap must be >= 0 (got %d)", ErrInvalidConfig, overlap)
	case overlap >= size:
		return fmt.Errorf("%w: chunk_overlap (%d) must be < chunk_size (%d)", ErrInvalidConfig, overlap, size)
	}
	return nil
}

// Iterator yields chunks lazily. Reset restarts the sequence from offset 0.
type Iterator struct {
	text    []rune
	size    int
	overlap int
	offset  int
	index   int
}

func NewIterator(text string, size, overlap int) (*Iterator, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	return &Iterator{text: []rune(text), size: size, overlap: overlap}, nil
}

func (it *Iterator) Next() (types.Chunk, bool) {
	if it.offset >= len(it.text) {
		return types.Chunk{}, false
	}
	end := min(it.offset+it.size, len(it.text))
	c := types.Chunk{
		Index:   it.index,
		Offset:  it.offset,
		Length:  end - it.offset,
		Content: string(it.text[it.offset:end]),
	}
	it.index++
	if end == len(it.text) && len(it.text) <= it.size {
		// whole text fits in one window
		it.offset = len(it.text)
	} else {
		it.offset += it.size - it.overlap
	}
	return c, true
}

func (it *Iterator) Reset() {
	it.offset = 0
	it.index = 0
}

// Split materialises every chunk of text. Empty text yields no chunks.
func Split(text string, size, overlap int) ([]types.Chunk, error) {
	it, err := NewIterator(text, size, overlap)
	if err != nil {
		return nil, err
	}
	out := make([]types.Chunk, 0, estimate(len(it.text), size, overlap))
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		out = append(out, c)
	}
	return out, nil
}

// Reconstruct stitches chunks back into the text they were cut from.
func Reconstruct(chunks []types.Chunk) string {
	var b strings.Builder
	covered := 0
	for _, c := range chunks {
		r := []rune(c.Content)
		skip := covered - c.Offset
		if skip < 0 {
			skip = 0
		}
		if skip < len(r) {
			b.WriteString(string(r[skip:]))
		}
		covered = max(covered, c.Offset+len(r))
	}
	return b.String()
}

func estimate(n, size, overlap int) int {
	if n == 0 {
		return 0
	}
	step := size - overlap
	return n/step + 1
}
