// Package extractor reads the embedded text layer of a PDF one page at a time.
package extractor

import (
	"context"
	"errors"
	"fmt"
)

var ErrPageRange = errors.New("page out of range")

// Document is an open handle on one PDF. Handles are not safe for concurrent
// use; each worker opens its own.
type Document interface {
	NumPages() int
	// PageText returns the embedded text of a 1-based page.
	PageText(ctx context.Context, page int) (string, error)
	Close() error
}

type TextLayer interface {
	Name() string
	Open(ctx context.Context, path string) (Document, error)
}

// New returns the text layer registered under name ("tabula", "native" or
// "poppler"). The empty name is tabula.
func New(name string, opts PopplerOptions) (TextLayer, error) {
	switch name {
	case "", "tabula":
		return Tabula{}, nil
	case "native":
		return Native{}, nil
	case "poppler":
		return NewPoppler(opts), nil
	}
	return nil, fmt.Errorf("unknown text layer %q", name)
}

func checkPage(page, n int) error {
	if page < 1 || page > n {
		return fmt.Errorf("%w: %d of %d", ErrPageRange, page, n)
	}
	return nil
}
