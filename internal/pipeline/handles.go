package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/toricodesthings/pdf-parse-service/internal/extractor"
)

// handlePool hands each worker a document handle of its own. Handles are
// opened lazily, reused once returned, and all closed together.
type handlePool struct {
	layer extractor.TextLayer
	path  string

	mu   sync.Mutex
	free []extractor.Document
	all  []extractor.Document
}

func newHandlePool(layer extractor.TextLayer, path string, first extractor.Document) *handlePool {
	return &handlePool{
		layer: layer,
		path:  path,
		free:  []extractor.Document{first},
		all:   []extractor.Document{first},
	}
}

// get never fails: a handle that cannot be opened turns into one whose pages
// all fail, which the reconciler records as text-layer warnings.
func (h *handlePool) get(ctx context.Context) extractor.Document {
	h.mu.Lock()
	if n := len(h.free); n > 0 {
		d := h.free[n-1]
		h.free = h.free[:n-1]
		h.mu.Unlock()
		return d
	}
	h.mu.Unlock()

	d, err := h.layer.Open(ctx, h.path)
	if err != nil {
		return brokenDoc{err: fmt.Errorf("reopen %s: %w", h.layer.Name(), err)}
	}
	h.mu.Lock()
	h.all = append(h.all, d)
	h.mu.Unlock()
	return d
}

func (h *handlePool) put(d extractor.Document) {
	if _, ok := d.(brokenDoc); ok {
		return
	}
	h.mu.Lock()
	h.free = append(h.free, d)
	h.mu.Unlock()
}

func (h *handlePool) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, d := range h.all {
		_ = d.Close()
	}
	h.all, h.free = nil, nil
}

type brokenDoc struct{ err error }

func (brokenDoc) NumPages() int                                   { return 0 }
func (b brokenDoc) PageText(context.Context, int) (string, error) { return "", b.err }
func (brokenDoc) Close() error                                    { return nil }
