// Package tables detects tables with two independent strategies and
// reconciles their candidates into one deduplicated set per document.
package tables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

var ErrBackendUnavailable = errors.New("table backend unavailable")

type Flavour string

const (
	FlavourLattice Flavour = "lattice"
	FlavourStream  Flavour = "stream"
	FlavourBoth    Flavour = "both"
)

func ParseFlavour(s string) (Flavour, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lattice":
		return FlavourLattice, nil
	case "stream":
		return FlavourStream, nil
	case "both", "reconcile", "auto":
		return FlavourBoth, nil
	}
	return "", fmt.Errorf("unknown table flavour %q (want lattice, stream or both)", s)
}

func (f Flavour) strategies() []types.Strategy {
	switch f {
	case FlavourStream:
		return []types.Strategy{types.Stream}
	case FlavourBoth:
		return []types.Strategy{types.Lattice, types.Stream}
	}
	return []types.Strategy{types.Lattice}
}

// Backend runs one detection strategy over every page of a document. Each call
// opens its own document handle.
type Backend interface {
	Strategy() types.Strategy
	Extract(ctx context.Context, path string) ([]types.TableCandidate, error)
}

type Extractor struct {
	Backends map[types.Strategy]Backend
	Filter   Filter
	// MinCells is the cell count a lattice table needs to shadow stream results.
	MinCells int
	Logger   *slog.Logger
}

// NewExtractor returns an extractor backed by the tabula lattice and stream detectors.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		Backends: map[types.Strategy]Backend{
			types.Lattice: Lattice{},
			types.Stream:  Stream{},
		},
		Filter:   DefaultFilter(),
		MinCells: DefaultMinCells,
		Logger:   logger,
	}
}

// Extract runs the strategies selected by flavour concurrently and reconciles
// the results. Backend failures never abort: they come back as warnings.
func (e *Extractor) Extract(ctx context.Context, path string, flavour Flavour) ([]types.Table, []types.Warning, error) {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}
	strategies := flavour.strategies()
	results := make([][]types.TableCandidate, len(strategies))
	errs := make([]error, len(strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		b, ok := e.Backends[s]
		if !ok || b == nil {
			errs[i] = fmt.Errorf("%w: %s", ErrBackendUnavailable, s)
			continue
		}
		g.Go(func() error {
			results[i], errs[i] = b.Extract(gctx, path)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var warnings []types.Warning
	byStrategy := map[types.Strategy][]types.TableCandidate{}
	for i, s := range strategies {
		if err := errs[i]; err != nil {
			code := types.WarnTableFailed
			if errors.Is(err, ErrBackendUnavailable) {
				code = types.WarnTableUnavailable
			}
			log.Warn("table backend failed", "strategy", s, "error", err)
			warnings = append(warnings, types.Warning{Code: code, Message: err.Error()})
		}
		byStrategy[s] = results[i]
	}

	if flavour != FlavourBoth {
		return Finalize(byStrategy[strategies[0]], e.Filter), warnings, nil
	}
	minCells := e.MinCells
	if minCells <= 0 {
		minCells = DefaultMinCells
	}
	return Reconcile(byStrategy[types.Lattice], byStrategy[types.Stream], e.Filter, minCells), warnings, nil
}
