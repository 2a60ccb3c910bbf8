package extractor

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

type PopplerOptions struct {
	PDFInfoPath      string
	PDFToTextPath    string
	PDFInfoTimeout   time.Duration
	PDFToTextTimeout time.Duration
	Layout           bool
}

// Poppler shells out to pdfinfo / pdftotext.
type Poppler struct {
	opts PopplerOptions
}

var pagesLine = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)

func NewPoppler(o PopplerOptions) Poppler {
	if o.PDFInfoPath == "" {
		o.PDFInfoPath = "pdfinfo"
	}
	if o.PDFToTextPath == "" {
		o.PDFToTextPath = "pdftotext"
	}
	if o.PDFInfoTimeout <= 0 {
		o.PDFInfoTimeout = 5 * time.Second
	}
	if o.PDFToTextTimeout <= 0 {
		o.PDFToTextTimeout = 10 * time.Second
	}
	return Poppler{opts: o}
}

func (Poppler) Name() string { return "poppler" }

func (p Poppler) Open(ctx context.Context, path string) (Document, error) {
	n, err := p.PageCount(ctx, path)
	if err != nil {
		return nil, err
	}
	return &popplerDoc{p: p, path: path, pages: n}, nil
}

func (p Poppler) PageCount(ctx context.Context, path string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.PDFInfoTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.opts.PDFInfoPath, path).Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	m := pagesLine.FindStringSubmatch(string(out))
	if len(m) != 2 {
		return 0, fmt.Errorf("pdfinfo: pages not found")
	}
	return strconv.Atoi(m[1])
}

func (p Poppler) TextForPage(ctx context.Context, path string, page int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.PDFToTextTimeout)
	defer cancel()

	args := []string{"-f", strconv.Itoa(page), "-l", strconv.Itoa(page)}
	if p.opts.Layout {
		args = append(args, "-layout")
	}
	args = append(args, path, "-")
	out, err := exec.CommandContext(ctx, p.opts.PDFToTextPath, args...).Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext page %d: %w", page, err)
	}
	return string(out), nil
}

type popplerDoc struct {
	p     Poppler
	path  string
	pages int
}

func (d *popplerDoc) NumPages() int { return d.pages }

func (d *popplerDoc) PageText(ctx context.Context, page int) (string, error) {
	if err := checkPage(page, d.pages); err != nil {
		return "", err
	}
	return d.p.TextForPage(ctx, d.path, page)
}

func (d *popplerDoc) Close() error { return nil }
