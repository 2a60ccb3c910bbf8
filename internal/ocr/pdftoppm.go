package ocr

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Pdftoppm rasterises with poppler's pdftoppm.
type Pdftoppm struct {
	Path string
}

func (Pdftoppm) Name() string { return "pdftoppm" }

func (r Pdftoppm) binary() (string, error) {
	name := r.Path
	if name == "" {
		name = "pdftoppm"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	return bin, nil
}

func (r Pdftoppm) Check(context.Context) error {
	_, err := r.binary()
	return err
}

func (r Pdftoppm) Rasterize(ctx context.Context, pdfPath string, page, dpi int, dir string) (string, error) {
	bin, err := r.binary()
	if err != nil {
		return "", err
	}
	prefix := filepath.Join(dir, "page")
	p := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, bin,
		"-r", strconv.Itoa(dpi),
		"-f", p,
		"-l", p,
		"-png",
		"-singlefile",
		pdfPath,
		prefix,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: pdftoppm: %v", ErrTimeout, ctx.Err())
		}
		return "", fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(out), 300))
	}
	return prefix + ".png", nil
}
