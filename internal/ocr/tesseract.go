package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Tesseract runs the tesseract CLI. Path overrides the $PATH lookup.
type Tesseract struct {
	Path string
	DPI  int
}

func (Tesseract) Name() string { return "tesseract" }

func (t Tesseract) binary() (string, error) {
	name := t.Path
	if name == "" {
		name = "tesseract"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	return bin, nil
}

func (t Tesseract) Check(context.Context) error {
	_, err := t.binary()
	return err
}

func (t Tesseract) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	bin, err := t.binary()
	if err != nil {
		return "", err
	}
	if lang == "" {
		lang = DefaultLang
	}
	args := []string{imagePath, "stdout", "-l", lang}
	if t.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(t.DPI))
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: tesseract: %v", ErrTimeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		msg := strings.TrimSpace(stderr.String())
		if errors.As(err, &exitErr) && strings.Contains(msg, "Failed loading language") {
			return "", fmt.Errorf("%w: tesseract language %q not installed", ErrUnavailable, lang)
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(msg, 300))
	}
	return string(out), nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
