package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/toricodesthings/pdf-parse-service/internal/docinfo"
)

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func parseJSON[T any](r *http.Request, limit int64) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&out); err != nil {
		return out, err
	}

	// Ensure there's nothing else after the first JSON value
	if err := dec.Decode(new(any)); err != io.EOF {
		if err == nil {
			return out, fmt.Errorf("unexpected trailing data")
		}
		return out, err
	}

	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// requestDir creates a private per-request directory named after a fresh uuid.
func requestDir() (string, func(), error) {
	dir := filepath.Join(os.TempDir(), "pdfparse-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", nil, fmt.Errorf("temp dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// saveUpload copies at most maxBytes of src into a new request directory.
func saveUpload(src io.Reader, name string, maxBytes int64) (path string, cleanup func(), err error) {
	dir, cleanup, err := requestDir()
	if err != nil {
		return "", nil, err
	}
	path = filepath.Join(dir, name)
	n, err := copyLimited(path, src, maxBytes)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if n == 0 {
		cleanup()
		return "", nil, fmt.Errorf("empty upload")
	}
	return path, cleanup, nil
}

func copyLimited(path string, src io.Reader, maxBytes int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}
	defer f.Close()

	lr := &io.LimitedReader{R: src, N: maxBytes + 1}
	n, err := io.Copy(f, lr)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	if n > maxBytes {
		return n, fmt.Errorf("file exceeds %dMB limit", maxBytes/(1<<20))
	}
	return n, nil
}

var downloadClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

func downloadPDFToTemp(ctx context.Context, url string, maxBytes int64, timeout time.Duration) (path string, cleanup func(), err error) {
	dir, cleanup, err := requestDir()
	if err != nil {
		return "", nil, err
	}
	outPath := filepath.Join(dir, "doc.pdf")

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download: %w", err)
	}
	req.Header.Set("User-Agent", "pdfparse/1.0")

	resp, err := downloadClient.Do(req)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		cleanup()
		return "", nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "pdf") && !strings.Contains(ct, "octet-stream") {
		cleanup()
		return "", nil, fmt.Errorf("invalid content-type: %s", ct)
	}

	n, err := copyLimited(outPath, resp.Body, maxBytes)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if n < 100 {
		cleanup()
		return "", nil, fmt.Errorf("PDF too small (likely invalid)")
	}

	// catches object-store XML errors and HTML pages served in place of the PDF
	if err := docinfo.CheckMagic(outPath); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: presigned URL may be expired or invalid", err)
	}

	return outPath, cleanup, nil
}
