package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toricodesthings/pdf-parse-service/internal/extractor"
	"github.com/toricodesthings/pdf-parse-service/internal/pipeline"
	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

type fakeLayer struct{ pages []string }

func (fakeLayer) Name() string { return "fake" }
func (l fakeLayer) Open(context.Context, string) (extractor.Document, error) {
	return fakeDoc(l), nil
}

type fakeDoc struct{ pages []string }

func (d fakeDoc) NumPages() int                                     { return len(d.pages) }
func (d fakeDoc) PageText(_ context.Context, p int) (string, error) { return d.pages[p-1], nil }
func (fakeDoc) Close() error                                        { return nil }

func probe(context.Context, string) (types.Metadata, error) {
	return types.Metadata{Title: "Invoice", PageCount: 2}, nil
}

func fixture(t *testing.T) (string, []pipeline.Option) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	layer := fakeLayer{pages: []string{"Item | Qty\nTea | 2", "Total | 2"}}
	return path, []pipeline.Option{pipeline.WithTextLayer(layer), pipeline.WithProber(probe)}
}

func TestRunStdout(t *testing.T) {
	path, opts := fixture(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-output", "-", "-chunk-size", "10", "-chunk-overlap", "2", path}, &stdout, &stderr, opts)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	var res types.ParseResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if res.Metadata.Title != "Invoice" || res.NumChunks < 2 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(stderr.String(), "Title: Invoice") {
		t.Errorf("summary missing:\n%s", stderr.String())
	}
}

func TestRunExportCSV(t *testing.T) {
	path, opts := fixture(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-output", out, "-export-csv", "-output-dir", dir, path}, &stdout, &stderr, opts)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("json not written: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "invoice_text.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Item,Qty\nTea,2\n") {
		t.Errorf("csv = %q", data)
	}
}

func TestRunUsageErrors(t *testing.T) {
	_, opts := fixture(t)
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), nil, &stdout, &stderr, opts); code != 2 {
		t.Errorf("no args: exit %d", code)
	}
	if code := run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.pdf")}, &stdout, &stderr, opts); code != 1 {
		t.Errorf("missing file: exit %d", code)
	}
	path, _ := fixture(t)
	if code := run(context.Background(), []string{"-chunk-size", "5", "-chunk-overlap", "5", path}, &stdout, &stderr, opts); code != 1 {
		t.Errorf("invalid chunk config: exit %d", code)
	}
}

func TestParsePages(t *testing.T) {
	got, err := parsePages("3, 1")
	if err != nil || len(got) != 2 || got[0] != 3 {
		t.Errorf("parsePages = %v, %v", got, err)
	}
	if _, err := parsePages("0"); err == nil {
		t.Error("page 0 accepted")
	}
}
