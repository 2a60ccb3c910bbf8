package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/toricodesthings/pdf-parse-service/internal/chunk"
	"github.com/toricodesthings/pdf-parse-service/internal/config"
	"github.com/toricodesthings/pdf-parse-service/internal/pipeline"
	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

const secret = "0123456789abcdef0123456789abcdef"

type fakeParser struct {
	res  *types.ParseResult
	err  error
	last types.ParseOptions
}

func (f *fakeParser) Parse(_ context.Context, _ string, o types.ParseOptions) (*types.ParseResult, error) {
	f.last = o
	return f.res, f.err
}

func (f *fakeParser) Preview(context.Context, string, types.ParseOptions) types.PreviewResult {
	return types.PreviewResult{Success: true, TotalPages: 1}
}

type fakeRecognizer struct{ text string }

func (f fakeRecognizer) ImageText(context.Context, string) (string, error) { return f.text, nil }

func testServer(t *testing.T, p Parser) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.Server.InternalSharedSecret = secret
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newServer(cfg, p, fakeRecognizer{text: "Hello\u200b world"}, log).routes()
}

func pdfBytes() []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("%comment\n"), 20)...)
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(content)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	if auth {
		req.Header.Set("X-Internal-Auth", secret)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, testServer(t, &fakeParser{}), httptest.NewRequest(http.MethodGet, "/health", nil), false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
}

func TestAuthRequired(t *testing.T) {
	h := testServer(t, &fakeParser{})
	for _, path := range []string{"/metrics", "/pdf/parse", "/pdf/upload"} {
		method := http.MethodPost
		if path == "/metrics" {
			method = http.MethodGet
		}
		rec := do(t, h, httptest.NewRequest(method, path, nil), false)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without auth = %d", path, rec.Code)
		}
	}
}

func TestUpload(t *testing.T) {
	fp := &fakeParser{res: &types.ParseResult{
		Text:      "hello",
		Chunks:    []types.Chunk{{Content: "hello", Length: 5}},
		NumChunks: 1,
		Stage:     types.StageComplete,
	}}
	h := testServer(t, fp)

	body, ct := multipartBody(t, "report.pdf", pdfBytes(), map[string]string{"options": `{"chunkSize":300,"chunkOverlap":30}`})
	req := httptest.NewRequest(http.MethodPost, "/pdf/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, h, req, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload = %d %s", rec.Code, rec.Body)
	}
	var res types.ParseResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.NumChunks != 1 || res.Text != "hello" {
		t.Errorf("result = %+v", res)
	}
	if fp.last.ChunkSize != 300 || fp.last.ChunkOverlap != 30 {
		t.Errorf("options = %+v", fp.last)
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	h := testServer(t, &fakeParser{})
	body, ct := multipartBody(t, "x.pdf", []byte("<Error>AccessDenied</Error>"), nil)
	req := httptest.NewRequest(http.MethodPost, "/pdf/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, h, req, true)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "not_pdf") {
		t.Errorf("upload = %d %s", rec.Code, rec.Body)
	}
}

func TestParseErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: size 0", chunk.ErrInvalidConfig), http.StatusBadRequest},
		{fmt.Errorf("%w: doc.pdf", pipeline.ErrDocumentUnreadable), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: no pages", pipeline.ErrUnsupportedDocument), http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := parseErrorStatus(tt.err); got != tt.status {
			t.Errorf("parseErrorStatus(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}

func TestParseFromPresignedURL(t *testing.T) {
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdfBytes())
	}))
	defer store.Close()

	fp := &fakeParser{res: &types.ParseResult{Tables: []types.Table{
		{ID: "1-1", Page: 1, Strategy: types.Lattice, Rows: [][]string{{"a", "b"}, {"1", "2"}}},
	}}}
	h := testServer(t, fp)
	body := fmt.Sprintf(`{"presignedUrl":%q,"options":{"tableFlavour":"both"}}`, store.URL+"/doc.pdf")

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/pdf/tables/html", strings.NewReader(body)), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("tables/html = %d %s", rec.Code, rec.Body)
	}
	if !fp.last.ExtractTables || fp.last.TableFlavour != "both" {
		t.Errorf("options = %+v", fp.last)
	}
	if !strings.Contains(rec.Body.String(), `data-table-id="1-1"`) {
		t.Errorf("html = %s", rec.Body)
	}

	fp.err = fmt.Errorf("%w: doc.pdf", pipeline.ErrDocumentUnreadable)
	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/pdf/parse", strings.NewReader(body)), true)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("parse of unreadable doc = %d", rec.Code)
	}
}

func TestParseRejectsBadURL(t *testing.T) {
	h := testServer(t, &fakeParser{})
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/pdf/parse", strings.NewReader(`{"presignedUrl":"file:///etc/passwd"}`)), true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestImageExtract(t *testing.T) {
	h := testServer(t, &fakeParser{})
	body, ct := multipartBody(t, "scan.PNG", []byte("\x89PNG fake"), nil)
	req := httptest.NewRequest(http.MethodPost, "/image/extract", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, h, req, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("image = %d %s", rec.Code, rec.Body)
	}
	var res types.ImageExtractionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Text != "Hello world" {
		t.Errorf("result = %+v", res)
	}

	body, ct = multipartBody(t, "notes.txt", []byte("x"), nil)
	req = httptest.NewRequest(http.MethodPost, "/image/extract", body)
	req.Header.Set("Content-Type", ct)
	if rec := do(t, h, req, true); rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("txt upload = %d", rec.Code)
	}
}
