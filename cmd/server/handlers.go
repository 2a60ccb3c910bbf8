package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/toricodesthings/pdf-parse-service/internal/chunk"
	"github.com/toricodesthings/pdf-parse-service/internal/docinfo"
	"github.com/toricodesthings/pdf-parse-service/internal/image"
	"github.com/toricodesthings/pdf-parse-service/internal/ocr"
	"github.com/toricodesthings/pdf-parse-service/internal/pipeline"
	"github.com/toricodesthings/pdf-parse-service/internal/render"
	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

const multipartMemory = 32 << 20

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active := s.metrics.activeReqs.Load()
	status := "healthy"
	code := http.StatusOK

	ratio := s.cfg.Server.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if active >= int64(float64(s.cfg.Server.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": "1.0.0",
	})
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests": s.metrics.activeReqs.Load(),
		"totalRequests":  s.metrics.totalRequests.Load(),
		"failedRequests": s.metrics.failures.Load(),
		"goroutines":     runtime.NumGoroutine(),
		"memAllocMB":     m.Alloc / (1 << 20),
		"memSysMB":       m.Sys / (1 << 20),
	})
}

// downloadRequest decodes a presigned-URL request and fetches the PDF. On
// failure it has already written the response.
func (s *server) downloadRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (types.ParseRequest, string, func(), bool) {
	req, err := parseJSON[types.ParseRequest](r, s.cfg.Server.MaxJSONBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return req, "", nil, false
	}
	if err := validatePresignedURL(req.PresignedURL); err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return req, "", nil, false
	}
	path, cleanup, err := downloadPDFToTemp(ctx, req.PresignedURL, s.cfg.Server.MaxPDFBytes, s.cfg.Server.DownloadTimeout)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "download_failed", sanitizeError(err))
		return req, "", nil, false
	}
	return req, path, cleanup, true
}

func (s *server) handleParse(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.ParseTimeout)
	defer cancel()

	req, path, cleanup, ok := s.downloadRequest(ctx, w, r)
	if !ok {
		return
	}
	defer cleanup()

	if res, ok := s.parse(ctx, w, path, req.Options); ok {
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.ParseTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxPDFBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var opts types.ParseOptions
	if raw := strings.TrimSpace(r.FormValue("options")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			writeErr(w, http.StatusBadRequest, "bad_request", "options: "+sanitizeError(err))
			return
		}
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", "multipart field \"file\" required")
		return
	}
	defer file.Close()

	path, cleanup, err := saveUpload(file, "doc.pdf", s.cfg.Server.MaxPDFBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "upload_failed", sanitizeError(err))
		return
	}
	defer cleanup()
	if err := docinfo.CheckMagic(path); err != nil {
		writeErr(w, http.StatusBadRequest, "not_pdf", sanitizeError(err))
		return
	}

	if res, ok := s.parse(ctx, w, path, opts); ok {
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.PreviewTimeout)
	defer cancel()

	req, path, cleanup, ok := s.downloadRequest(ctx, w, r)
	if !ok {
		return
	}
	defer cleanup()

	writeJSON(w, http.StatusOK, s.pipe.Preview(ctx, path, req.Options))
}

func (s *server) handleTablesHTML(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.ParseTimeout)
	defer cancel()

	req, path, cleanup, ok := s.downloadRequest(ctx, w, r)
	if !ok {
		return
	}
	defer cleanup()

	opts := req.Options
	opts.ExtractTables = true
	res, ok := s.parse(ctx, w, path, opts)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(render.Tables(res.Tables)))
}

func (s *server) handleImageExtract(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.ImageExtractTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxImageBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", "multipart field \"file\" required")
		return
	}
	defer file.Close()
	if !image.Supported(hdr.Filename) {
		writeErr(w, http.StatusUnsupportedMediaType, "unsupported_image", "Unsupported image type")
		return
	}

	// OCR capacity gating
	if err := s.ocrSem.Acquire(ctx, 1); err != nil {
		writeErr(w, http.StatusServiceUnavailable, "ocr_capacity", "OCR at capacity")
		return
	}
	defer s.ocrSem.Release(1)

	path, cleanup, err := saveUpload(file, "image"+strings.ToLower(filepath.Ext(hdr.Filename)), s.cfg.Server.MaxImageBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "upload_failed", sanitizeError(err))
		return
	}
	defer cleanup()

	result, err := image.ProcessImageOCR(ctx, s.images, path, hdr.Filename)
	result.Engine = s.cfg.Pipeline.OCREngine
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, ocr.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, result)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, result)
	}
}

// parse runs the pipeline under the OCR gate when the request may OCR. On
// failure the error response has been written.
func (s *server) parse(ctx context.Context, w http.ResponseWriter, path string, o types.ParseOptions) (*types.ParseResult, bool) {
	if s.mayOCR(o) {
		if err := s.ocrSem.Acquire(ctx, 1); err != nil {
			writeErr(w, http.StatusServiceUnavailable, "ocr_capacity", "OCR at capacity")
			return nil, false
		}
		defer s.ocrSem.Release(1)
	}

	res, err := s.pipe.Parse(ctx, path, o)
	if err != nil {
		status, code := parseErrorStatus(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("parse failed", "error", err)
		}
		writeErr(w, status, code, sanitizeError(err))
		return nil, false
	}
	return res, true
}

func (s *server) mayOCR(o types.ParseOptions) bool {
	return !o.MetadataOnly && (o.UseOCR || o.ForceOCR || s.cfg.Pipeline.UseOCR || s.cfg.Pipeline.ForceOCR)
}

func parseErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chunk.ErrInvalidConfig), errors.Is(err, pipeline.ErrInvalidOptions):
		return http.StatusBadRequest, "invalid_options"
	case errors.Is(err, pipeline.ErrDocumentUnreadable):
		return http.StatusUnprocessableEntity, "document_unreadable"
	case errors.Is(err, pipeline.ErrUnsupportedDocument):
		return http.StatusUnprocessableEntity, "unsupported_document"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "cancelled"
	}
	return http.StatusInternalServerError, "internal_error"
}

func validatePresignedURL(raw string) error {
	url := strings.TrimSpace(raw)
	if url == "" {
		return fmt.Errorf("presignedUrl required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("presignedUrl must be http/https")
	}
	if len(url) > 2048 {
		return fmt.Errorf("presignedUrl too long")
	}
	return nil
}
