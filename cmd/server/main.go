package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/pdf-parse-service/internal/config"
	"github.com/toricodesthings/pdf-parse-service/internal/image"
	"github.com/toricodesthings/pdf-parse-service/internal/ocr"
	"github.com/toricodesthings/pdf-parse-service/internal/pipeline"
	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

// Parser is implemented by *pipeline.Pipeline.
type Parser interface {
	Parse(ctx context.Context, path string, o types.ParseOptions) (*types.ParseResult, error)
	Preview(ctx context.Context, path string, o types.ParseOptions) types.PreviewResult
}

type server struct {
	cfg    config.Config
	pipe   Parser
	images image.Recognizer
	log    *slog.Logger

	requestSem *semaphore.Weighted
	ocrSem     *semaphore.Weighted

	// Per-IP rate limiters, reset every CleanupInterval.
	limiters atomic.Pointer[sync.Map]

	metrics serverMetrics
}

type serverMetrics struct {
	totalRequests atomic.Int64
	activeReqs    atomic.Int64
	failures      atomic.Int64
}

func newServer(cfg config.Config, pipe Parser, images image.Recognizer, log *slog.Logger) *server {
	s := &server{
		cfg:        cfg,
		pipe:       pipe,
		images:     images,
		log:        log,
		requestSem: semaphore.NewWeighted(cfg.Server.MaxConcurrentRequests),
		ocrSem:     semaphore.NewWeighted(cfg.Server.MaxOCRConcurrent),
	}
	s.limiters.Store(&sync.Map{})
	return s
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.withLogging)
	r.Use(s.withRecovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Internal-Auth"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "not_found", "No such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.With(s.withInternalAuth).Get("/metrics", s.handleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(s.withInternalAuth)
		r.Use(s.withRateLimit)
		r.Use(s.withConcurrencyLimit)

		r.Post("/pdf/parse", s.handleParse)
		r.Post("/pdf/upload", s.handleUpload)
		r.Post("/pdf/preview", s.handlePreview)
		r.Post("/pdf/tables/html", s.handleTablesHTML)
		r.Post("/image/extract", s.handleImageExtract)
	})
	return r
}

func main() {
	cfg, err := config.Load()
	log := cfg.NewLogger(os.Stderr)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	pc := cfg.Pipeline
	pc.Logger = log
	proc := ocr.NewProcessor(pc.OCROptions())
	pipe := pipeline.New(pc, pipeline.WithOCR(proc))

	if err := proc.Available(context.Background()); err != nil {
		log.Warn("ocr backend unavailable, scanned pages will keep their text layer", "error", err)
	}

	s := newServer(cfg, pipe, proc, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	go s.cleanupRateLimiters(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("pdfparse listening",
		"addr", srv.Addr,
		"max_concurrent", cfg.Server.MaxConcurrentRequests,
		"max_ocr", cfg.Server.MaxOCRConcurrent,
		"ocr_engine", pc.OCREngine,
		"text_layer", pc.TextLayer,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server", "error", err)
		os.Exit(1)
	}
}

func (s *server) cleanupRateLimiters(ctx context.Context) {
	interval := s.cfg.Server.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		s.log.Info("stats",
			"active", s.metrics.activeReqs.Load(),
			"total", s.metrics.totalRequests.Load(),
			"goroutines", runtime.NumGoroutine(),
			"mem_mb", m.Alloc/(1<<20),
		)
		s.limiters.Store(&sync.Map{})
	}
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
