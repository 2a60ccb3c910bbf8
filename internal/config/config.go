package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/toricodesthings/pdf-parse-service/internal/pipeline"
)

// Config is built in three layers: compiled defaults, an optional YAML file
// (CONFIG_FILE), then environment variables, each overriding the last.
type Config struct {
	Server   Server          `yaml:"server"`
	Pipeline pipeline.Config `yaml:"pipeline"`
	LogLevel string          `yaml:"log_level"`
}

type Server struct {
	Port string `yaml:"port"`

	// Secrets never come from the YAML file.
	InternalSharedSecret string `yaml:"-"`

	// Limits
	MaxJSONBodyBytes int64 `yaml:"max_json_body_bytes"`
	MaxPDFBytes      int64 `yaml:"max_pdf_bytes"`
	MaxImageBytes    int64 `yaml:"max_image_bytes"`
	MaxHeaderBytes   int   `yaml:"max_header_bytes"`

	// Concurrency
	MaxConcurrentRequests int64 `yaml:"max_concurrent_requests"`
	MaxOCRConcurrent      int64 `yaml:"max_ocr_concurrent"`

	// Server timeouts
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`

	// Request timeouts
	ParseTimeout        time.Duration `yaml:"parse_timeout"`
	PreviewTimeout      time.Duration `yaml:"preview_timeout"`
	ImageExtractTimeout time.Duration `yaml:"image_extract_timeout"`
	DownloadTimeout     time.Duration `yaml:"download_timeout"`

	// rate limiting (per IP)
	RateLimitEvery time.Duration `yaml:"rate_limit_every"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`

	// housekeeping
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// health
	HealthDegradeRatio float64 `yaml:"health_degrade_ratio"`

	CORSOrigins []string `yaml:"cors_origins"`
}

func Default() Config {
	return Config{
		Server: Server{
			Port:                  "8080",
			MaxJSONBodyBytes:      2 << 20,
			MaxPDFBytes:           200 << 20,
			MaxImageBytes:         20 << 20,
			MaxHeaderBytes:        1 << 20,
			MaxConcurrentRequests: 15,
			MaxOCRConcurrent:      3,
			ReadHeaderTimeout:     10 * time.Second,
			ReadTimeout:           30 * time.Second,
			WriteTimeout:          300 * time.Second,
			IdleTimeout:           60 * time.Second,
			ParseTimeout:          280 * time.Second,
			PreviewTimeout:        60 * time.Second,
			ImageExtractTimeout:   120 * time.Second,
			DownloadTimeout:       25 * time.Second,
			RateLimitEvery:        600 * time.Millisecond,
			RateLimitBurst:        20,
			CleanupInterval:       5 * time.Minute,
			HealthDegradeRatio:    0.9,
			CORSOrigins:           []string{"*"},
		},
		Pipeline: pipeline.DefaultConfig(),
		LogLevel: "info",
	}
}

// Load reads .env (if present), the YAML file named by CONFIG_FILE, and the
// environment.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()
	return LoadFile(envStr("CONFIG_FILE", ""))
}

// LoadFile is Load without the .env step, reading path instead of CONFIG_FILE.
// An empty path skips the file layer.
func LoadFile(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Port = envStr("PORT", s.Port)
	s.InternalSharedSecret = envStr("INTERNAL_SHARED_SECRET", s.InternalSharedSecret)

	s.MaxJSONBodyBytes = int64(envInt("MAX_JSON_BODY_BYTES", int(s.MaxJSONBodyBytes)))
	s.MaxPDFBytes = int64(envInt("MAX_PDF_BYTES", int(s.MaxPDFBytes)))
	s.MaxImageBytes = int64(envInt("MAX_IMAGE_BYTES", int(s.MaxImageBytes)))
	s.MaxHeaderBytes = envInt("MAX_HEADER_BYTES", s.MaxHeaderBytes)

	s.MaxConcurrentRequests = int64(envInt("MAX_CONCURRENT_REQUESTS", int(s.MaxConcurrentRequests)))
	s.MaxOCRConcurrent = int64(envInt("MAX_OCR_CONCURRENT", int(s.MaxOCRConcurrent)))

	s.ReadHeaderTimeout = envDur("READ_HEADER_TIMEOUT", s.ReadHeaderTimeout)
	s.ReadTimeout = envDur("READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = envDur("WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = envDur("IDLE_TIMEOUT", s.IdleTimeout)

	s.ParseTimeout = envDur("PARSE_TIMEOUT", s.ParseTimeout)
	s.PreviewTimeout = envDur("PREVIEW_TIMEOUT", s.PreviewTimeout)
	s.ImageExtractTimeout = envDur("IMAGE_EXTRACT_TIMEOUT", s.ImageExtractTimeout)
	s.DownloadTimeout = envDur("DOWNLOAD_TIMEOUT", s.DownloadTimeout)

	s.RateLimitEvery = envDur("RATE_LIMIT_EVERY", s.RateLimitEvery)
	s.RateLimitBurst = envInt("RATE_LIMIT_BURST", s.RateLimitBurst)
	s.CleanupInterval = envDur("CLEANUP_INTERVAL", s.CleanupInterval)
	s.HealthDegradeRatio = envFloat("HEALTH_DEGRADE_RATIO", s.HealthDegradeRatio)
	s.CORSOrigins = envList("CORS_ORIGINS", s.CORSOrigins)

	p := &c.Pipeline
	p.ChunkSize = envInt("CHUNK_SIZE", p.ChunkSize)
	p.ChunkOverlap = envNonNeg("CHUNK_OVERLAP", p.ChunkOverlap)
	p.UseOCR = envBool("USE_OCR", p.UseOCR)
	p.ForceOCR = envBool("FORCE_OCR", p.ForceOCR)
	p.TesseractPath = envStr("TESSERACT_PATH", p.TesseractPath)
	p.TesseractLang = envStr("TESSERACT_LANG", p.TesseractLang)
	p.ExtractTables = envBool("EXTRACT_TABLES", p.ExtractTables)
	p.TableFlavour = envStr("TABLE_FLAVOUR", p.TableFlavour)
	p.OCREngine = envStr("OCR_ENGINE", p.OCREngine)
	p.Rasterizer = envStr("RASTERIZER", p.Rasterizer)
	p.OCRDPI = envInt("OCR_DPI", p.OCRDPI)
	p.OCRTimeout = envDur("OCR_TIMEOUT", p.OCRTimeout)
	p.MistralAPIKey = envStr("MISTRAL_API_KEY", p.MistralAPIKey)
	p.MistralModel = envStr("MISTRAL_OCR_MODEL", p.MistralModel)
	p.TextLayer = envStr("TEXT_LAYER", p.TextLayer)
	p.MaxPageWorkers = envInt("MAX_PAGE_WORKERS", p.MaxPageWorkers)
	p.PageSeparator = envStr("PAGE_SEPARATOR", p.PageSeparator)
	p.MinTextChars = envInt("MIN_TEXT_CHARS", p.MinTextChars)
	p.MinWords = envInt("MIN_WORDS", p.MinWords)
	p.TempDir = envStr("TEMP_DIR", p.TempDir)

	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
}

// Validate checks the pipeline settings.
func (c Config) Validate() error {
	return c.Pipeline.Validate()
}

// ValidateServer additionally requires what the HTTP server needs.
func (c Config) ValidateServer() error {
	var errs []error
	if len(strings.TrimSpace(c.Server.InternalSharedSecret)) < 32 {
		errs = append(errs, errors.New("INTERNAL_SHARED_SECRET must be at least 32 characters"))
	}
	if c.Server.MaxConcurrentRequests < c.Server.MaxOCRConcurrent {
		errs = append(errs, errors.New("MAX_OCR_CONCURRENT exceeds MAX_CONCURRENT_REQUESTS"))
	}
	errs = append(errs, c.Validate())
	return errors.Join(errs...)
}

// NewLogger returns a JSON slog logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(c.LogLevel)}))
}

func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envNonNeg(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
