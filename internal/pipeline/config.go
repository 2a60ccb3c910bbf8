package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/toricodesthings/pdf-parse-service/internal/chunk"
	"github.com/toricodesthings/pdf-parse-service/internal/ocr"
	"github.com/toricodesthings/pdf-parse-service/internal/tables"
)

// Config is threaded through New; there are no process-wide defaults beyond
// the constants below.
type Config struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	UseOCR        bool   `yaml:"use_ocr"`
	ForceOCR      bool   `yaml:"force_ocr"`
	TesseractPath string `yaml:"tesseract_path"`
	TesseractLang string `yaml:"tesseract_lang"`
	ExtractTables bool   `yaml:"extract_tables"`
	TableFlavour  string `yaml:"table_flavour"`

	OCREngine     string        `yaml:"ocr_engine"`
	Rasterizer    string        `yaml:"rasterizer"`
	OCRDPI        int           `yaml:"ocr_dpi"`
	OCRTimeout    time.Duration `yaml:"ocr_timeout"`
	MistralAPIKey string        `yaml:"-"`
	MistralModel  string        `yaml:"mistral_model"`

	TextLayer      string `yaml:"text_layer"`
	MaxPageWorkers int    `yaml:"max_page_workers"`
	PageSeparator  string `yaml:"page_separator"` // inserted verbatim between cleaned pages
	MinTextChars   int    `yaml:"min_text_chars"`
	MinWords       int    `yaml:"min_words"`
	TempDir        string `yaml:"temp_dir"`

	Logger *slog.Logger `yaml:"-"`
}

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

func DefaultConfig() Config {
	return Config{
		ChunkSize:     DefaultChunkSize,
		ChunkOverlap:  DefaultChunkOverlap,
		TesseractLang: "eng",
		TableFlavour:  string(tables.FlavourLattice),
		OCREngine:     "tesseract",
		Rasterizer:    "pdftoppm",
		OCRDPI:        300,
		OCRTimeout:    60 * time.Second,
		TextLayer:     "tabula",
		PageSeparator: "\n",
		MinTextChars:  1,
		MinWords:      10,
	}
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.ChunkSize == 0 {
		c.ChunkSize = d.ChunkSize
		if c.ChunkOverlap == 0 {
			c.ChunkOverlap = d.ChunkOverlap
		}
	}
	if c.TesseractLang == "" {
		c.TesseractLang = d.TesseractLang
	}
	if c.TableFlavour == "" {
		c.TableFlavour = d.TableFlavour
	}
	if c.OCRDPI <= 0 {
		c.OCRDPI = d.OCRDPI
	}
	if c.OCRTimeout <= 0 {
		c.OCRTimeout = d.OCRTimeout
	}
	if c.PageSeparator == "" {
		c.PageSeparator = d.PageSeparator
	}
	if c.MinTextChars <= 0 {
		c.MinTextChars = d.MinTextChars
	}
	if c.MinWords <= 0 {
		c.MinWords = d.MinWords
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate rejects configurations that could never run.
func (c Config) Validate() error {
	if err := chunk.Validate(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if _, err := tables.ParseFlavour(c.TableFlavour); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if c.MaxPageWorkers < 0 {
		return fmt.Errorf("%w: max_page_workers must be >= 0", ErrInvalidOptions)
	}
	return nil
}

// OCROptions maps the OCR settings onto the ocr factory.
func (c Config) OCROptions() ocr.Options {
	return ocr.Options{
		Engine:        c.OCREngine,
		Rasterizer:    c.Rasterizer,
		TesseractPath: c.TesseractPath,
		Lang:          c.TesseractLang,
		DPI:           c.OCRDPI,
		Timeout:       c.OCRTimeout,
		MistralAPIKey: c.MistralAPIKey,
		MistralModel:  c.MistralModel,
		TempDir:       c.TempDir,
		Logger:        c.Logger,
	}
}
