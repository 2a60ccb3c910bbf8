// Command pdfparse extracts text, chunks, metadata and tables from a PDF and
// writes the result as JSON, optionally exporting CSV files.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/toricodesthings/pdf-parse-service/internal/config"
	"github.com/toricodesthings/pdf-parse-service/internal/export"
	"github.com/toricodesthings/pdf-parse-service/internal/pipeline"
	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil))
}

type options struct {
	configPath   string
	logLevel     string
	output       string
	outputDir    string
	exportCSV    bool
	metadataOnly bool
	pages        string
}

// run is main without the process globals. extra options are passed to the
// pipeline, which lets tests substitute backends.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, extra []pipeline.Option) int {
	fs := flag.NewFlagSet("pdfparse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: pdfparse [flags] <file.pdf>\n\n")
		fs.PrintDefaults()
	}

	var o options
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&o.output, "output", "", `JSON output path, "-" for stdout (default <name>_parsed.json)`)
	fs.StringVar(&o.outputDir, "output-dir", "outputs", "directory for CSV exports")
	fs.BoolVar(&o.exportCSV, "export-csv", false, "export tables (or the text when no table was found) as CSV")
	fs.BoolVar(&o.metadataOnly, "metadata-only", false, "extract only document metadata")
	fs.StringVar(&o.pages, "pages", "", "comma-separated 1-based pages to process (default all)")

	defaults := pipeline.DefaultConfig()
	chunkSize := fs.Int("chunk-size", defaults.ChunkSize, "characters per chunk")
	chunkOverlap := fs.Int("chunk-overlap", defaults.ChunkOverlap, "characters shared by adjacent chunks")
	useOCR := fs.Bool("ocr", false, "OCR pages without a usable text layer")
	forceOCR := fs.Bool("force-ocr", false, "OCR every page, even those with text")
	tesseractPath := fs.String("tesseract-path", "", "tesseract executable (default: search PATH)")
	tesseractLang := fs.String("tesseract-lang", defaults.TesseractLang, "OCR language")
	extractTables := fs.Bool("extract-tables", false, "detect tables")
	flavour := fs.String("table-flavour", defaults.TableFlavour, "table detection: lattice, stream or both")
	ocrEngine := fs.String("ocr-engine", defaults.OCREngine, "OCR engine: tesseract, gosseract or mistral")
	textLayer := fs.String("text-layer", defaults.TextLayer, "text layer reader: tabula, native or poppler")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	pdfPath := fs.Arg(0)

	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	log := cfg.NewLogger(stderr)
	if err != nil {
		log.Error("load config", "error", err)
		return 1
	}

	// explicitly set flags win over file and environment
	pc := &cfg.Pipeline
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chunk-size":
			pc.ChunkSize = *chunkSize
		case "chunk-overlap":
			pc.ChunkOverlap = *chunkOverlap
		case "ocr":
			pc.UseOCR = *useOCR
		case "force-ocr":
			pc.ForceOCR = *forceOCR
		case "tesseract-path":
			pc.TesseractPath = *tesseractPath
		case "tesseract-lang":
			pc.TesseractLang = *tesseractLang
		case "extract-tables":
			pc.ExtractTables = *extractTables
		case "table-flavour":
			pc.TableFlavour = *flavour
		case "ocr-engine":
			pc.OCREngine = *ocrEngine
		case "text-layer":
			pc.TextLayer = *textLayer
		}
	})
	pc.Logger = log
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	if _, err := os.Stat(pdfPath); err != nil {
		log.Error("PDF file not found", "path", pdfPath, "error", err)
		return 1
	}

	pages, err := parsePages(o.pages)
	if err != nil {
		log.Error("invalid -pages", "error", err)
		return 2
	}

	pipe := pipeline.New(*pc, extra...)
	res, err := pipe.Parse(ctx, pdfPath, types.ParseOptions{MetadataOnly: o.metadataOnly, Pages: pages})
	if err != nil {
		log.Error("parse failed", "path", pdfPath, "error", err)
		return 1
	}

	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	if err := writeResult(res, o.output, base, stdout); err != nil {
		log.Error("write output", "error", err)
		return 1
	}
	summary(stderr, filepath.Base(pdfPath), res, o.metadataOnly)

	if o.exportCSV && !o.metadataOnly {
		paths, err := exportCSV(res, o.outputDir, base)
		for _, p := range paths {
			fmt.Fprintf(stderr, "CSV saved to %s\n", p)
		}
		if err != nil {
			// files that did write stay; a failed file only warns
			var we *export.WriteError
			if errors.As(err, &we) {
				log.Warn("csv export incomplete", "error", err)
			} else {
				log.Error("csv export", "error", err)
				return 1
			}
		}
	}
	return 0
}

func parsePages(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &n); err != nil || n < 1 {
			return nil, fmt.Errorf("bad page %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func writeResult(res *types.ParseResult, output, base string, stdout io.Writer) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if output == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if output == "" {
		output = base + "_parsed.json"
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Results saved to %s\n", output)
	return nil
}

func exportCSV(res *types.ParseResult, dir, base string) ([]string, error) {
	if len(res.Tables) > 0 {
		return export.Tables(res.Tables, dir, base)
	}
	if res.Text == "" {
		return nil, nil
	}
	p, err := export.Text(res.Text, dir, base)
	if err != nil {
		return nil, err
	}
	return []string{p}, nil
}

func summary(w io.Writer, name string, res *types.ParseResult, metadataOnly bool) {
	fmt.Fprintf(w, "\nPDF Parsing Results for %s:\n%s\n", name, strings.Repeat("=", 40))
	orNA := func(s string) string {
		if s == "" {
			return "Not available"
		}
		return s
	}
	fmt.Fprintf(w, "Title: %s\nAuthor: %s\nPages: %d\n", orNA(res.Metadata.Title), orNA(res.Metadata.Author), res.Metadata.PageCount)
	if metadataOnly {
		return
	}
	fmt.Fprintf(w, "Text length: %d\nChunks: %d\n", len([]rune(res.Text)), res.NumChunks)
	if res.OCRText != nil {
		fmt.Fprintf(w, "OCR pages: %d\nOCR text length: %d\nOCR chunks: %d\n", len(res.OCRByPage), len([]rune(*res.OCRText)), len(res.OCRChunks))
	}
	if res.NumTables != nil {
		fmt.Fprintf(w, "Tables: %d\n", *res.NumTables)
	}
	for _, wn := range res.Warnings {
		if wn.Page > 0 {
			fmt.Fprintf(w, "Warning (page %d): %s: %s\n", wn.Page, wn.Code, wn.Message)
		} else {
			fmt.Fprintf(w, "Warning: %s: %s\n", wn.Code, wn.Message)
		}
	}
}
