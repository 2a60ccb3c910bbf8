package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	c, err := LoadFile("")
	if err != nil {
		t.Fatal(err)
	}
	p := c.Pipeline
	if p.ChunkSize != 1000 || p.ChunkOverlap != 200 || p.TesseractLang != "eng" || p.TableFlavour != "lattice" {
		t.Errorf("pipeline defaults = %+v", p)
	}
	if p.UseOCR || p.ForceOCR || p.ExtractTables {
		t.Errorf("boolean defaults should be off: %+v", p)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoadFileLayers(t *testing.T) {
	path := writeFile(t, `
log_level: debug
server:
  port: "9090"
  parse_timeout: 45s
pipeline:
  chunk_size: 500
  chunk_overlap: 50
  use_ocr: true
  table_flavour: both
`)
	t.Setenv("CHUNK_OVERLAP", "0")
	t.Setenv("PORT", "7070")

	c, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Pipeline.ChunkSize != 500 || !c.Pipeline.UseOCR || c.Pipeline.TableFlavour != "both" {
		t.Errorf("file layer not applied: %+v", c.Pipeline)
	}
	if c.Pipeline.ChunkOverlap != 0 {
		t.Errorf("env layer should win, overlap = %d", c.Pipeline.ChunkOverlap)
	}
	if c.Server.Port != "7070" || c.Server.ParseTimeout != 45*time.Second {
		t.Errorf("server = %+v", c.Server)
	}
	// untouched keys keep their defaults
	if c.Pipeline.OCRDPI != 300 || c.Server.RateLimitBurst != 20 {
		t.Errorf("defaults lost: dpi=%d burst=%d", c.Pipeline.OCRDPI, c.Server.RateLimitBurst)
	}
	if ParseLevel(c.LogLevel) != slog.LevelDebug {
		t.Errorf("log level = %q", c.LogLevel)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := LoadFile(writeFile(t, "pipeline: [not, a, map]")); err == nil {
		t.Error("malformed yaml should fail")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_INT", "-3")
	t.Setenv("T_BOOL", "yes")
	t.Setenv("T_DUR", "90s")
	t.Setenv("T_LIST", "a, b,,c")
	if got := envInt("T_INT", 7); got != 7 {
		t.Errorf("negative int accepted: %d", got)
	}
	if got := envBool("T_BOOL", true); !got {
		t.Errorf("unparseable bool should fall back")
	}
	if got := envDur("T_DUR", time.Second); got != 90*time.Second {
		t.Errorf("dur = %v", got)
	}
	if got := envList("T_LIST", nil); strings.Join(got, "|") != "a|b|c" {
		t.Errorf("list = %q", got)
	}
}

func TestValidateServer(t *testing.T) {
	c := Default()
	if err := c.ValidateServer(); err == nil || !strings.Contains(err.Error(), "INTERNAL_SHARED_SECRET") {
		t.Fatalf("err = %v", err)
	}
	c.Server.InternalSharedSecret = strings.Repeat("s", 32)
	if err := c.ValidateServer(); err != nil {
		t.Errorf("valid server config rejected: %v", err)
	}
	c.Pipeline.ChunkOverlap = c.Pipeline.ChunkSize
	if err := c.ValidateServer(); err == nil {
		t.Error("invalid chunk config accepted")
	}
}
