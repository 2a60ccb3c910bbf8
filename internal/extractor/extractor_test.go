package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/toricodesthings/pdf-parse-service/internal/pdftest"
)

func TestNew(t *testing.T) {
	for _, name := range []string{"", "tabula", "native", "poppler"} {
		tl, err := New(name, PopplerOptions{})
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		want := name
		if want == "" {
			want = "tabula"
		}
		if tl.Name() != want {
			t.Errorf("New(%q).Name() = %q", name, tl.Name())
		}
	}
	if _, err := New("pdfbox", PopplerOptions{}); err == nil {
		t.Error("expected error for unknown text layer")
	}
}

func TestNativeOpenMissing(t *testing.T) {
	_, err := Native{}.Open(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNativeOpenGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (Native{}).Open(context.Background(), path); err == nil {
		t.Fatal("expected error for non-pdf content")
	}
}

func TestCheckPage(t *testing.T) {
	if err := checkPage(0, 3); !errors.Is(err, ErrPageRange) {
		t.Errorf("page 0: %v", err)
	}
	if err := checkPage(4, 3); !errors.Is(err, ErrPageRange) {
		t.Errorf("page 4: %v", err)
	}
	if err := checkPage(3, 3); err != nil {
		t.Errorf("page 3: %v", err)
	}
}

func TestPopplerMissingBinary(t *testing.T) {
	p := NewPoppler(PopplerOptions{PDFInfoPath: filepath.Join(t.TempDir(), "no-pdfinfo")})
	if _, err := p.Open(context.Background(), "doc.pdf"); err == nil {
		t.Fatal("expected error when pdfinfo is missing")
	}
}

func TestLayout(t *testing.T) {
	glyph := func(x, y, w float64, s string) pdf.Text {
		return pdf.Text{FontSize: 12, X: x, Y: y, W: w, S: s}
	}
	tests := []struct {
		name   string
		glyphs []pdf.Text
		want   string
	}{
		{"empty", nil, ""},
		{"adjacent glyphs", []pdf.Text{glyph(72, 700, 6, "a"), glyph(78, 700, 6, "b")}, "ab"},
		{"word gap", []pdf.Text{glyph(72, 700, 6, "a"), glyph(200, 700, 6, "b")}, "a b"},
		{"rows top to bottom", []pdf.Text{glyph(72, 680, 6, "low"), glyph(72, 700, 6, "high")}, "high\nlow"},
		{"baseline jitter", []pdf.Text{glyph(72, 700, 6, "x"), glyph(78, 701.5, 6, "y")}, "xy"},
		{"explicit space", []pdf.Text{glyph(72, 700, 6, "a "), glyph(200, 700, 6, "b")}, "a b"},
		{"stable order at equal x", []pdf.Text{glyph(72, 700, 0, "T"), glyph(72, 700, 0, "o"), glyph(72, 700, 0, "p")}, "Top"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := layout(tt.glyphs); got != tt.want {
				t.Errorf("layout = %q, want %q", got, tt.want)
			}
		})
	}
}

// invoicePage places two words on one baseline and a second line below.
func invoicePage() string {
	return pdftest.Text(72, 720, "Invoice") + pdftest.Text(200, 720, "Total") + pdftest.Text(72, 690, "Second line")
}

func TestPageTextKeepsWordsAndLines(t *testing.T) {
	path := pdftest.Write(t, "invoice.pdf", pdftest.Doc{Pages: []string{invoicePage(), ""}})
	for _, tl := range []TextLayer{Tabula{}, Native{}} {
		t.Run(tl.Name(), func(t *testing.T) {
			doc, err := tl.Open(context.Background(), path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer doc.Close()
			if doc.NumPages() != 2 {
				t.Fatalf("NumPages = %d, want 2", doc.NumPages())
			}

			got, err := doc.PageText(context.Background(), 1)
			if err != nil {
				t.Fatalf("PageText: %v", err)
			}
			first, rest, ok := strings.Cut(strings.TrimSpace(got), "\n")
			if !ok || first != "Invoice Total" || strings.TrimSpace(rest) != "Second line" {
				t.Errorf("page 1 = %q, want %q then %q on separate lines", got, "Invoice Total", "Second line")
			}

			blank, err := doc.PageText(context.Background(), 2)
			if err != nil || strings.TrimSpace(blank) != "" {
				t.Errorf("page 2 = %q, %v; want empty", blank, err)
			}
			if _, err := doc.PageText(context.Background(), 3); !errors.Is(err, ErrPageRange) {
				t.Errorf("page 3 err = %v, want ErrPageRange", err)
			}
		})
	}
}

func TestTabulaOpenGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (Tabula{}).Open(context.Background(), path); err == nil {
		t.Fatal("expected error for non-pdf content")
	}
}
