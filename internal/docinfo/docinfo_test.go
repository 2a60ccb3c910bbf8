package docinfo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/toricodesthings/pdf-parse-service/internal/pdftest"
)

func TestCheckMagic(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"pdf header", "%PDF-1.7\n...", false},
		{"xml error page", "<?xml version=\"1.0\"?><Error/>", true},
		{"too small", "%PD", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".pdf")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			err := CheckMagic(path)
			if tc.wantErr != (err != nil) {
				t.Fatalf("CheckMagic err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNotPDF) {
				t.Errorf("expected ErrNotPDF, got %v", err)
			}
		})
	}
}

func TestProbeRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.pdf")
	if err := os.WriteFile(path, []byte("plain text, not a document"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Probe(context.Background(), path); !errors.Is(err, ErrNotPDF) {
		t.Errorf("Probe err = %v, want ErrNotPDF", err)
	}
}

func TestProbeMissing(t *testing.T) {
	if _, err := Probe(context.Background(), filepath.Join(t.TempDir(), "gone.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseDate(t *testing.T) {
	if parseDate("") != nil {
		t.Error("empty date should be absent")
	}
	if parseDate("not a date") != nil {
		t.Error("garbage date should be absent")
	}
	d := parseDate("D:20230115103000Z")
	if d == nil || d.Year() != 2023 || d.Month() != 1 || d.Day() != 15 {
		t.Errorf("parseDate = %v", d)
	}
}

func TestProbe(t *testing.T) {
	pages := []string{pdftest.Text(72, 720, "one"), pdftest.Text(72, 720, "two"), pdftest.Text(72, 720, "three")}

	t.Run("no info dict", func(t *testing.T) {
		path := pdftest.Write(t, "plain.pdf", pdftest.Doc{Pages: pages})
		meta, err := Probe(context.Background(), path)
		if err != nil {
			t.Fatalf("Probe: %v", err)
		}
		if meta.PageCount != 3 {
			t.Errorf("PageCount = %d, want 3", meta.PageCount)
		}
		if meta.Title != "" || meta.Author != "" || meta.CreationDate != nil {
			t.Errorf("absent fields populated: %+v", meta)
		}
		if meta.Encrypted {
			t.Error("plain file reported encrypted")
		}
	})

	t.Run("info dict", func(t *testing.T) {
		path := pdftest.Write(t, "info.pdf", pdftest.Doc{
			Pages: pages[:1],
			Info:  "/Title (Quarterly Report) /Author (Finance) /CreationDate (D:20230115103000Z)",
		})
		meta, err := Probe(context.Background(), path)
		if err != nil {
			t.Fatalf("Probe: %v", err)
		}
		if meta.PageCount != 1 || meta.Title != "Quarterly Report" || meta.Author != "Finance" {
			t.Errorf("meta = %+v", meta)
		}
		if d := meta.CreationDate; d == nil || d.Year() != 2023 || d.Month() != 1 || d.Day() != 15 {
			t.Errorf("CreationDate = %v", d)
		}
		if meta.ModDate != nil {
			t.Errorf("ModDate = %v, want absent", meta.ModDate)
		}
	})
}

func TestParseDateRFC3339(t *testing.T) {
	d := parseDate("2024-03-02T10:00:00Z")
	if d == nil || d.Year() != 2024 || d.Month() != 3 {
		t.Errorf("parseDate = %v", d)
	}
}
