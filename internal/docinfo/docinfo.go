// Package docinfo reads document-level properties (info dictionary, page
// count, encryption) with pdfcpu.
package docinfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	ptypes "github.com/toricodesthings/pdf-parse-service/internal/types"
)

var (
	ErrNotPDF = errors.New("not a pdf")
	// ErrEncrypted means the document cannot be opened without a password.
	ErrEncrypted = errors.New("encrypted without credentials")
)

// Probe validates the file in relaxed mode and returns its metadata.
// Absent info entries stay zero and are omitted on output.
func Probe(ctx context.Context, path string) (meta ptypes.Metadata, err error) {
	if err := ctx.Err(); err != nil {
		return meta, err
	}
	if err := CheckMagic(path); err != nil {
		return meta, err
	}

	f, err := os.Open(path)
	if err != nil {
		return meta, err
	}
	defer f.Close()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu: malformed document: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pc, err := api.ReadAndValidate(f, conf)
	if err != nil {
		if msg := strings.ToLower(err.Error()); strings.Contains(msg, "password") || strings.Contains(msg, "decrypt") {
			return meta, fmt.Errorf("%w: %v", ErrEncrypted, err)
		}
		return meta, fmt.Errorf("pdfcpu read: %w", err)
	}

	// Context embeds the configuration too, which has its own CreationDate.
	xt := pc.XRefTable
	meta = ptypes.Metadata{
		Title:     clean(xt.Title),
		Author:    clean(xt.Author),
		Subject:   clean(xt.Subject),
		Keywords:  clean(xt.Keywords),
		Creator:   clean(xt.Creator),
		Producer:  clean(xt.Producer),
		PageCount: xt.PageCount,
		Encrypted: xt.Encrypt != nil,
	}
	meta.CreationDate = parseDate(xt.CreationDate)
	meta.ModDate = parseDate(xt.ModDate)
	return meta, nil
}

// CheckMagic verifies the %PDF header.
func CheckMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 5)
	n, err := f.Read(header)
	if err != nil || n < 5 {
		return fmt.Errorf("%w: file too small", ErrNotPDF)
	}
	if string(header[:4]) != "%PDF" {
		return fmt.Errorf("%w: starts with %q", ErrNotPDF, header[:n])
	}
	return nil
}

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

func parseDate(s string) *time.Time {
	s = clean(s)
	if s == "" {
		return nil
	}
	if t, ok := types.DateTime(s, true); ok {
		return &t
	}
	// dates taken from XMP metadata are RFC 3339
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t
	}
	return nil
}
