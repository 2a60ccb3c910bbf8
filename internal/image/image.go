package image

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/toricodesthings/pdf-parse-service/internal/ocr"
	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

// Supported image extensions (matched case-insensitively).
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tiff": true, ".tif": true,
}

var ErrUnsupportedImage = errors.New("unsupported image type")

// Recognizer is satisfied by *ocr.Processor.
type Recognizer interface {
	ImageText(ctx context.Context, imagePath string) (string, error)
}

var (
	zeroWidthChars     = regexp.MustCompile("[\u200B-\u200D\uFEFF\u00AD\u2060]")
	standaloneFileName = regexp.MustCompile(`(?mi)^[\w-]+\.(jpeg|jpg|png|gif|webp|svg|bmp|tiff?)[ \t]*$`)
	excessiveNewlines  = regexp.MustCompile(`\n{4,}`)
	trailingSpaces     = regexp.MustCompile(`(?m)[ \t]+$`)
)

// CleanOCRText strips invisible characters and stray image-filename lines,
// trims line ends and caps blank-line runs at two.
func CleanOCRText(text string) string {
	if text == "" {
		return ""
	}
	text = zeroWidthChars.ReplaceAllString(text, "")
	text = standaloneFileName.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = trailingSpaces.ReplaceAllString(text, "")
	text = excessiveNewlines.ReplaceAllString(text, "\n\n\n")
	return strings.TrimSpace(text)
}

func Supported(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ProcessImageOCR recognises a local image file. The original file name is
// used only for type checks since uploads are stored under generated names.
func ProcessImageOCR(ctx context.Context, rec Recognizer, path, originalName string) (types.ImageExtractionResult, error) {
	if originalName == "" {
		originalName = path
	}
	lower := strings.ToLower(originalName)
	if strings.HasSuffix(lower, ".pdf") {
		msg := "PDF files go through the PDF parse endpoints, not the image endpoint"
		return types.ImageExtractionResult{Error: &msg}, ErrUnsupportedImage
	}
	if !Supported(originalName) {
		msg := "unsupported image type " + filepath.Ext(originalName)
		return types.ImageExtractionResult{Error: &msg}, ErrUnsupportedImage
	}

	text, err := rec.ImageText(ctx, path)
	if err != nil {
		msg := sanitiseOCRError(err)
		return types.ImageExtractionResult{Error: &msg}, err
	}
	cleaned := CleanOCRText(text)
	if cleaned == "" {
		msg := "no content extracted from image"
		return types.ImageExtractionResult{Error: &msg}, errors.New(msg)
	}
	return types.ImageExtractionResult{Success: true, Text: cleaned}, nil
}

func sanitiseOCRError(err error) string {
	switch {
	case errors.Is(err, ocr.ErrUnavailable):
		return "OCR engine unavailable"
	case errors.Is(err, ocr.ErrTimeout):
		return "OCR timed out, try again later"
	}
	msg := err.Error()
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}
