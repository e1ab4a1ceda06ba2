// Package document turns uploads into images the extraction model can read.
package document

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/timesheet-ocr/internal/application/port"
	"github.com/garyjia/timesheet-ocr/pkg/utils"
)

const (
	defaultDPI         = 150.0
	defaultJPEGQuality = 85
)

// Converter renders PDF uploads to a JPEG of their first page. PNG and JPEG
// uploads are returned unchanged.
type Converter struct {
	dpi     float64
	quality int
	logger  *zap.Logger
}

// NewConverter creates a converter. Non-positive dpi or quality use defaults.
func NewConverter(dpi float64, quality int, logger *zap.Logger) port.DocumentConverter {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	if quality <= 0 || quality > 100 {
		quality = defaultJPEGQuality
	}
	return &Converter{dpi: dpi, quality: quality, logger: logger}
}

// ToImage returns image bytes and their MIME type
func (c *Converter) ToImage(ctx context.Context, data []byte, mimeType string) ([]byte, string, error) {
	switch mt := utils.NormalizeMimeType(mimeType); mt {
	case "image/png", "image/jpeg":
		return data, mt, nil
	case "application/pdf":
		return c.renderFirstPage(data)
	default:
		return nil, "", fmt.Errorf("unsupported document type: %q", mimeType)
	}
}

func (c *Converter) renderFirstPage(data []byte) ([]byte, string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, "", fmt.Errorf("PDF has no pages")
	}
	if doc.NumPage() > 1 {
		c.logger.Warn("PDF has more than one page, only the first is extracted",
			zap.Int("pages", doc.NumPage()))
	}

	img, err := doc.ImageDPI(0, c.dpi)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode JPEG: %w", err)
	}

	c.logger.Debug("Rendered PDF page",
		zap.Float64("dpi", c.dpi),
		zap.Int("size_bytes", buf.Len()))
	return buf.Bytes(), "image/jpeg", nil
}
