package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes text in a rasterized page image. Implementations must be
// safe for sequential reuse within a request.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, languages []string) (string, error)
}

// baseRenderDPI is the PDF default rendering resolution the upscale factor
// multiplies.
const baseRenderDPI = 72

// pageRenderer is the slice of the PDF rasterizer the fallback needs;
// injectable for tests.
type pageRenderer interface {
	NumPage() int
	ImageDPI(pageNumber int, dpi float64) (image.Image, error)
	Close() error
}

// fitzDoc adapts fitz.Document to pageRenderer.
type fitzDoc struct {
	doc *fitz.Document
}

func (d fitzDoc) NumPage() int { return d.doc.NumPage() }

func (d fitzDoc) ImageDPI(pageNumber int, dpi float64) (image.Image, error) {
	return d.doc.ImageDPI(pageNumber, dpi)
}

func (d fitzDoc) Close() error { return d.doc.Close() }

func openFitz(data []byte) (pageRenderer, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return fitzDoc{doc: doc}, nil
}

// recognizePages renders up to MaxOCRPages leading pages of the PDF and runs
// recognition on each, concatenating page texts in page order separated by a
// newline.
func (p *Pipeline) recognizePages(ctx context.Context, data []byte) (string, error) {
	doc, err := p.openDoc(data)
	if err != nil {
		return "", fmt.Errorf("render pdf: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > p.cfg.MaxOCRPages {
		pages = p.cfg.MaxOCRPages
	}

	var parts []string
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		img, err := doc.ImageDPI(i, baseRenderDPI*p.cfg.OCRScale)
		if err != nil {
			return "", fmt.Errorf("render page %d: %w", i+1, err)
		}

		text, err := p.ocr.Recognize(ctx, img, p.cfg.OCRLanguages)
		if err != nil {
			return "", fmt.Errorf("recognize page %d: %w", i+1, err)
		}
		parts = append(parts, strings.TrimSpace(text))
	}

	return strings.Join(parts, "\n"), nil
}

// Tesseract is the production Engine backed by the system tesseract install.
type Tesseract struct{}

// Recognize runs a single-image recognition pass with the given language hints.
func (Tesseract) Recognize(ctx context.Context, img image.Image, languages []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode page image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			return "", fmt.Errorf("set ocr languages: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("load page image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}
