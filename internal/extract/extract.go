// Package extract turns uploaded documents into plain text.
//
// Format selection sniffs the declared MIME type and the filename suffix; the
// suffix wins when the declared type is generic or absent. Extractor failures
// degrade to an empty-text result instead of failing the request, and scanned
// PDFs fall back to OCR over a bounded number of pages.
package extract

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contractlens/contractlens/internal/metrics"
)

// Format identifies the logical source format of an upload.
type Format string

const (
	FormatPDF         Format = "pdf"
	FormatDOCX        Format = "docx"
	FormatUnsupported Format = "unsupported"
)

// Result is the outcome of one extraction. It is derived per request and
// never persisted.
type Result struct {
	Text   string
	Format Format

	// UsedOCR reports that the OCR fallback produced Text.
	UsedOCR bool

	// OCRErr is set when the fallback was attempted and failed. The primary
	// extraction result (empty text) still stands.
	OCRErr error
}

// Config carries the fallback policy knobs. They trade accuracy against
// latency and cost, so they are configuration rather than constants.
type Config struct {
	// MaxOCRPages caps how many leading pages the OCR fallback processes.
	// Pages beyond the cap are silently skipped; results may be partial for
	// long scans.
	MaxOCRPages int

	// OCRScale is the raster upscale factor applied before recognition.
	OCRScale float64

	// OCRLanguages are the language hints passed to the recognizer.
	OCRLanguages []string
}

// DefaultConfig mirrors the production policy: first three pages, 1.5x
// upscale, English plus Lithuanian.
func DefaultConfig() Config {
	return Config{
		MaxOCRPages:  3,
		OCRScale:     1.5,
		OCRLanguages: []string{"eng", "lit"},
	}
}

// Pipeline chains the per-format extractors with the OCR fallback.
type Pipeline struct {
	cfg    Config
	ocr    Engine
	logger *zap.Logger

	// Extractor hooks are injectable for tests; defaults parse real files.
	pdfFn   func([]byte) (string, error)
	docxFn  func([]byte) (string, error)
	ocrFn   func(context.Context, []byte) (string, error)
	openDoc func([]byte) (pageRenderer, error)
}

// NewPipeline builds a pipeline. ocr may be nil, which disables the fallback.
func NewPipeline(cfg Config, ocr Engine, logger *zap.Logger) *Pipeline {
	if cfg.MaxOCRPages <= 0 {
		cfg.MaxOCRPages = DefaultConfig().MaxOCRPages
	}
	if cfg.OCRScale <= 0 {
		cfg.OCRScale = DefaultConfig().OCRScale
	}
	if len(cfg.OCRLanguages) == 0 {
		cfg.OCRLanguages = DefaultConfig().OCRLanguages
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pipeline{cfg: cfg, ocr: ocr, logger: logger}
	p.pdfFn = pdfText
	p.docxFn = docxText
	p.ocrFn = p.recognizePages
	p.openDoc = openFitz
	return p
}

// Extract sniffs the format and runs the matching extractor. It never fails
// for unsupported or unparseable content; those degrade to empty text.
func (p *Pipeline) Extract(ctx context.Context, data []byte, declaredType, fileName string) (res Result) {
	format := Sniff(declaredType, fileName)

	start := time.Now()
	defer func() {
		metrics.RecordExtraction(string(res.Format), res.UsedOCR, time.Since(start))
	}()

	switch format {
	case FormatPDF:
		return p.extractPDF(ctx, data)
	case FormatDOCX:
		text, err := p.docxFn(data)
		if err != nil {
			p.logger.Warn("docx extraction failed", zap.String("file", fileName), zap.Error(err))
			return Result{Format: FormatDOCX}
		}
		return Result{Text: text, Format: FormatDOCX}
	default:
		return Result{Format: FormatUnsupported}
	}
}

func (p *Pipeline) extractPDF(ctx context.Context, data []byte) Result {
	text, err := p.pdfFn(data)
	if err != nil {
		p.logger.Warn("pdf extraction failed", zap.Error(err))
		text = ""
	}

	if strings.TrimSpace(text) != "" {
		return Result{Text: text, Format: FormatPDF}
	}

	// Empty primary text is the heuristic for a scanned or image-only PDF.
	if p.ocr == nil {
		return Result{Format: FormatPDF}
	}

	ocrText, err := p.ocrFn(ctx, data)
	if err != nil {
		p.logger.Warn("ocr fallback failed", zap.Error(err))
		return Result{Format: FormatPDF, OCRErr: err}
	}
	return Result{Text: ocrText, Format: FormatPDF, UsedOCR: true}
}

// Sniff determines the logical format from the declared MIME type and the
// filename suffix. Legacy binary Word documents are rejected outright rather
// than attempted.
func Sniff(declaredType, fileName string) Format {
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	name := strings.ToLower(strings.TrimSpace(fileName))

	if declared == "application/msword" || strings.HasSuffix(name, ".doc") {
		return FormatUnsupported
	}
	if declared == "application/pdf" || strings.HasSuffix(name, ".pdf") {
		return FormatPDF
	}
	if declared == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		strings.HasSuffix(name, ".docx") {
		return FormatDOCX
	}
	return FormatUnsupported
}
