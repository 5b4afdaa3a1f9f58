package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSniff(t *testing.T) {
	cases := []struct {
		name     string
		declared string
		fileName string
		want     Format
	}{
		{"pdf mime", "application/pdf", "contract.bin", FormatPDF},
		{"pdf suffix wins over generic", "application/octet-stream", "contract.pdf", FormatPDF},
		{"pdf suffix with empty mime", "", "Contract.PDF", FormatPDF},
		{"docx mime", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "x", FormatDOCX},
		{"docx suffix", "", "lease.docx", FormatDOCX},
		{"legacy doc suffix", "", "lease.doc", FormatUnsupported},
		{"legacy doc mime beats pdf suffix", "application/msword", "renamed.pdf", FormatUnsupported},
		{"unknown", "text/plain", "notes.txt", FormatUnsupported},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Sniff(tc.declared, tc.fileName))
		})
	}
}

func TestExtractTextBearingPDFSkipsOCR(t *testing.T) {
	p := NewPipeline(Config{}, nil, nil)
	ocrCalled := false
	p.pdfFn = func([]byte) (string, error) { return "Section 1. Payment terms.", nil }
	p.ocrFn = func(context.Context, []byte) (string, error) {
		ocrCalled = true
		return "", nil
	}

	res := p.Extract(context.Background(), []byte("%PDF"), "application/pdf", "a.pdf")
	require.Equal(t, FormatPDF, res.Format)
	require.Equal(t, "Section 1. Payment terms.", res.Text)
	require.False(t, res.UsedOCR)
	require.False(t, ocrCalled)
}

func TestExtractEmptyPDFTriggersOCR(t *testing.T) {
	p := NewPipeline(Config{}, Tesseract{}, nil)
	p.pdfFn = func([]byte) (string, error) { return "  \n\t ", nil }
	p.ocrFn = func(context.Context, []byte) (string, error) { return "page one\npage two", nil }

	res := p.Extract(context.Background(), []byte("%PDF"), "application/pdf", "scan.pdf")
	require.Equal(t, "page one\npage two", res.Text)
	require.True(t, res.UsedOCR)
	require.NoError(t, res.OCRErr)
}

func TestExtractParserFailureDegradesToOCR(t *testing.T) {
	p := NewPipeline(Config{}, Tesseract{}, nil)
	p.pdfFn = func([]byte) (string, error) { return "", errors.New("corrupt xref") }
	p.ocrFn = func(context.Context, []byte) (string, error) { return "recovered", nil }

	res := p.Extract(context.Background(), nil, "application/pdf", "broken.pdf")
	require.Equal(t, "recovered", res.Text)
	require.True(t, res.UsedOCR)
}

func TestExtractOCRFailureIsReported(t *testing.T) {
	p := NewPipeline(Config{}, Tesseract{}, nil)
	p.pdfFn = func([]byte) (string, error) { return "", nil }
	p.ocrFn = func(context.Context, []byte) (string, error) { return "", errors.New("no tesseract data") }

	res := p.Extract(context.Background(), nil, "application/pdf", "scan.pdf")
	require.Empty(t, res.Text)
	require.False(t, res.UsedOCR)
	require.Error(t, res.OCRErr)
}

func TestExtractNoOCREngine(t *testing.T) {
	p := NewPipeline(Config{}, nil, nil)
	p.pdfFn = func([]byte) (string, error) { return "", nil }

	res := p.Extract(context.Background(), nil, "application/pdf", "scan.pdf")
	require.Empty(t, res.Text)
	require.NoError(t, res.OCRErr)
}

func TestExtractLegacyDocNeverInvokesExtractors(t *testing.T) {
	p := NewPipeline(Config{}, nil, nil)
	p.pdfFn = func([]byte) (string, error) {
		t.Fatal("pdf extractor must not run for .doc input")
		return "", nil
	}
	p.docxFn = func([]byte) (string, error) {
		t.Fatal("docx extractor must not run for .doc input")
		return "", nil
	}

	res := p.Extract(context.Background(), []byte{0xd0, 0xcf}, "application/msword", "old.doc")
	require.Equal(t, FormatUnsupported, res.Format)
	require.Empty(t, res.Text)
}

func TestExtractDOCXFailureDegradesToEmpty(t *testing.T) {
	p := NewPipeline(Config{}, nil, nil)
	p.docxFn = func([]byte) (string, error) { return "", errors.New("not a zip") }

	res := p.Extract(context.Background(), []byte("junk"), "", "lease.docx")
	require.Equal(t, FormatDOCX, res.Format)
	require.Empty(t, res.Text)
}

func TestFlattenDocumentXML(t *testing.T) {
	xml := `<w:document><w:body>` +
		`<w:p><w:r><w:t>First clause.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second &amp; third.</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`</w:body></w:document>`

	require.Equal(t, "First clause.\nSecond & third.", flattenDocumentXML(xml))
}

func TestConfigDefaults(t *testing.T) {
	p := NewPipeline(Config{}, nil, nil)
	require.Equal(t, 3, p.cfg.MaxOCRPages)
	require.InDelta(t, 1.5, p.cfg.OCRScale, 1e-9)
	require.Equal(t, []string{"eng", "lit"}, p.cfg.OCRLanguages)
}
