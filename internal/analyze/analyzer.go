// Package analyze composes quota, extraction, the summarization driver, and
// outcome telemetry into the per-request analysis flow.
//
// The flow is modeled as an explicit state machine rather than nested
// conditionals so every terminal outcome, and its paired stats record, is
// structurally guaranteed.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contractlens/contractlens/internal/extract"
	"github.com/contractlens/contractlens/internal/llm"
	"github.com/contractlens/contractlens/internal/metrics"
	"github.com/contractlens/contractlens/internal/quota"
	"github.com/contractlens/contractlens/internal/stats"
)

// DefaultMaxModelChars bounds how much extracted text is sent to the model.
const DefaultMaxModelChars = 20000

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// Request is one analysis submission.
type Request struct {
	FileData     []byte
	FileName     string
	DeclaredType string

	// TextOverride bypasses extraction entirely when non-empty.
	TextOverride string

	// Token is the visitor's quota token as presented (may be empty).
	Token string

	// Country is the caller's ISO2 country, or empty when unknown.
	Country string
}

// Kind tags the terminal outcome variants.
type Kind string

const (
	KindOK        Kind = "ok"
	KindLimited   Kind = "limited"
	KindNoText    Kind = "no_text"
	KindOCRFailed Kind = "ocr_failed"
	KindError     Kind = "error"
)

// Outcome is the tagged result of one analysis. Exactly one Kind is set; the
// remaining fields are meaningful only for that Kind.
type Outcome struct {
	Kind Kind

	// KindOK
	Summary       []string
	Risks         []string
	Detailed      string
	ExtractedText string
	Mock          bool

	// NewToken is the re-issued quota token; set only on countable outcomes.
	NewToken string

	// KindLimited
	RetryAfter time.Duration

	// KindNoText, KindOCRFailed, KindError
	Message string

	// Unsupported marks a KindNoText caused by a rejected file format.
	Unsupported bool

	// Upstream marks a KindError caused by the model provider.
	Upstream bool
}

// state is the orchestrator's position in the per-request flow.
type state int

const (
	stateQuotaCheck state = iota
	stateExtracting
	stateModelCall
	stateDone
)

// Extractor is the extraction pipeline capability the analyzer needs.
type Extractor interface {
	Extract(ctx context.Context, data []byte, declaredType, fileName string) extract.Result
}

// Analyzer wires the collaborators together. It owns no persistent state; it
// is a pure composition of calls per request.
type Analyzer struct {
	Quota    *quota.Tracker
	Pipeline Extractor

	// Driver is nil when no provider is configured; the analyzer then serves
	// a deterministic mock response but still consumes quota, to preserve
	// fairness against repeated free probing.
	Driver llm.Driver

	Stats         *stats.Store
	Model         string
	MaxModelChars int
	Logger        *zap.Logger
}

func (a *Analyzer) logger() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.NewNop()
}

func (a *Analyzer) maxChars() int {
	if a.MaxModelChars > 0 {
		return a.MaxModelChars
	}
	return DefaultMaxModelChars
}

func (a *Analyzer) model() string {
	if a.Model != "" {
		return a.Model
	}
	return DefaultModel
}

// Analyze runs the full flow for one request. It never panics: unexpected
// failures downstream of the quota check become KindError, and every terminal
// outcome is recorded in stats exactly once.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			a.logger().Error("analysis panicked", zap.Any("panic", r))
			out = Outcome{Kind: KindError, Message: "analysis failed"}
		}
		a.record(ctx, req, out)
	}()

	var text string
	var extracted extract.Result

	for st := stateQuotaCheck; st != stateDone; {
		switch st {
		case stateQuotaCheck:
			decision := a.Quota.Check(req.Token)
			if !decision.Allowed {
				return Outcome{Kind: KindLimited, RetryAfter: decision.RetryAfter}
			}
			st = stateExtracting

		case stateExtracting:
			if override := strings.TrimSpace(req.TextOverride); override != "" {
				text = override
				st = stateModelCall
				continue
			}

			extracted = a.Pipeline.Extract(ctx, req.FileData, req.DeclaredType, req.FileName)
			text = strings.TrimSpace(extracted.Text)
			if text == "" {
				if extracted.OCRErr != nil {
					return Outcome{
						Kind:    KindOCRFailed,
						Message: "OCR failed. Try a clearer scan or a text-based PDF.",
					}
				}
				if extracted.Format == extract.FormatUnsupported {
					return Outcome{
						Kind:        KindNoText,
						Message:     "This file format is not supported. Please upload a PDF or DOCX.",
						Unsupported: true,
					}
				}
				return Outcome{
					Kind: KindNoText,
					Message: "No extractable text was found in the uploaded file. " +
						"If this is a scanned PDF or image, upload a clearer scan or a text-based PDF/DOCX.",
				}
			}
			st = stateModelCall

		case stateModelCall:
			return a.callModel(ctx, text)
		}
	}

	// Unreachable: every state either advances or returns a terminal outcome.
	return Outcome{Kind: KindError, Message: "analysis failed"}
}

// callModel produces the KindOK outcome, via the configured driver or the
// deterministic mock. Both paths re-issue the quota token.
func (a *Analyzer) callModel(ctx context.Context, text string) Outcome {
	text = truncateRunes(text, a.maxChars())

	if a.Driver == nil {
		out := mockOutcome(text)
		out.NewToken = a.Quota.Issue()
		return out
	}

	temperature := 0.2
	start := time.Now()
	resp, err := a.Driver.Complete(ctx, &llm.Request{
		Model: a.model(),
		Messages: []llm.Message{
			{Role: "system", Content: analysisSystemPrompt},
			{Role: "user", Content: text},
		},
		Temperature:  &temperature,
		JSONResponse: true,
	})
	metrics.RecordModelCall(a.Driver.Name(), err == nil, time.Since(start))
	if err != nil {
		a.logger().Error("model call failed", zap.String("driver", a.Driver.Name()), zap.Error(err))
		return Outcome{Kind: KindError, Message: "analysis failed", Upstream: true}
	}

	out := Outcome{
		Kind:          KindOK,
		ExtractedText: text,
		NewToken:      a.Quota.Issue(),
	}

	parsed := parseModelJSON(resp.Content)
	if parsed != nil {
		out.Summary = parsed.Summary
		out.Risks = parsed.Risks
		out.Detailed = parsed.Detailed
	} else {
		// Model ignored the JSON contract; surface everything as detail.
		out.Detailed = resp.Content
	}
	return out
}

// record maps the terminal outcome to its stats event. KindNoText and
// KindOCRFailed count as errors: the visitor got no analysis.
func (a *Analyzer) record(ctx context.Context, req Request, out Outcome) {
	metrics.RecordAnalysis(string(out.Kind))

	if a.Stats == nil {
		return
	}

	outcome := stats.OutcomeError
	switch out.Kind {
	case KindOK:
		outcome = stats.OutcomeOK
	case KindLimited:
		outcome = stats.OutcomeLimited
	}

	// A limited request never processed its file, so it is not an upload.
	a.Stats.Record(ctx, stats.Event{
		Outcome:  outcome,
		Country:  req.Country,
		Uploaded: len(req.FileData) > 0 && out.Kind != KindLimited,
	})
}

const analysisSystemPrompt = "You are a legal explainer AI.\n" +
	"Detect the language of the provided contract text and respond in that same language (e.g., Lithuanian if the text is Lithuanian).\n" +
	"Explain the text in simple terms and respond ONLY as compact JSON with keys 'summary' (array of short bullet strings capturing key points; length should fit the document), 'risks' (array of strings), and 'detailed' (markdown string).\n" +
	"Do not include any extra commentary, code fences, or keys."

const askSystemPrompt = "You are an AI assistant specialized in contract analysis.\n" +
	"Detect the language of the contract text and answer in that same language.\n" +
	"Answer the user's question based ONLY on the contract text below.\n" +
	"Use clear, simple, human language."

// Ask answers a follow-up question about previously extracted contract text.
// An empty question yields an empty answer; a missing driver yields a
// placeholder answer.
func (a *Analyzer) Ask(ctx context.Context, contractText, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil
	}

	contractText = truncateRunes(contractText, a.maxChars())

	if a.Driver == nil {
		return "(mock) No API key set. This is a placeholder answer.", nil
	}

	temperature := 0.2
	resp, err := a.Driver.Complete(ctx, &llm.Request{
		Model: a.model(),
		Messages: []llm.Message{
			{Role: "system", Content: askSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Contract:\n%s\n\nQuestion: %s", contractText, question)},
		},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// mockOutcome mirrors the real response shape with a deterministic preview of
// the input, used whenever no provider key is configured.
func mockOutcome(text string) Outcome {
	preview := truncateRunes(strings.TrimSpace(text), 200)

	summary := []string{
		"This is a mock summary because no model API key is configured.",
	}
	if preview != "" {
		summary = append(summary, "Preview: "+preview+"...")
	} else {
		summary = append(summary, "No text extracted.")
	}
	summary = append(summary, "Configure an API key to get real analysis.")

	return Outcome{
		Kind:    KindOK,
		Summary: summary,
		Risks: []string{
			"Mock risk: This is not legal advice.",
			"Mock risk: Configure an API key to get real analysis.",
		},
		Detailed:      "Detailed explanation is mocked. Configure an API key to enable real responses.",
		ExtractedText: text,
		Mock:          true,
	}
}

type modelPayload struct {
	Summary  []string `json:"summary"`
	Risks    []string `json:"risks"`
	Detailed string   `json:"detailed"`
}

var fencedJSON = regexp.MustCompile("(?is)```json(.*?)```")

// parseModelJSON decodes the model's JSON contract, tolerating a fenced code
// block. It returns nil when the content does not satisfy the contract.
func parseModelJSON(content string) *modelPayload {
	raw := strings.TrimSpace(content)
	if m := fencedJSON.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}

	var payload modelPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	if payload.Summary == nil || payload.Risks == nil {
		return nil
	}
	return &payload
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
