package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"smishguard/internal/domain/models"
	"smishguard/internal/domain/services/ai"
	"smishguard/pkg/logger"
)

const maxReasons = 3

var explanationPattern = regexp.MustCompile(`(?s)\{\s*"confidence".*\}`)

// ChatCompleter sends one prompt to a text generation model
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string) (*ai.Completion, error)
}

// Explainer turns a scan record and its enrichment into a structured explanation
type Explainer struct {
	llm    ChatCompleter
	logger *logger.Logger
}

// NewExplainer creates a new explainer
func NewExplainer(llm ChatCompleter, log *logger.Logger) *Explainer {
	return &Explainer{
		llm:    llm,
		logger: log.WithComponent("explainer"),
	}
}

// Explain builds the prompt, calls the model once and decodes the answer. Every model-side
// failure is reported through the result's Status; only transport failures return an error.
func (e *Explainer) Explain(ctx context.Context, record *models.ScanRecord, enrichment *models.Enrichment) (*models.ExplanationResult, error) {
	prompt := BuildPrompt(record, enrichment)

	completion, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		return e.classifyFailure(record.ID, err)
	}

	if completion.Choices == 0 {
		e.logger.Warn().Str("scan_id", record.ID).Msg("model response had no choices")
		return &models.ExplanationResult{
			Reasons: []string{},
			Status:  models.ExplanationParseFailed,
			Error:   models.ErrMarkerBadResponse,
		}, nil
	}

	result := DecodeExplanation(completion.Content)
	if !result.OK() {
		e.logger.Warn().
			Str("scan_id", record.ID).
			Int("raw_len", len(result.Raw)).
			Msg("could not decode explanation")
	}
	return result, nil
}

func (e *Explainer) classifyFailure(scanID string, err error) (*models.ExplanationResult, error) {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &apiErr), errors.As(err, &reqErr):
		e.logger.Warn().Err(err).Str("scan_id", scanID).Msg("text generation endpoint rejected request")
		return &models.ExplanationResult{
			Reasons: []string{},
			Status:  models.ExplanationHTTPFailed,
			Error:   models.ErrMarkerUnavailable,
		}, nil
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		e.logger.Warn().Err(err).Str("scan_id", scanID).Msg("text generation endpoint returned malformed body")
		return &models.ExplanationResult{
			Reasons: []string{},
			Status:  models.ExplanationParseFailed,
			Error:   models.ErrMarkerBadResponse,
		}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}

type explanationPayload struct {
	Confidence string   `json:"confidence"`
	Summary    string   `json:"summary"`
	Reasons    []string `json:"reasons"`
}

// DecodeExplanation extracts the first `{"confidence" ... }` object from raw model output.
// It never fails; undecodable output yields a parse_failed result carrying the raw text.
func DecodeExplanation(raw string) *models.ExplanationResult {
	failed := &models.ExplanationResult{
		Reasons: []string{},
		Status:  models.ExplanationParseFailed,
		Error:   models.ErrMarkerUnparseable,
		Raw:     raw,
	}

	block := explanationPattern.FindString(raw)
	if block == "" {
		return failed
	}

	var payload explanationPayload
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		return failed
	}

	confidence, ok := models.ParseConfidence(payload.Confidence)
	if !ok {
		return failed
	}

	reasons := make([]string, 0, maxReasons)
	for _, r := range payload.Reasons {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		reasons = append(reasons, r)
		if len(reasons) == maxReasons {
			break
		}
	}

	return &models.ExplanationResult{
		Confidence: confidence,
		Summary:    strings.TrimSpace(payload.Summary),
		Reasons:    reasons,
		Status:     models.ExplanationParsed,
		Raw:        raw,
	}
}

// BuildPrompt renders the explanation prompt. Output depends only on its inputs.
func BuildPrompt(record *models.ScanRecord, enrichment *models.Enrichment) string {
	prob := 0.0
	if record.Prediction != nil {
		prob = record.Prediction.Probability
	}
	if enrichment == nil {
		enrichment = &models.Enrichment{}
	}

	var sb strings.Builder
	sb.WriteString("You are an expert security assistant.\n\n")
	sb.WriteString("A user scanned the following message for phishing risk:\n\n")
	fmt.Fprintf(&sb, "%q\n\n", record.Text)
	sb.WriteString("Context:\n")
	fmt.Fprintf(&sb, "- Model phishing probability: %s%%\n", FormatPercent(prob))
	fmt.Fprintf(&sb, "- Extracted phone numbers: %s\n", toJSON(record.PhoneNumbers))
	fmt.Fprintf(&sb, "- Extracted URLs: %s\n", toJSON(record.URLs))
	fmt.Fprintf(&sb, "- Phone legitimacy check: %s\n", toJSON(phoneVerdicts(enrichment.Phones)))
	fmt.Fprintf(&sb, "- URL threat detection: %s\n\n", toJSON(urlVerdicts(enrichment.URLs)))
	sb.WriteString("Your task is to clearly explain why this message might be phishing.\n\n")
	sb.WriteString("Now return your output in the following JSON format:\n\n")
	sb.WriteString(`{
  "confidence": "High" | "Medium" | "Low",
  "summary": "Brief summary of why it's suspicious.",
  "reasons": [
    "Reason 1 (max 15 words)",
    "Reason 2 (max 15 words)",
    "Reason 3 (max 15 words)"
  ]
}`)
	sb.WriteString("\n\nOnly return valid JSON. Do not include any additional explanation or internal thoughts. Do not write in first person.")

	return sb.String()
}

// FormatPercent renders a probability as a percentage rounded to two decimals, e.g. 0.93456 -> "93.46"
func FormatPercent(prob float64) string {
	pct := math.Round(prob*10000) / 100
	s := strconv.FormatFloat(pct, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

type phoneVerdict struct {
	Number string `json:"number"`
	Status string `json:"status"`
	Valid  *bool  `json:"valid"`
	IsScam *bool  `json:"is_scam"`
}

type urlVerdict struct {
	URL         string   `json:"url"`
	Status      string   `json:"status"`
	IsMalicious bool     `json:"is_malicious"`
	ThreatTypes []string `json:"threat_types,omitempty"`
}

// phoneVerdicts drops timestamps so prompts stay deterministic
func phoneVerdicts(in []models.PhoneEnrichment) []phoneVerdict {
	out := make([]phoneVerdict, 0, len(in))
	for _, p := range in {
		out = append(out, phoneVerdict{Number: p.Number, Status: string(p.Status), Valid: p.Valid, IsScam: p.IsScam})
	}
	return out
}

func urlVerdicts(in []models.URLEnrichment) []urlVerdict {
	out := make([]urlVerdict, 0, len(in))
	for _, u := range in {
		v := urlVerdict{URL: u.URL, Status: string(u.Status), IsMalicious: u.IsMalicious}
		for _, m := range u.Matches {
			v.ThreatTypes = append(v.ThreatTypes, m.ThreatType)
		}
		out = append(out, v)
	}
	return out
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	if string(b) == "null" {
		return "[]"
	}
	return string(b)
}
