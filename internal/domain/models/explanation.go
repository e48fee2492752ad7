package models

import "strings"

// ConfidenceLevel is the model's self-reported confidence in its explanation
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// ParseConfidence normalizes a confidence string case-insensitively.
func ParseConfidence(s string) (ConfidenceLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh, true
	case "medium":
		return ConfidenceMedium, true
	case "low":
		return ConfidenceLow, true
	}
	return "", false
}

// ExplanationStatus is the terminal state of an explanation request
type ExplanationStatus string

const (
	ExplanationParsed      ExplanationStatus = "ok"
	ExplanationParseFailed ExplanationStatus = "parse_failed"
	ExplanationHTTPFailed  ExplanationStatus = "http_failed"
)

// Error markers carried by degraded explanations
const (
	ErrMarkerUnparseable = "Could not parse explanation JSON."
	ErrMarkerUnavailable = "Could not generate explanation at this time."
	ErrMarkerBadResponse = "Response format was invalid."
)

// ExplanationResult is the structured explanation of a verdict
type ExplanationResult struct {
	Confidence ConfidenceLevel   `json:"confidence,omitempty"`
	Summary    string            `json:"summary"`
	Reasons    []string          `json:"reasons"`
	Status     ExplanationStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	Raw        string            `json:"-"`
}

// OK reports whether the explanation was parsed from the model output
func (e *ExplanationResult) OK() bool {
	return e != nil && e.Status == ExplanationParsed
}

// ExplainResponse is the API shape of an explanation
type ExplainResponse struct {
	ScanID     string            `json:"scan_id"`
	Confidence ConfidenceLevel   `json:"confidence"`
	Summary    string            `json:"summary"`
	Reasons    []string          `json:"reasons"`
	Status     ExplanationStatus `json:"status,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// NewExplainResponse flattens an explanation for the HTTP layer
func NewExplainResponse(scanID string, e *ExplanationResult) ExplainResponse {
	resp := ExplainResponse{
		ScanID:     scanID,
		Confidence: e.Confidence,
		Summary:    e.Summary,
		Reasons:    e.Reasons,
	}
	if resp.Reasons == nil {
		resp.Reasons = []string{}
	}
	if !e.OK() {
		resp.Status = e.Status
		resp.Error = e.Error
	}
	return resp
}
