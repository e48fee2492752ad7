package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"smishguard/internal/domain/models"
	"smishguard/internal/domain/services/ai"
	"smishguard/pkg/logger"
)

func testRecord() *models.ScanRecord {
	return &models.ScanRecord{
		ID: "7b1c0f5e-0000-4000-8000-000000000001",
		Metadata: models.Metadata{
			Text:         "Your parcel is held. Pay at royalmail-fee.com or call 07826514174",
			PhoneNumbers: []string{"07826514174"},
			URLs:         []string{"royalmail-fee.com"},
		},
		Prediction: &models.ClassificationResult{Label: models.LabelPhishing, LabelName: "phishing", Probability: 0.93456},
	}
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:     "chatcmpl-1",
		Object: "chat.completion",
		Model:  "test-model",
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			Message:      openai.ChatCompletionMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	}
}

func newTestExplainer(t *testing.T, handler http.HandlerFunc) *Explainer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	llm := ai.NewLLMClient(ai.LLMConfig{
		BaseURL: server.URL,
		APIKey:  "hf_test",
		Model:   "test-model",
		Timeout: 5 * time.Second,
	}, logger.NewNop())
	return NewExplainer(llm, logger.NewNop())
}

func TestExplainer_Explain(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		jsonBody    any
		wantStatus  models.ExplanationStatus
		wantError   string
		wantSummary string
	}{
		{
			name:   "json surrounded by commentary",
			status: http.StatusOK,
			jsonBody: chatResponse("<think>checking</think> Here you go:\n" +
				`{"confidence": "high", "summary": "Fake delivery fee.", "reasons": ["Urgent payment", " ", "Unknown domain"]}` +
				"\nHope that helps."),
			wantStatus:  models.ExplanationParsed,
			wantSummary: "Fake delivery fee.",
		},
		{
			name:       "no json in answer",
			status:     http.StatusOK,
			jsonBody:   chatResponse("This message looks suspicious."),
			wantStatus: models.ExplanationParseFailed,
			wantError:  models.ErrMarkerUnparseable,
		},
		{
			name:       "no choices",
			status:     http.StatusOK,
			jsonBody:   openai.ChatCompletionResponse{ID: "chatcmpl-2", Choices: []openai.ChatCompletionChoice{}},
			wantStatus: models.ExplanationParseFailed,
			wantError:  models.ErrMarkerBadResponse,
		},
		{
			name:       "malformed body",
			status:     http.StatusOK,
			body:       `{bad`,
			wantStatus: models.ExplanationParseFailed,
			wantError:  models.ErrMarkerBadResponse,
		},
		{
			name:       "api error",
			status:     http.StatusInternalServerError,
			body:       `{"error":{"message":"model overloaded","type":"server_error"}}`,
			wantStatus: models.ExplanationHTTPFailed,
			wantError:  models.ErrMarkerUnavailable,
		},
		{
			name:       "plain text error",
			status:     http.StatusBadGateway,
			body:       `upstream timeout`,
			wantStatus: models.ExplanationHTTPFailed,
			wantError:  models.ErrMarkerUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			explainer := newTestExplainer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/chat/completions" {
					t.Errorf("path = %s, want /chat/completions", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer hf_test" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}

				var req openai.ChatCompletionRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if len(req.Messages) != 1 || req.Messages[0].Role != openai.ChatMessageRoleUser {
					t.Errorf("expected a single user message, got %+v", req.Messages)
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				if tt.jsonBody != nil {
					_ = json.NewEncoder(w).Encode(tt.jsonBody)
					return
				}
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := explainer.Explain(context.Background(), testRecord(), &models.Enrichment{})
			if err != nil {
				t.Fatalf("Explain() error = %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Fatalf("Status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantError)
			}
			if got.Reasons == nil {
				t.Error("Reasons must never be nil")
			}
			if tt.wantStatus == models.ExplanationParsed {
				if got.Confidence != models.ConfidenceHigh {
					t.Errorf("Confidence = %q, want High", got.Confidence)
				}
				if got.Summary != tt.wantSummary {
					t.Errorf("Summary = %q", got.Summary)
				}
				if len(got.Reasons) != 2 {
					t.Errorf("Reasons = %v, want blank entry dropped", got.Reasons)
				}
			}
		})
	}
}

func TestExplainer_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	llm := ai.NewLLMClient(ai.LLMConfig{BaseURL: addr, APIKey: "k", Timeout: time.Second}, logger.NewNop())
	explainer := NewExplainer(llm, logger.NewNop())

	_, err := explainer.Explain(context.Background(), testRecord(), nil)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestDecodeExplanation(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantOK         bool
		wantConfidence models.ConfidenceLevel
		wantReasons    int
	}{
		{name: "bare object", raw: `{"confidence":"Medium","summary":"s","reasons":["a","b","c"]}`, wantOK: true, wantConfidence: models.ConfidenceMedium, wantReasons: 3},
		{name: "leading whitespace in object", raw: "Answer: {\n  \"confidence\": \"LOW\", \"summary\": \"s\", \"reasons\": []}", wantOK: true, wantConfidence: models.ConfidenceLow},
		{name: "too many reasons", raw: `{"confidence":"High","summary":"s","reasons":["1","2","3","4","5"]}`, wantOK: true, wantConfidence: models.ConfidenceHigh, wantReasons: 3},
		{name: "missing reasons", raw: `{"confidence":"High","summary":"s"}`, wantOK: true, wantConfidence: models.ConfidenceHigh},
		{name: "unknown confidence", raw: `{"confidence":"Very high","summary":"s","reasons":[]}`},
		{name: "confidence not first key", raw: `{"summary":"s","confidence":"High"}`},
		{name: "truncated json", raw: `{"confidence":"High","summary":"s","reasons":["a"`},
		{name: "empty", raw: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeExplanation(tt.raw)
			if got.OK() != tt.wantOK {
				t.Fatalf("OK() = %v, want %v (status %q)", got.OK(), tt.wantOK, got.Status)
			}
			if got.Raw != tt.raw {
				t.Errorf("Raw = %q, want input preserved", got.Raw)
			}
			if !tt.wantOK {
				if got.Status != models.ExplanationParseFailed || got.Error != models.ErrMarkerUnparseable {
					t.Errorf("failed decode = %+v", got)
				}
				return
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %q, want %q", got.Confidence, tt.wantConfidence)
			}
			if len(got.Reasons) != tt.wantReasons {
				t.Errorf("len(Reasons) = %d, want %d", len(got.Reasons), tt.wantReasons)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	record := testRecord()
	valid, scam := true, true
	enrichment := &models.Enrichment{
		Phones: []models.PhoneEnrichment{{Number: "07826514174", Status: models.EnrichmentStatusOK, Valid: &valid, IsScam: &scam, CheckedAt: time.Now()}},
		URLs:   []models.URLEnrichment{models.FailedURL("royalmail-fee.com", "timeout")},
	}

	prompt := BuildPrompt(record, enrichment)

	for _, want := range []string{
		record.Text,
		"Model phishing probability: 93.46%",
		`Extracted phone numbers: ["07826514174"]`,
		`Extracted URLs: ["royalmail-fee.com"]`,
		`"is_scam":true`,
		`"status":"error"`,
		`"confidence": "High" | "Medium" | "Low"`,
		"Do not write in first person",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\n%s", want, prompt)
		}
	}

	enrichment.Phones[0].CheckedAt = time.Now().Add(time.Hour)
	if again := BuildPrompt(record, enrichment); again != prompt {
		t.Error("BuildPrompt is not deterministic")
	}
}

func TestBuildPrompt_EmptyRecord(t *testing.T) {
	prompt := BuildPrompt(&models.ScanRecord{}, nil)
	for _, want := range []string{
		"Model phishing probability: 0.0%",
		"Extracted phone numbers: []",
		"Phone legitimacy check: []",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	tests := map[float64]string{
		0:       "0.0",
		0.5:     "50.0",
		0.93456: "93.46",
		1:       "100.0",
		0.071:   "7.1",
	}
	for in, want := range tests {
		if got := FormatPercent(in); got != want {
			t.Errorf("FormatPercent(%v) = %q, want %q", in, got, want)
		}
	}
}
