package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smishguard/internal/domain/models"
	"smishguard/pkg/logger"
)

// ScanStore persists scan records by generated identifier
type ScanStore interface {
	Save(ctx context.Context, record *models.ScanRecord) (string, error)
	Load(ctx context.Context, id string) (*models.ScanRecord, error)
}

// TextRecognizer extracts text from an uploaded image
type TextRecognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// TextClassifier labels a message as phishing or benign
type TextClassifier interface {
	Classify(ctx context.Context, text string) (*models.ClassificationResult, error)
}

// ScanService orchestrates extraction, classification, persistence and explanation
type ScanService struct {
	extractor  *Extractor
	classifier TextClassifier
	recognizer TextRecognizer
	store      ScanStore
	enricher   *Enricher
	explainer  *Explainer
	logger     *logger.Logger
}

// ScanServiceDeps holds the collaborators of a ScanService
type ScanServiceDeps struct {
	Extractor  *Extractor
	Classifier TextClassifier
	Recognizer TextRecognizer
	Store      ScanStore
	Enricher   *Enricher
	Explainer  *Explainer
}

// NewScanService creates a new scan service
func NewScanService(deps ScanServiceDeps, log *logger.Logger) *ScanService {
	if deps.Extractor == nil {
		deps.Extractor = NewExtractor(log)
	}
	return &ScanService{
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		recognizer: deps.Recognizer,
		store:      deps.Store,
		enricher:   deps.Enricher,
		explainer:  deps.Explainer,
		logger:     log.WithComponent("scan-service"),
	}
}

// ExtractText runs indicator extraction only. Nothing is persisted.
func (s *ScanService) ExtractText(text string) (*models.Metadata, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required: %w", ErrInvalidInput)
	}
	return s.extractor.Extract(text), nil
}

// ScanImage recognizes the text in an image, then scans it like a message
func (s *ScanService) ScanImage(ctx context.Context, image []byte) (*models.ScanRecord, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image is empty: %w", ErrInvalidInput)
	}
	if s.recognizer == nil {
		return nil, fmt.Errorf("text recognition is not configured")
	}

	text, err := s.recognizer.Recognize(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize text: %w", err)
	}

	return s.ScanMessage(ctx, text)
}

// ScanMessage extracts indicators, classifies the cleaned text and persists the record
func (s *ScanService) ScanMessage(ctx context.Context, text string) (*models.ScanRecord, error) {
	startTime := time.Now()

	meta, err := s.ExtractText(text)
	if err != nil {
		return nil, err
	}

	prediction, err := s.classifier.Classify(ctx, meta.CleanedText)
	if err != nil {
		return nil, fmt.Errorf("failed to classify message: %w", err)
	}

	record := &models.ScanRecord{
		Metadata:   *meta,
		Prediction: prediction,
	}

	id, err := s.store.Save(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to save scan: %w", err)
	}
	record.ID = id

	s.logger.Info().
		Str("scan_id", id).
		Str("label", prediction.LabelName).
		Float64("probability", prediction.Probability).
		Int("phones", len(meta.PhoneNumbers)).
		Int("urls", len(meta.URLs)).
		Dur("duration", time.Since(startTime)).
		Msg("scan completed")

	return record, nil
}

// Explain loads a saved scan, enriches its indicators and asks the model to explain the verdict.
// Load errors are returned unchanged so callers can test for not-found.
func (s *ScanService) Explain(ctx context.Context, scanID string) (*models.ExplainResponse, error) {
	startTime := time.Now()
	log := s.logger.WithScanID(scanID)

	record, err := s.store.Load(ctx, scanID)
	if err != nil {
		return nil, err
	}

	enrichment := s.enricher.Enrich(ctx, record.PhoneNumbers, record.URLs)

	result, err := s.explainer.Explain(ctx, record, enrichment)
	if err != nil {
		return nil, fmt.Errorf("failed to generate explanation: %w", err)
	}

	log.Info().
		Str("status", string(result.Status)).
		Str("confidence", string(result.Confidence)).
		Dur("duration", time.Since(startTime)).
		Msg("explanation generated")

	resp := models.NewExplainResponse(record.ID, result)
	if resp.ScanID == "" {
		resp.ScanID = scanID
	}
	return &resp, nil
}
