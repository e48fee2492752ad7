package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"smishguard/internal/domain/models"
	"smishguard/pkg/logger"
)

const (
	defaultPhishingLabel = "LABEL_1"
	defaultBenignLabel   = "LABEL_0"
)

// ClassifierConfig contains configuration for the hosted text classifier
type ClassifierConfig struct {
	Model        string
	InferenceURL string
	HubURL       string
	Token        string
	Threshold    float64 // applied as given, 0 labels everything phishing
	MaxChars     int
	Timeout      time.Duration
}

// Classifier scores messages with a hosted sequence-classification model
type Classifier struct {
	httpClient *http.Client
	logger     *logger.Logger
	config     ClassifierConfig

	labelsOnce    sync.Once
	phishingLabel string
	benignLabel   string
}

// NewClassifier creates a new classifier
func NewClassifier(cfg ClassifierConfig, log *logger.Logger) *Classifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 512
	}
	cfg.InferenceURL = strings.TrimRight(cfg.InferenceURL, "/")
	cfg.HubURL = strings.TrimRight(cfg.HubURL, "/")

	return &Classifier{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.WithComponent("classifier"),
		config: cfg,
	}
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type modelConfig struct {
	ID2Label map[string]string `json:"id2label"`
}

// Classify returns the phishing probability and thresholded label for a message
func (c *Classifier) Classify(ctx context.Context, text string) (*models.ClassificationResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("classify: %w", ErrInvalidInput)
	}

	phishingLabel, benignLabel := c.labels(ctx)

	scores, err := c.infer(ctx, truncateRunes(text, c.config.MaxChars))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	prob, ok := phishingProbability(scores, phishingLabel, benignLabel)
	if !ok {
		return nil, fmt.Errorf("%w: response has no score for %q", ErrClassifierUnavailable, phishingLabel)
	}

	result := NewClassificationResult(prob, c.config.Threshold)

	c.logger.Debug().
		Float64("probability", result.Probability).
		Str("label", result.LabelName).
		Msg("message classified")

	return result, nil
}

// NewClassificationResult clamps prob to [0,1] and applies the threshold
func NewClassificationResult(prob, threshold float64) *models.ClassificationResult {
	switch {
	case prob < 0:
		prob = 0
	case prob > 1:
		prob = 1
	}

	label := models.LabelBenign
	if prob >= threshold {
		label = models.LabelPhishing
	}

	return &models.ClassificationResult{
		Label:       label,
		LabelName:   label.Name(),
		Probability: prob,
	}
}

// labels loads the model's id2label map once per process and returns the names of
// class 1 and class 0. Load failures fall back to the default LABEL_n naming.
func (c *Classifier) labels(ctx context.Context) (string, string) {
	c.labelsOnce.Do(func() {
		c.phishingLabel = defaultPhishingLabel
		c.benignLabel = defaultBenignLabel

		if c.config.HubURL == "" {
			return
		}

		// Detached from the caller so a cancelled first request cannot poison the shared load.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
		defer cancel()

		cfg, err := c.fetchModelConfig(loadCtx)
		if err != nil {
			c.logger.Warn().Err(err).Str("model", c.config.Model).Msg("failed to load label map, using defaults")
			return
		}
		if name, ok := cfg.ID2Label[strconv.Itoa(int(models.LabelPhishing))]; ok && name != "" {
			c.phishingLabel = name
		}
		if name, ok := cfg.ID2Label[strconv.Itoa(int(models.LabelBenign))]; ok && name != "" {
			c.benignLabel = name
		}

		c.logger.Info().
			Str("model", c.config.Model).
			Str("phishing_label", c.phishingLabel).
			Str("benign_label", c.benignLabel).
			Int("labels", len(cfg.ID2Label)).
			Msg("label map loaded")
	})
	return c.phishingLabel, c.benignLabel
}

func (c *Classifier) fetchModelConfig(ctx context.Context) (*modelConfig, error) {
	endpoint := fmt.Sprintf("%s/%s/resolve/main/config.json", c.config.HubURL, c.config.Model)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model config returned status %d", resp.StatusCode)
	}

	var cfg modelConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode model config: %w", err)
	}
	return &cfg, nil
}

func (c *Classifier) infer(ctx context.Context, text string) ([]labelScore, error) {
	body, err := json.Marshal(map[string]any{
		"inputs":  text,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.config.InferenceURL + "/" + c.config.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return decodeLabelScores(raw)
}

// decodeLabelScores accepts both the batched [[{label,score}]] and flat [{label,score}] shapes
func decodeLabelScores(raw []byte) ([]labelScore, error) {
	var batched [][]labelScore
	if err := json.Unmarshal(raw, &batched); err == nil {
		if len(batched) == 0 {
			return nil, fmt.Errorf("empty inference response")
		}
		return batched[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("unexpected inference response: %w", err)
	}
	return flat, nil
}

// phishingProbability finds the score of the phishing class. A lone benign score is
// turned into its complement; any other label is unusable.
func phishingProbability(scores []labelScore, phishingLabel, benignLabel string) (float64, bool) {
	for _, s := range scores {
		if strings.EqualFold(s.Label, phishingLabel) {
			return s.Score, true
		}
	}
	if len(scores) == 1 && strings.EqualFold(scores[0].Label, benignLabel) {
		return 1 - scores[0].Score, true
	}
	return 0, false
}

func (c *Classifier) authorize(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
