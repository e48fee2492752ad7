package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"smishguard/internal/domain/models"
	"smishguard/pkg/logger"
)

// PhoneReputationClient checks phone numbers against a hosted validation/scam lookup API
type PhoneReputationClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	config     PhoneReputationConfig
}

// PhoneReputationConfig contains configuration for the phone lookup client
type PhoneReputationConfig struct {
	APIURL            string
	APIKey            string
	CountryCode       string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewPhoneReputationClient creates a new phone reputation client
func NewPhoneReputationClient(cfg PhoneReputationConfig, log *logger.Logger) *PhoneReputationClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = "GB"
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &PhoneReputationClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.WithComponent("phone-reputation"),
		config:  cfg,
	}
}

// phoneLookupResponse is the subset of the lookup API response the verdict depends on
type phoneLookupResponse struct {
	Valid bool `json:"valid"`
	Scam  bool `json:"scam"`
}

// Lookup queries the validation API for one number. Any failure yields an unknown verdict.
func (c *PhoneReputationClient) Lookup(ctx context.Context, number string) models.PhoneEnrichment {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.UnknownPhone(number, fmt.Sprintf("rate limiter: %v", err))
	}

	params := url.Values{}
	params.Set("number", NormalizePhoneNumber(number))
	params.Set("country_code", c.config.CountryCode)
	if c.config.APIKey != "" {
		params.Set("api_key", c.config.APIKey)
	}

	endpoint := c.config.APIURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + params.Encode()
	} else {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to create phone lookup request")
		return models.UnknownPhone(number, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("number", number).Msg("phone lookup request failed")
		return models.UnknownPhone(number, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("number", number).
			Msg("phone lookup returned non-200")
		return models.UnknownPhone(number, fmt.Sprintf("lookup returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var result phoneLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Warn().Err(err).Msg("failed to decode phone lookup response")
		return models.UnknownPhone(number, fmt.Sprintf("decode response: %v", err))
	}

	valid := result.Valid
	isScam := result.Valid && result.Scam

	return models.PhoneEnrichment{
		Number:    number,
		Status:    models.EnrichmentStatusOK,
		Valid:     &valid,
		IsScam:    &isScam,
		CheckedAt: time.Now().UTC(),
	}
}

// NormalizePhoneNumber strips everything but digits and a leading +
func NormalizePhoneNumber(number string) string {
	var sb strings.Builder
	for i, r := range strings.TrimSpace(number) {
		if r == '+' && i == 0 {
			sb.WriteRune(r)
		} else if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
