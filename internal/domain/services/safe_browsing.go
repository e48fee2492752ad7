package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"smishguard/internal/domain/models"
	"smishguard/pkg/logger"
)

// Threat types requested for every URL lookup
var safeBrowsingThreatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE"}

// SafeBrowsingClient checks URLs against the Google Safe Browsing v4 Lookup API
type SafeBrowsingClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	config     SafeBrowsingConfig
}

// SafeBrowsingConfig holds configuration for Google Safe Browsing
type SafeBrowsingConfig struct {
	APIURL            string
	APIKey            string
	ClientID          string
	ClientVersion     string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewSafeBrowsingClient creates a new Google Safe Browsing client
func NewSafeBrowsingClient(cfg SafeBrowsingConfig, log *logger.Logger) *SafeBrowsingClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "smishguard"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "1.0.0"
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &SafeBrowsingClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.WithComponent("safe-browsing"),
		config:  cfg,
	}
}

// API request/response types
type safeBrowsingRequest struct {
	Client     safeBrowsingClientInfo `json:"client"`
	ThreatInfo threatInfo             `json:"threatInfo"`
}

type safeBrowsingClientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type safeBrowsingResponse struct {
	Matches []models.ThreatMatch `json:"matches"`
}

// Lookup checks a single URL. Non-200 responses and transport failures produce an
// error-tagged enrichment instead of an error.
func (c *SafeBrowsingClient) Lookup(ctx context.Context, rawURL string) models.URLEnrichment {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.FailedURL(rawURL, fmt.Sprintf("rate limiter: %v", err))
	}

	reqBody := safeBrowsingRequest{
		Client: safeBrowsingClientInfo{
			ClientID:      c.config.ClientID,
			ClientVersion: c.config.ClientVersion,
		},
		ThreatInfo: threatInfo{
			ThreatTypes:      safeBrowsingThreatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    []threatEntry{{URL: rawURL}},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.FailedURL(rawURL, fmt.Sprintf("marshal request: %v", err))
	}

	endpoint := c.config.APIURL
	if c.config.APIKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.config.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return models.FailedURL(rawURL, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", rawURL).Msg("Safe Browsing request failed")
		return models.FailedURL(rawURL, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("url", rawURL).
			Msg("Safe Browsing returned non-200")
		return models.FailedURL(rawURL, fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var apiResp safeBrowsingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil && err != io.EOF {
		return models.FailedURL(rawURL, fmt.Sprintf("decode response: %v", err))
	}

	matches := apiResp.Matches
	if matches == nil {
		matches = []models.ThreatMatch{}
	}

	c.logger.Debug().
		Str("url", rawURL).
		Int("threats_found", len(matches)).
		Msg("Safe Browsing check completed")

	return models.URLEnrichment{
		URL:         rawURL,
		Domain:      RegistrableDomain(rawURL),
		Status:      models.EnrichmentStatusOK,
		IsMalicious: len(matches) > 0,
		Matches:     matches,
		CheckedAt:   time.Now().UTC(),
	}
}

// RegistrableDomain returns the eTLD+1 of a URL-like string, or "" if it has no host
func RegistrableDomain(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	if host == "" {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}
