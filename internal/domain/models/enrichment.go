package models

import "time"

// EnrichmentStatus tells whether a reputation lookup produced a verdict
type EnrichmentStatus string

const (
	EnrichmentStatusOK      EnrichmentStatus = "ok"
	EnrichmentStatusUnknown EnrichmentStatus = "unknown"
	EnrichmentStatusError   EnrichmentStatus = "error"
)

// PhoneEnrichment is the reputation verdict for one extracted phone number.
// Valid and IsScam are nil when the lookup could not be completed.
type PhoneEnrichment struct {
	Number    string           `json:"number"`
	Status    EnrichmentStatus `json:"status"`
	Valid     *bool            `json:"valid"`
	IsScam    *bool            `json:"is_scam"`
	Error     string           `json:"error,omitempty"`
	CheckedAt time.Time        `json:"checked_at"`
}

// ThreatMatch is one raw match record returned by the URL threat service
type ThreatMatch struct {
	ThreatType      string `json:"threatType"`
	PlatformType    string `json:"platformType"`
	ThreatEntryType string `json:"threatEntryType,omitempty"`
	Threat          struct {
		URL string `json:"url"`
	} `json:"threat"`
	CacheDuration string `json:"cacheDuration,omitempty"`
}

// URLEnrichment is the threat verdict for one extracted URL
type URLEnrichment struct {
	URL         string           `json:"url"`
	Domain      string           `json:"domain,omitempty"`
	Status      EnrichmentStatus `json:"status"`
	IsMalicious bool             `json:"is_malicious"`
	Matches     []ThreatMatch    `json:"matches"`
	Error       string           `json:"error,omitempty"`
	CheckedAt   time.Time        `json:"checked_at"`
}

// Enrichment holds verdicts index-aligned with the record's phone numbers and URLs
type Enrichment struct {
	Phones []PhoneEnrichment `json:"enriched_phone_numbers"`
	URLs   []URLEnrichment   `json:"enriched_urls"`
}

// UnknownPhone builds the verdict used when a phone lookup fails
func UnknownPhone(number, detail string) PhoneEnrichment {
	return PhoneEnrichment{
		Number:    number,
		Status:    EnrichmentStatusUnknown,
		Error:     detail,
		CheckedAt: time.Now().UTC(),
	}
}

// FailedURL builds the error-tagged verdict used when a URL lookup fails
func FailedURL(url, detail string) URLEnrichment {
	return URLEnrichment{
		URL:       url,
		Status:    EnrichmentStatusError,
		Matches:   []ThreatMatch{},
		Error:     detail,
		CheckedAt: time.Now().UTC(),
	}
}
