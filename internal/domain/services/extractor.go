package services

import (
	"regexp"
	"strings"

	"smishguard/internal/domain/models"
	"smishguard/pkg/logger"
)

// Indicator patterns. They run over the normalized (lower-cased) text.
var (
	// UK mobile numbers: +44 followed by 4+6 digits, or 07 followed by 3+3+3 digits
	ukPhonePattern = regexp.MustCompile(`\+44\s?\d{4}[\s\n]?\d{6}|\(?07\d{3}\)?[\s\n]?\d{3}[\s\n]?\d{3}`)
	emailPattern   = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	urlPattern     = regexp.MustCompile(`\b(?:https?://)?(?:www\.)?[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}(?:/[^\s]*)?\b`)
)

// Extractor pulls phone numbers, emails and URLs out of scanned message text
type Extractor struct {
	logger *logger.Logger
}

// NewExtractor creates a new indicator extractor
func NewExtractor(log *logger.Logger) *Extractor {
	return &Extractor{
		logger: log.WithComponent("extractor"),
	}
}

// Extract normalizes text and returns its deduplicated indicators.
// It never fails: no matches yield empty, non-nil slices.
func (e *Extractor) Extract(text string) *models.Metadata {
	cleaned := NormalizeText(text)

	emails := dedupe(emailPattern.FindAllString(cleaned, -1))
	phones := dedupe(ukPhonePattern.FindAllString(cleaned, -1))

	emailDomains := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		if at := strings.LastIndexByte(email, '@'); at >= 0 {
			emailDomains[email[at+1:]] = struct{}{}
		}
	}

	urls := make([]string, 0)
	for _, u := range urlPattern.FindAllString(cleaned, -1) {
		if _, isEmailDomain := emailDomains[u]; isEmailDomain {
			continue
		}
		urls = append(urls, u)
	}
	urls = dedupe(urls)

	meta := &models.Metadata{
		Text:         strings.TrimSpace(text),
		CleanedText:  cleaned,
		PhoneNumbers: phones,
		Emails:       emails,
		URLs:         urls,
	}

	e.logger.Debug().
		Int("phone_numbers", len(phones)).
		Int("emails", len(emails)).
		Int("urls", len(urls)).
		Msg("indicators extracted")

	return meta
}

// NormalizeText lower-cases text, trims it and collapses whitespace runs to a single space
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// dedupe removes duplicates keeping first-occurrence order
func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
