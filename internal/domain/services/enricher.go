package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"smishguard/internal/domain/models"
	"smishguard/pkg/logger"
)

// Cache key prefixes for reputation verdicts
const (
	keyPhoneVerdictPrefix = "reputation:phone:"
	keyURLVerdictPrefix   = "reputation:url:"
)

// PhoneLookup resolves a reputation verdict for one phone number
type PhoneLookup interface {
	Lookup(ctx context.Context, number string) models.PhoneEnrichment
}

// URLLookup resolves a threat verdict for one URL
type URLLookup interface {
	Lookup(ctx context.Context, rawURL string) models.URLEnrichment
}

// VerdictCache stores successful verdicts between scans
type VerdictCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// EnricherConfig holds enrichment fan-out settings
type EnricherConfig struct {
	Concurrency int
	CacheTTL    time.Duration
}

// Enricher attaches third-party reputation verdicts to extracted indicators
type Enricher struct {
	phones PhoneLookup
	urls   URLLookup
	cache  VerdictCache
	config EnricherConfig
	logger *logger.Logger
}

// NewEnricher creates a new enricher. A nil lookup marks that indicator kind as unavailable;
// a nil cache disables verdict caching.
func NewEnricher(phones PhoneLookup, urls URLLookup, cache VerdictCache, cfg EnricherConfig, log *logger.Logger) *Enricher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if phones == nil {
		phones = unavailablePhoneLookup{}
	}
	if urls == nil {
		urls = unavailableURLLookup{}
	}

	return &Enricher{
		phones: phones,
		urls:   urls,
		cache:  cache,
		config: cfg,
		logger: log.WithComponent("enricher"),
	}
}

// Enrich looks up every phone number and URL concurrently. The returned slices have the
// same length and order as the inputs; failed lookups are represented as data.
func (e *Enricher) Enrich(ctx context.Context, phones, urls []string) *models.Enrichment {
	result := &models.Enrichment{
		Phones: make([]models.PhoneEnrichment, len(phones)),
		URLs:   make([]models.URLEnrichment, len(urls)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for i, number := range phones {
		i, number := i, number
		g.Go(func() error {
			result.Phones[i] = e.lookupPhone(gctx, number)
			return nil
		})
	}
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			result.URLs[i] = e.lookupURL(gctx, u)
			return nil
		})
	}

	// Tasks never return errors.
	_ = g.Wait()

	e.logger.Debug().
		Int("phones", len(phones)).
		Int("urls", len(urls)).
		Int("failed", countFailed(result)).
		Msg("enrichment completed")

	return result
}

func (e *Enricher) lookupPhone(ctx context.Context, number string) models.PhoneEnrichment {
	key := keyPhoneVerdictPrefix + NormalizePhoneNumber(number)

	if e.cache != nil {
		var cached models.PhoneEnrichment
		if err := e.cache.GetJSON(ctx, key, &cached); err == nil {
			cached.Number = number
			return cached
		}
	}

	verdict := e.phones.Lookup(ctx, number)
	if verdict.Status == models.EnrichmentStatusOK && e.cache != nil {
		if err := e.cache.SetJSON(ctx, key, verdict, e.config.CacheTTL); err != nil {
			e.logger.Debug().Err(err).Msg("failed to cache phone verdict")
		}
	}
	return verdict
}

func (e *Enricher) lookupURL(ctx context.Context, rawURL string) models.URLEnrichment {
	key := keyURLVerdictPrefix + rawURL

	if e.cache != nil {
		var cached models.URLEnrichment
		if err := e.cache.GetJSON(ctx, key, &cached); err == nil {
			return cached
		}
	}

	verdict := e.urls.Lookup(ctx, rawURL)
	if verdict.Status == models.EnrichmentStatusOK && e.cache != nil {
		if err := e.cache.SetJSON(ctx, key, verdict, e.config.CacheTTL); err != nil {
			e.logger.Debug().Err(err).Msg("failed to cache url verdict")
		}
	}
	return verdict
}

func countFailed(r *models.Enrichment) int {
	n := 0
	for _, p := range r.Phones {
		if p.Status != models.EnrichmentStatusOK {
			n++
		}
	}
	for _, u := range r.URLs {
		if u.Status != models.EnrichmentStatusOK {
			n++
		}
	}
	return n
}

type unavailablePhoneLookup struct{}

func (unavailablePhoneLookup) Lookup(_ context.Context, number string) models.PhoneEnrichment {
	return models.UnknownPhone(number, "phone reputation lookup not configured")
}

type unavailableURLLookup struct{}

func (unavailableURLLookup) Lookup(_ context.Context, rawURL string) models.URLEnrichment {
	return models.FailedURL(rawURL, "url threat lookup not configured")
}
