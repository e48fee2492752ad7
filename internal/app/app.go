// Package app assembles the scan pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"smishguard/internal/api/middleware"
	"smishguard/internal/config"
	"smishguard/internal/domain/services"
	"smishguard/internal/domain/services/ai"
	"smishguard/internal/infrastructure/cache"
	"smishguard/internal/infrastructure/database"
	"smishguard/internal/infrastructure/storage"
	"smishguard/pkg/logger"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache is served by both the Redis and the in-process cache
type Cache interface {
	services.VerdictCache
	middleware.RateLimitStore
	Pinger
}

// App holds the wired pipeline and the infrastructure it owns
type App struct {
	Scans  *services.ScanService
	Cache  Cache
	Checks map[string]Pinger

	db    *database.PostgresDB
	redis *cache.RedisCache
	log   *logger.Logger
}

// New connects storage and cache, then builds the scan service on top of them.
// The OCR engine is supplied by the caller because it links against native libraries.
func New(ctx context.Context, cfg *config.Config, recognizer services.TextRecognizer, log *logger.Logger) (*App, error) {
	a := &App{
		Checks: make(map[string]Pinger),
		log:    log.WithComponent("app"),
	}

	store, err := a.initStorage(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Cache = a.initCache(ctx, cfg)

	a.Scans = services.NewScanService(services.ScanServiceDeps{
		Extractor:  services.NewExtractor(log),
		Classifier: NewClassifier(cfg, log),
		Recognizer: recognizer,
		Store:      store,
		Enricher:   newEnricher(cfg, a.Cache, log),
		Explainer:  services.NewExplainer(newLLMClient(cfg, log), log),
	}, log)

	return a, nil
}

func (a *App) initStorage(ctx context.Context, cfg *config.Config) (services.ScanStore, error) {
	if cfg.Storage.Backend != "postgres" {
		store, err := storage.NewFileStore(cfg.Storage.ResultsDir, a.log)
		if err != nil {
			return nil, fmt.Errorf("failed to open results directory: %w", err)
		}
		a.log.Info().Str("dir", cfg.Storage.ResultsDir).Msg("using file storage")
		a.Checks["storage"] = store
		return store, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database, a.log)
	if err != nil {
		return nil, err
	}
	a.db = db

	if err := db.Migrate(ctx); err != nil {
		return nil, err
	}
	a.Checks["postgres"] = db

	return storage.NewPostgresStore(db.Pool(), a.log), nil
}

// initCache prefers Redis and falls back to an in-process cache when Redis is off or unreachable
func (a *App) initCache(ctx context.Context, cfg *config.Config) Cache {
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis, a.log)
		if err == nil {
			a.redis = redisCache
			a.Checks["redis"] = redisCache
			return redisCache
		}
		a.log.Warn().Err(err).Msg("failed to connect to Redis, falling back to in-memory cache")
	}
	return cache.NewMemoryCache(cfg.Reputation.CacheTTL, 10*time.Minute)
}

// NewClassifier builds the hosted classifier from configuration
func NewClassifier(cfg *config.Config, log *logger.Logger) *services.Classifier {
	return services.NewClassifier(services.ClassifierConfig{
		Model:        cfg.Classifier.Model,
		InferenceURL: cfg.Classifier.InferenceURL,
		HubURL:       cfg.Classifier.HubURL,
		Token:        cfg.HuggingFace.Token,
		Threshold:    cfg.Classifier.Threshold,
		MaxChars:     cfg.Classifier.MaxChars,
		Timeout:      cfg.Classifier.Timeout,
	}, log)
}

func newLLMClient(cfg *config.Config, log *logger.Logger) *ai.LLMClient {
	return ai.NewLLMClient(ai.LLMConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, log)
}

// newEnricher leaves a lookup nil when its provider is disabled so the enricher
// reports it as unavailable.
func newEnricher(cfg *config.Config, verdicts services.VerdictCache, log *logger.Logger) *services.Enricher {
	var phones services.PhoneLookup
	if p := cfg.Reputation.Phone; p.Enabled {
		phones = services.NewPhoneReputationClient(services.PhoneReputationConfig{
			APIURL:            p.APIURL,
			APIKey:            p.APIKey,
			CountryCode:       p.CountryCode,
			Timeout:           p.Timeout,
			RequestsPerSecond: p.RequestsPerSecond,
		}, log)
	}

	var urls services.URLLookup
	if sb := cfg.Reputation.SafeBrowsing; sb.Enabled {
		urls = services.NewSafeBrowsingClient(services.SafeBrowsingConfig{
			APIURL:            sb.APIURL,
			APIKey:            sb.APIKey,
			ClientID:          sb.ClientID,
			ClientVersion:     sb.ClientVersion,
			Timeout:           sb.Timeout,
			RequestsPerSecond: sb.RequestsPerSecond,
		}, log)
	}

	return services.NewEnricher(phones, urls, verdicts, services.EnricherConfig{
		Concurrency: cfg.Reputation.Concurrency,
		CacheTTL:    cfg.Reputation.CacheTTL,
	}, log)
}

// Close releases database and Redis connections
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close Redis")
		}
	}
}
