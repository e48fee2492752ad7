package handlers

import (
	"smishguard/internal/domain/services"
	"smishguard/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health  *HealthHandler
	Scan    *ScanHandler
	Explain *ExplainHandler
}

// Dependencies holds dependencies for handlers
type Dependencies struct {
	Scans          *services.ScanService
	Checks         map[string]Pinger
	MaxUploadBytes int64
	Version        string
	Logger         *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Checks, deps.Version, deps.Logger),
		Scan:    NewScanHandler(deps.Scans, deps.MaxUploadBytes, deps.Logger),
		Explain: NewExplainHandler(deps.Scans, deps.Logger),
	}
}
