// Package http provides the HTTP monitoring surface for the orchestrator.
package http

import (
	"context"

	"github.com/copp1723/seorylie-sub005/internal/conversation/transport"
	"github.com/copp1723/seorylie-sub005/platform/config"
	"github.com/copp1723/seorylie-sub005/platform/logger"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthReporter assembles the full orchestrator health report.
type HealthReporter interface {
	HealthStatus(ctx context.Context) transport.HealthResponse
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the HTTP server configuration.
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness checks (DB ping).
	Health HealthChecker
	// Reporter provides the orchestrator health report.
	Reporter HealthReporter
}
