package router

import (
	"net/http"

	"github.com/copp1723/seorylie-sub005/internal/conversation"
	apphttp "github.com/copp1723/seorylie-sub005/internal/http"
	"github.com/copp1723/seorylie-sub005/internal/http/response"
	"github.com/copp1723/seorylie-sub005/platform/httpkit"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())

	// Monitoring endpoints are unauthenticated; keep scrapers from hammering
	// the queue inspector.
	limiter := httpkit.NewIPRateLimiter(rate.Limit(5), 10, app.Logger)
	engine.Use(limiter.RateLimit())

	// Full health report. Degraded still answers 200 so load balancers keep
	// routing; only an unhealthy orchestrator is taken out of rotation.
	engine.GET("/api/health", func(c *gin.Context) {
		report := app.Reporter.HealthStatus(c.Request.Context())

		status := http.StatusOK
		if report.Status == conversation.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		response.JSON(c, status, report)
	})

	// Readiness: can we reach the database.
	engine.GET("/api/ready", func(c *gin.Context) {
		if err := app.Health.Ping(c.Request.Context()); err != nil {
			response.Error(c, http.StatusServiceUnavailable, "database unreachable", nil)
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	return engine
}
