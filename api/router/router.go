package router

import (
	"context"
	"net/http"
	"time"

	"lead-ingest/api/handlers"
	"lead-ingest/api/middleware"
	"lead-ingest/config"
	"lead-ingest/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether the document store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the routes are built on.
type Dependencies struct {
	Ingester handlers.Ingester
	Leads    handlers.LeadRepository
	Store    Pinger
}

func Setup(logger *logger.Logger, deps Dependencies, cfg *config.Config) *gin.Engine {
	log := logger.Desugar()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(log))

	security := middleware.NewSecurityMiddleware(
		log,
		cfg.Security.APIKeys,
		cfg.Security.APIKeyHeader,
	)
	router.Use(security.CORS())

	router.GET("/health", func(c *gin.Context) {
		if deps.Store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Store.Ping(ctx); err != nil {
				log.Warn("Health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mongodb": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))

	webhook := handlers.NewWebhookHandler(log, deps.Ingester, cfg.Security.VerifyToken)
	router.POST("/webhook/:userId", webhook.HandleWebhook)
	router.GET("/webhook/:userId", webhook.Verify)
	router.POST("/webhook", webhook.MissingUserID)
	router.GET("/webhook", webhook.MissingUserID)

	leads := handlers.NewLeadsHandler(log, deps.Leads, cfg.Security.CRMLocationID)
	api := router.Group("/api", security.Authenticate())
	{
		users := api.Group("/users/:userId")
		users.GET("/leads", leads.ListLeads)
		users.GET("/logs", leads.ListLogs)
		users.GET("/errors", leads.ListErrors)
		users.PUT("/settings", security.RequireJSON(), leads.UpdateSettings)
	}

	log.Info("Router configured",
		zap.String("api_key_header", cfg.Security.APIKeyHeader),
		zap.Int("configured_clients", len(cfg.Security.APIKeys)),
		zap.Bool("verify_token_set", cfg.Security.VerifyToken != ""),
	)

	return router
}
