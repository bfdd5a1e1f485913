package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"lead-ingest/api/router"
	"lead-ingest/config"
	"lead-ingest/internal/ingest"
	"lead-ingest/internal/metaads"
	"lead-ingest/internal/queue"
	"lead-ingest/internal/storage"
	"lead-ingest/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	httpServer    *http.Server
	metricsServer *http.Server
	logger        *logger.Logger
	store         *storage.MongoDB
	publisher     queue.Publisher
}

func NewServer(cfg *config.Config, logger *logger.Logger) (*Server, error) {
	log := logger.Desugar()

	store, err := storage.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	var publisher queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		rmq, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
			return nil, fmt.Errorf("failed to create rabbitmq publisher: %w", err)
		}
		publisher = rmq
	} else {
		logger.Info("RabbitMQ URL not set, lead events are disabled")
	}

	resolver := metaads.NewResolver(metaads.Config{
		BaseURL:     cfg.Graph.BaseURL,
		Version:     cfg.Graph.Version,
		Timeout:     cfg.Graph.Timeout,
		RedactToken: cfg.Graph.RedactToken,
	}, log)

	svc := ingest.NewService(store, store, store, resolver, publisher, log)

	r := router.Setup(logger, router.Dependencies{
		Ingester: svc,
		Leads:    store,
		Store:    store,
	}, cfg)

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Monitoring.MetricsPath, promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort),
		Handler: metricsMux,
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		metricsServer: metricsServer,
		logger:        logger,
		store:         store,
		publisher:     publisher,
	}, nil
}

func (s *Server) Start() error {
	go func() {
		s.logger.Info("Metrics server starting on " + s.metricsServer.Addr)
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("metrics server error: %v", err)
		}
	}()

	s.logger.Info("Server starting on " + s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests before closing the broker and database
// connections they may still be using.
func (s *Server) Shutdown() error {
	s.logger.Info("Server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if mErr := s.metricsServer.Shutdown(ctx); mErr != nil {
		s.logger.Desugar().Error("failed to stop metrics server", zap.Error(mErr))
	}
	if pErr := s.publisher.Close(); pErr != nil {
		s.logger.Desugar().Error("failed to close publisher", zap.Error(pErr))
	}
	if sErr := s.store.Close(ctx); sErr != nil {
		s.logger.Desugar().Error("failed to close mongodb", zap.Error(sErr))
	}
	return err
}
