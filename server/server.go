// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/serani-ai/serani/ai/contextcomp"
	"github.com/serani-ai/serani/ai/intent"
	"github.com/serani-ai/serani/ai/llm"
	"github.com/serani-ai/serani/ai/metrics"
	"github.com/serani-ai/serani/ai/router"
	"github.com/serani-ai/serani/ai/summary"
	"github.com/serani-ai/serani/ai/task"
	"github.com/serani-ai/serani/ai/timeparse"
	"github.com/serani-ai/serani/internal/profile"
	"github.com/serani-ai/serani/store"
)

// Server wires the orchestration core behind an echo HTTP server.
type Server struct {
	e       *echo.Echo
	profile *profile.Profile
	store   *store.Store

	router   *router.Router
	sessions *router.Sessions
	worker   *summary.Worker
	exporter *metrics.PrometheusExporter

	workerCancel context.CancelFunc
}

// NewServer assembles the full stack from the profile. A missing LLM key
// does not fail startup: the language services are replaced with
// always-failing placeholders and every handler degrades gracefully.
func NewServer(ctx context.Context, profile *profile.Profile, st *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

	var llmSvc llm.Service
	var embedder llm.EmbeddingService
	if profile.IsAIEnabled() {
		var err error
		llmSvc, err = llm.NewService(&llm.Config{
			Provider: profile.LLMProvider,
			Model:    profile.LLMModel,
			APIKey:   profile.LLMAPIKey,
			BaseURL:  profile.LLMBaseURL,
			Timeout:  profile.LLMTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create llm service: %w", err)
		}
		embedder, err = llm.NewEmbeddingService(&llm.EmbeddingConfig{
			Model:      profile.EmbeddingModel,
			APIKey:     profile.EmbeddingAPIKey,
			BaseURL:    profile.EmbeddingBaseURL,
			Dimensions: profile.EmbeddingDimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding service: %w", err)
		}
		llmSvc = llm.NewInstrumented(llmSvc, profile.LLMModel, exporter)
		embedder = llm.NewCachedEmbedding(embedder, 512, 10*time.Minute)
	} else {
		slog.Warn("server: no LLM API key configured, language features are degraded")
		llmSvc = llm.NewUnavailable()
		embedder = llm.NewUnavailableEmbedding()
	}

	resolver := timeparse.NewResolver()
	composer := contextcomp.NewComposer(embedder, st, profile.RetrievalTopK, profile.ContextBudgetChars)
	worker := summary.NewWorker(
		summary.NewSummarizer(llmSvc),
		embedder,
		st,
		exporter,
		profile.SummaryEveryNTurns*2,
		profile.SummaryRetryLimit,
	)

	chatRouter := router.New(
		llmSvc,
		intent.NewClassifier(llmSvc),
		task.NewExtractor(llmSvc, resolver, profile.DefaultTaskDurationMin),
		resolver,
		composer,
		st,
		worker,
		exporter,
		router.Config{
			RecentTurnLimit:            profile.RecentTurnLimit,
			ClarificationRetries:       profile.ClarificationRetries,
			DefaultDurationMin:         profile.DefaultTaskDurationMin,
			HardDeleteOnConflictCancel: profile.HardDeleteOnConflictCancel,
		},
	)

	s := &Server{
		e:        e,
		profile:  profile,
		store:    st,
		router:   chatRouter,
		sessions: router.NewSessions(profile.SummaryEveryNTurns),
		worker:   worker,
		exporter: exporter,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": s.profile.Version,
		})
	})
	s.e.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))
	s.e.POST("/api/v1/chat", s.handleChat)
}

// Start launches the summarization worker and the HTTP listener. It does
// not block.
func (s *Server) Start(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(ctx)
	s.workerCancel = cancel
	go func() {
		if err := s.worker.Run(workerCtx); err != nil {
			slog.Error("summary worker exited", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	go func() {
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
		}
	}()
	slog.Info("server started", "addr", addr, "driver", s.profile.Driver, "mode", s.profile.Mode)
	return nil
}

// Shutdown drains the HTTP server and stops the background worker.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.e.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if s.workerCancel != nil {
		s.workerCancel()
	}
	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shutdown complete")
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.e
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	})
}
