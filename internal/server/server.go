package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"genprovider/internal/config"
	"genprovider/internal/logger"
	"genprovider/internal/models"
	"genprovider/internal/orchestrator"
	"genprovider/internal/registry"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 5 * time.Minute
	idleTimeout         = 120 * time.Second
)

type Server struct {
	cfg     config.Config
	orch    *orchestrator.Orchestrator
	app     *echo.Echo
	address string
	log     *slog.Logger
}

// New constructs an HTTP server over the orchestrator.
func New(cfg config.Config, orch *orchestrator.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, errors.New("orchestrator must not be nil")
	}
	if orch.Registry() == nil {
		return nil, errors.New("orchestrator must carry a model registry")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.NewComponentLogger("server")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"request_id", v.RequestID,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:     cfg,
		orch:    orch,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
		log:     log,
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	s.log.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.log.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/v1/models", s.handleModels)
	s.app.POST("/v1/models/select", s.handleSelect)
	s.app.POST("/v1/generate", s.handleGenerate)
	s.app.POST("/v1/generate/auto", s.handleGenerateAuto)
	s.app.GET("/v1/stats", s.handleStats)
	s.app.GET("/v1/provider", s.handleProvider)
	s.app.POST("/v1/provider", s.handleSwitchProvider)
}

func (s *Server) handleHealth(c echo.Context) error {
	body := map[string]any{"status": "ok"}
	active, err := s.orch.Active()
	if err != nil {
		body["provider"] = nil
	} else {
		body["provider"] = active.Name()
	}

	if c.QueryParam("deep") == "true" {
		healthy := s.orch.HealthCheck(c.Request().Context())
		body["provider_healthy"] = healthy
		if !healthy {
			body["status"] = "degraded"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
	}
	return c.JSON(http.StatusOK, body)
}

// handleModels lists available registry models, optionally for one
// provider. ?use_case= returns that use case's preference list instead, and
// ?source=active asks the active adapter.
func (s *Server) handleModels(c echo.Context) error {
	if c.QueryParam("source") == "active" {
		list, err := s.orch.Models(c.Request().Context())
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(http.StatusOK, map[string]any{"models": list})
	}

	var filter *models.ProviderType
	if name := c.QueryParam("provider"); name != "" {
		pt, err := models.ParseProviderType(name)
		if err != nil {
			return requestError{Status: http.StatusBadRequest, Message: err.Error(), Type: "invalid_request_error"}
		}
		filter = &pt
	}

	if name := c.QueryParam("use_case"); name != "" {
		uc, err := models.ParseUseCase(name)
		if err != nil {
			return requestError{Status: http.StatusBadRequest, Message: err.Error(), Type: "invalid_request_error"}
		}
		recommended := make([]models.ModelDescriptor, 0)
		for _, d := range s.orch.Registry().Recommended(uc) {
			if filter == nil || d.Provider == *filter {
				recommended = append(recommended, d)
			}
		}
		return c.JSON(http.StatusOK, map[string]any{"models": recommended})
	}
	return c.JSON(http.StatusOK, map[string]any{"models": s.orch.Registry().List(filter)})
}

type selectionResult struct {
	Model         models.ModelDescriptor `json:"model"`
	EstimatedCost *float64               `json:"estimated_cost,omitempty"`
}

func (s *Server) handleSelect(c echo.Context) error {
	var criteria models.SelectionCriteria
	if err := decodeRequestBody(c, &criteria); err != nil {
		return err
	}

	selected, err := s.orch.SelectModel(criteria)
	if err != nil {
		return toHTTPError(err)
	}
	result := selectionResult{Model: selected}
	if cost, ok := registry.EstimateCost(selected, registry.ReferenceInputTokens, registry.ReferenceOutputTokens); ok {
		result.EstimatedCost = &cost
	}
	return c.JSON(http.StatusOK, result)
}

// generateRequest accepts the canonical request, or a bare prompt with an
// optional system prompt.
type generateRequest struct {
	models.GenerationRequest
	Prompt string `json:"prompt,omitempty"`
	System string `json:"system,omitempty"`
}

func (r generateRequest) toGeneration(requestID string) (models.GenerationRequest, error) {
	out := r.GenerationRequest
	if r.System != "" {
		out.Messages = append([]models.ChatMessage{models.SystemMessage(r.System)}, out.Messages...)
	}
	if r.Prompt != "" {
		out.Messages = append(out.Messages, models.UserMessage(r.Prompt))
	}
	if len(out.Messages) == 0 {
		return out, requestError{Status: http.StatusBadRequest, Message: "messages or prompt is required", Type: "invalid_request_error"}
	}

	metadata := make(map[string]any, len(out.Metadata)+1)
	for k, v := range out.Metadata {
		metadata[k] = v
	}
	if requestID != "" {
		metadata["request_id"] = requestID
	}
	out.Metadata = metadata
	return out, nil
}

func (s *Server) handleGenerate(c echo.Context) error {
	var body generateRequest
	if err := decodeRequestBody(c, &body); err != nil {
		return err
	}
	req, err := body.toGeneration(requestID(c))
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if req.Stream {
		stream, err := s.orch.GenerateStream(ctx, req)
		if err != nil {
			return toHTTPError(err)
		}
		return s.writeStream(c, stream)
	}

	resp, err := s.orch.Generate(ctx, req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

type autoGenerateRequest struct {
	generateRequest
	Criteria models.SelectionCriteria `json:"criteria"`
}

func (s *Server) handleGenerateAuto(c echo.Context) error {
	var body autoGenerateRequest
	if err := decodeRequestBody(c, &body); err != nil {
		return err
	}
	req, err := body.toGeneration(requestID(c))
	if err != nil {
		return err
	}

	resp, err := s.orch.GenerateWithAutoModel(c.Request().Context(), req, body.Criteria)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c echo.Context) error {
	active, err := s.orch.Active()
	if err != nil {
		return toHTTPError(err)
	}
	stats, err := s.orch.Stats()
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"provider": active.Name(),
		"stats":    stats,
	})
}

func (s *Server) handleProvider(c echo.Context) error {
	active, err := s.orch.Active()
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"provider":      active.Name(),
		"default_model": active.DefaultModel(),
		"capabilities":  active.Capabilities(),
	})
}

type switchRequest struct {
	Provider *models.ProviderType `json:"provider"`
}

func (s *Server) handleSwitchProvider(c echo.Context) error {
	var body switchRequest
	if err := decodeRequestBody(c, &body); err != nil {
		return err
	}
	if body.Provider == nil {
		return requestError{Status: http.StatusBadRequest, Message: "provider is required", Type: "invalid_request_error"}
	}
	if err := s.orch.SwitchProvider(c.Request().Context(), *body.Provider); err != nil {
		return toHTTPError(err)
	}
	return s.handleProvider(c)
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("genprovider ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /v1/models")
	fmt.Println("  POST /v1/models/select")
	fmt.Println("  POST /v1/generate")
	fmt.Println("  POST /v1/generate/auto")
	fmt.Println("  GET  /v1/stats")
	fmt.Println("  GET  /v1/provider")
	fmt.Println("  POST /v1/provider")
	fmt.Printf("Example:\n  curl http://%s:%d/v1/generate -H 'Content-Type: application/json' -d '{\"prompt\":\"hello\"}'\n\n", host, port)
}
