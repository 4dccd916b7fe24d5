// @title CyberCode Cloud API
// @version 1.0.0
// @description Compute instance lifecycle and browser terminals
// @BasePath /api/cloud

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cybercodeedulabs/cybercode-backend/internal/compute"
	"github.com/cybercodeedulabs/cybercode-backend/internal/identity"
	"github.com/cybercodeedulabs/cybercode-backend/internal/observability/logger"
	"github.com/cybercodeedulabs/cybercode-backend/internal/terminal"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// InstanceService is the lifecycle API the handlers call.
type InstanceService interface {
	CreateInstances(ctx context.Context, ident identity.Identity, req compute.CreateRequest) (*compute.CreateResult, error)
	CreateFreeInstance(ctx context.Context, ident identity.Identity) (*compute.CreateResult, error)
	ListInstances(ctx context.Context, ident identity.Identity) ([]*compute.Instance, error)
	TerminateInstance(ctx context.Context, ident identity.Identity, instanceID string) (*compute.TerminateResult, error)
	GetUsage(ctx context.Context, ident identity.Identity) (compute.Usage, error)
	Ping(ctx context.Context) error
}

// TokenVerifier decodes bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (identity.Identity, error)
}

// TerminalServer runs one terminal connection.
type TerminalServer interface {
	Serve(ctx context.Context, conn io.ReadWriteCloser, req terminal.Request) error
}

// Config holds handler settings.
type Config struct {
	ServiceName    string
	RequestTimeout time.Duration
	// AllowedOrigins restricts terminal websocket origins. Empty allows any.
	AllowedOrigins []string
	// CORSOrigins lists browser origins allowed to call the REST API. Empty allows any.
	CORSOrigins []string
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	instances InstanceService
	tokens    TokenVerifier
	terminals TerminalServer
	cfg       Config
}

// NewHandler creates a new HTTP handler
func NewHandler(instances InstanceService, tokens TokenVerifier, terminals TerminalServer, cfg Config) *Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "cybercode-cloud"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Handler{
		instances: instances,
		tokens:    tokens,
		terminals: terminals,
		cfg:       cfg,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   h.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	}).Handler)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Get("/healthz", h.HealthCheck)

	r.Route("/api/cloud", func(r chi.Router) {
		// Terminal sessions are long-lived and authenticate in the handshake.
		r.Get("/terminal", h.Terminal)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(h.cfg.RequestTimeout))
			r.Use(h.AuthMiddleware)

			r.Post("/instances", h.CreateInstances)
			r.Get("/instances", h.ListInstances)
			r.Delete("/instances/{id}", h.TerminateInstance)
			r.Get("/usage", h.GetUsage)
			r.Post("/free-instance", h.CreateFreeInstance)
		})
	})

	return r
}

// HealthCheck reports service and datastore health
// @Summary Health Check
// @Description Checks that the service is up and the datastore reachable
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.instances.Ping(ctx); err != nil {
		slog.ErrorContext(r.Context(), "health check failed", logger.Component("store"), logger.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"service":  h.cfg.ServiceName,
			"database": "unreachable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"service":  h.cfg.ServiceName,
		"database": "ok",
	})
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Dimension string `json:"dimension,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondServiceError maps a service error onto a status and a safe body.
// Internal causes are logged, never returned.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *compute.Error
	if !errors.As(err, &ce) {
		ce = &compute.Error{Kind: compute.KindInternal, Code: compute.CodeInternal, Message: "internal error", Err: err}
	}

	status := statusFor(ce)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Path(r.URL.Path),
			logger.ErrorCode(ce.Code),
			logger.Error(err),
		)
	}
	respondJSON(w, status, errorResponse{Error: ce.Message, Code: ce.Code, Dimension: ce.Dimension})
}

func statusFor(e *compute.Error) int {
	switch e.Kind {
	case compute.KindUnauthorized:
		return http.StatusUnauthorized
	case compute.KindInvalidRequest:
		return http.StatusBadRequest
	case compute.KindNotFound:
		return http.StatusNotFound
	case compute.KindForbidden, compute.KindQuotaExceeded:
		return http.StatusForbidden
	case compute.KindConflict:
		return http.StatusConflict
	case compute.KindHostError:
		if e.Code == compute.CodeHostTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
