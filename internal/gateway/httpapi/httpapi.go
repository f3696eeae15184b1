// Package httpapi implements the HTTP API gateway for Kazi.
//
// Security:
//   - API key authentication on every request (constant-time comparison)
//   - Request body size limits (default 1 MB)
//   - Per-user sliding-window rate limiting on the chat endpoints
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/kazi/internal/chat"
	"github.com/jkaninda/kazi/internal/observability"
	"github.com/jkaninda/kazi/internal/ratelimit"
	"github.com/jkaninda/kazi/internal/task"
	"github.com/jkaninda/okapi"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	APIKeys        map[string]string // API key → user ID mapping. Keys from env.
	MaxRequestSize int64             // Maximum request body in bytes. 0 = 1 MB default.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /ready endpoint.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config  Config
	tasks   task.Store
	convs   chat.ConversationStore
	runtime *chat.Runtime
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	server  *http.Server

	okapi *okapi.Okapi
	group *okapi.Group
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, tasks task.Store, convs chat.ConversationStore, runtime *chat.Runtime, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:  cfg,
		tasks:   tasks,
		convs:   convs,
		runtime: runtime,
		limiter: rl,
		logger:  logger,
		okapi:   okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithOpenAPIDocs enables the OpenAPI documentation endpoint.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Kazi",
			Version: "v0.1.0",
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Authenticated /v1 group.
	g.group = g.okapi.Group("/v1", g.authenticate)

	// Task endpoints. The analytics route is registered before {id} so the
	// literal segment wins.
	g.group.Get("/tasks/analytics", g.handleTaskAnalytics,
		okapi.DocSummary("Aggregate task statistics"),
		okapi.DocTags("Tasks"),
		okapi.DocResponse(AnalyticsResponse{}),
	)
	g.group.Post("/tasks", g.handleTaskCreate,
		okapi.DocSummary("Create a new task"),
		okapi.DocTags("Tasks"),
		okapi.DocRequestBody(TaskRequest{}),
		okapi.DocResponse(http.StatusCreated, TaskResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)
	g.group.Get("/tasks", g.handleTaskList,
		okapi.DocSummary("List tasks, filterable by completed, priority, and tag query params"),
		okapi.DocTags("Tasks"),
		okapi.DocResponse(TaskListResponse{}),
	)
	g.group.Get("/tasks/{id}", g.handleTaskGet,
		okapi.DocSummary("Get a task by ID"),
		okapi.DocTags("Tasks"),
		okapi.DocPathParam("id", "integer", "Task ID"),
		okapi.DocResponse(TaskResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Put("/tasks/{id}", g.handleTaskUpdate,
		okapi.DocSummary("Update a task"),
		okapi.DocTags("Tasks"),
		okapi.DocPathParam("id", "integer", "Task ID"),
		okapi.DocRequestBody(TaskRequest{}),
		okapi.DocResponse(TaskResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Patch("/tasks/{id}/complete", g.handleTaskToggleComplete,
		okapi.DocSummary("Toggle a task's completion state"),
		okapi.DocTags("Tasks"),
		okapi.DocPathParam("id", "integer", "Task ID"),
		okapi.DocResponse(TaskResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Delete("/tasks/{id}", g.handleTaskDelete,
		okapi.DocSummary("Delete a task"),
		okapi.DocTags("Tasks"),
		okapi.DocPathParam("id", "integer", "Task ID"),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)

	// Conversation endpoints.
	g.group.Post("/conversations", g.handleConversationCreate,
		okapi.DocSummary("Create a conversation"),
		okapi.DocTags("Conversations"),
		okapi.DocRequestBody(ConversationRequest{}),
		okapi.DocResponse(http.StatusCreated, ConversationResponse{}),
	)
	g.group.Get("/conversations", g.handleConversationList,
		okapi.DocSummary("List conversations, most recently updated first"),
		okapi.DocTags("Conversations"),
		okapi.DocResponse([]ConversationResponse{}),
	)
	g.group.Get("/conversations/{id}", g.handleConversationGet,
		okapi.DocSummary("Get a conversation with its messages"),
		okapi.DocTags("Conversations"),
		okapi.DocPathParam("id", "string", "Conversation ID (UUID)"),
		okapi.DocResponse(ConversationDetail{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Put("/conversations/{id}", g.handleConversationRename,
		okapi.DocSummary("Rename a conversation"),
		okapi.DocTags("Conversations"),
		okapi.DocPathParam("id", "string", "Conversation ID (UUID)"),
		okapi.DocRequestBody(ConversationRequest{}),
		okapi.DocResponse(ConversationResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Delete("/conversations/{id}", g.handleConversationDelete,
		okapi.DocSummary("Delete a conversation and its messages"),
		okapi.DocTags("Conversations"),
		okapi.DocPathParam("id", "string", "Conversation ID (UUID)"),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Get("/conversations/{id}/messages", g.handleConversationMessages,
		okapi.DocSummary("List a conversation's messages, oldest first"),
		okapi.DocTags("Conversations"),
		okapi.DocPathParam("id", "string", "Conversation ID (UUID)"),
		okapi.DocResponse([]MessageResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	g.group.Post("/conversations/{id}/title", g.handleConversationGenerateTitle,
		okapi.DocSummary("Regenerate the conversation title from its first user message"),
		okapi.DocTags("Conversations"),
		okapi.DocPathParam("id", "string", "Conversation ID (UUID)"),
		okapi.DocResponse(ConversationResponse{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)

	// Chat endpoints use plain http handlers: the streaming endpoint needs
	// direct ResponseWriter control for SSE framing, and both set the
	// rate-limit headers on every response including 429.
	g.okapi.HandleStd("POST", "/v1/chat", g.handleChat)
	g.okapi.HandleStd("POST", "/v1/chat/stream", g.handleChatStream)

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(_ context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Authentication ---

func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		userID, ok := g.resolveAPIKey(c.Header("Authorization"))
		if !ok {
			return c.AbortUnauthorized("missing or invalid API key")
		}
		c.Set("userID", userID)
		return next(c)
	}
}

// resolveAPIKey maps a bearer Authorization header to a user ID using
// constant-time comparison.
func (g *Gateway) resolveAPIKey(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	apiKey := strings.TrimPrefix(authHeader, "Bearer ")

	userID := ""
	for key, uid := range g.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			userID = uid
		}
	}
	return userID, userID != ""
}

func (g *Gateway) maxRequestSize() int64 {
	if g.config.MaxRequestSize > 0 {
		return g.config.MaxRequestSize
	}
	return defaultMaxRequestSize
}

// HealthResponse is the JSON response for the health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe.
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
