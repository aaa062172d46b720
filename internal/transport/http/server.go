package http

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"haikuslam/internal/app"
	"haikuslam/internal/config"
	"haikuslam/internal/transport/ws"
)

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	service *app.Service
	config  *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, service *app.Service, logger *slog.Logger) *Server {
	s := &Server{
		service: service,
		config:  cfg,
		logger:  logger,
		tracer:  otel.Tracer("haikuslam/http"),
	}

	mux := httprouter.New()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      s.middleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *httprouter.Router) {
	// API routes
	mux.POST("/api/v1/login", s.handleLogin)
	mux.POST("/api/v1/games", s.handleCreateGame)
	mux.GET("/api/v1/games", s.handleListGames)
	mux.GET("/api/v1/games/:id", s.handleGetGame)
	mux.PUT("/api/v1/games/:id/poem", s.handleWrite)
	mux.PUT("/api/v1/games/:id/vote", s.handleVote)
	mux.PUT("/api/v1/games/:id/topic", s.handleTopic)
	mux.PUT("/api/v1/games/:id/name", s.handleRename)
	mux.DELETE("/api/v1/games/:id/players/me", s.handleLeave)
	mux.GET("/api/v1/me/invite.png", s.handleInviteQR)
	mux.GET("/api/health", s.handleHealth)
	mux.GET("/api/stats", s.handleStats)

	// WebSocket
	wsHandler := ws.NewHandler(s.service, s.logger, s.config.IsDevelopment())
	mux.Handler(http.MethodGet, "/ws", wsHandler)

	mux.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	mux.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})
}

// middleware wraps the handler with tracing, logging and CORS
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Add CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := s.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", wrapped.statusCode))
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
