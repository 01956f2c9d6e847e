package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/terra-clan/staffing-engine/internal/config"
	"github.com/terra-clan/staffing-engine/internal/metrics"
	"github.com/terra-clan/staffing-engine/internal/models"
	"github.com/terra-clan/staffing-engine/internal/services"
	"github.com/terra-clan/staffing-engine/internal/staffing"
	"github.com/terra-clan/staffing-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	staffing       *staffing.Service
	registry       *services.Registry
	bus            services.ProgressBus
	authMiddleware *AuthMiddleware
	authEnabled    bool
	logger         *zap.Logger
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithoutAuth serves /api/v1 without API key checks
func WithoutAuth() ServerOption {
	return func(s *Server) {
		s.authEnabled = false
	}
}

// WithProgressBus enables the execution observer websocket
func WithProgressBus(bus services.ProgressBus) ServerOption {
	return func(s *Server) {
		s.bus = bus
	}
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	svc *staffing.Service,
	repo storage.Repository,
	registry *services.Registry,
	logger *zap.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		config:         cfg,
		staffing:       svc,
		registry:       registry,
		authMiddleware: NewAuthMiddleware(repo, logger),
		authEnabled:    true,
		logger:         logger.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.authEnabled {
			r.Use(s.authMiddleware.Authenticate)
		}
		perm := s.permission

		r.Group(func(r chi.Router) {
			r.Use(s.timeout)

			r.Route("/users", func(r chi.Router) {
				r.With(perm(models.PermUsersRead)).Get("/", s.handleListUsers)
				r.With(perm(models.PermUsersWrite)).Post("/", s.handleRegisterUser)

				r.Route("/{id}", func(r chi.Router) {
					r.With(perm(models.PermUsersRead)).Get("/", s.handleGetUser)
					r.With(perm(models.PermUsersWrite)).Put("/", s.handleUpdateUser)
					r.With(perm(models.PermInterviewsWrite)).Post("/auto-interview", s.handleAutoInterview)
					r.With(perm(models.PermPerformanceRead)).Get("/performance", s.handleUserPerformance)
					r.With(perm(models.PermPerformanceRead)).Get("/performance/analysis", s.handleAnalyzePerformance)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.With(perm(models.PermProjectsRead)).Get("/", s.handleListProjects)
				r.With(perm(models.PermProjectsWrite)).Post("/", s.handleCreateProject)

				r.Route("/{id}", func(r chi.Router) {
					r.With(perm(models.PermProjectsRead)).Get("/", s.handleGetProject)
					r.With(perm(models.PermProjectsRead)).Get("/stats", s.handleProjectStats)
					r.With(perm(models.PermProjectsRead)).Get("/members", s.handleListMembers)
					r.With(perm(models.PermProjectsWrite)).Post("/members", s.handleAddMember)
					r.With(perm(models.PermTasksRead)).Get("/tasks", s.handleListProjectTasks)
					r.With(perm(models.PermTasksWrite)).Post("/tasks", s.handleCreateTask)
					r.With(perm(models.PermTasksWrite)).Post("/auto-assign", s.handleAutoAssign)
					r.With(perm(models.PermInterviewsWrite)).Post("/interview", s.handleConductInterview)

					r.Route("/tasks/{taskId}", func(r chi.Router) {
						r.With(perm(models.PermTasksRead)).Get("/matches", s.handleTaskMatches)
						r.With(perm(models.PermTasksWrite)).Post("/assign", s.handleAssignTask)
						r.With(perm(models.PermTasksWrite)).Delete("/assign", s.handleUnassignTask)
					})
				})
			})

			r.With(perm(models.PermProjectsRead)).Get("/interviews", s.handleListInterviews)

			r.Route("/offers", func(r chi.Router) {
				r.With(perm(models.PermUsersRead)).Get("/", s.handleListOffers)
				r.With(perm(models.PermOffersWrite)).Post("/{id}/respond", s.handleRespondOffer)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.With(perm(models.PermNotificationsRead)).Get("/", s.handleListNotifications)
				r.With(perm(models.PermNotificationsWrite)).Post("/", s.handleCreateNotification)
				r.With(perm(models.PermNotificationsWrite)).Put("/{id}/read", s.handleMarkNotificationRead)
				r.With(perm(models.PermNotificationsWrite)).Delete("/{id}", s.handleDeleteNotification)
			})

			r.Route("/performance", func(r chi.Router) {
				r.With(perm(models.PermPerformanceRead)).Get("/", s.handleListPerformance)
				r.With(perm(models.PermPerformanceWrite)).Post("/", s.handleRegisterPerformance)
			})
		})

		// streaming routes are not bound by the request timeout
		r.Route("/tasks/{id}", func(r chi.Router) {
			r.With(perm(models.PermTasksRead), s.timeout).Get("/", s.handleGetTask)
			r.With(perm(models.PermTasksWrite), s.timeout).Put("/progress", s.handleUpdateProgress)
			r.With(perm(models.PermTasksExecute)).Post("/execute", s.handleExecuteTask)
			r.With(perm(models.PermTasksRead)).Get("/execution/ws", s.handleExecutionWS)
		})
	})

	s.router = r
}

// timeout applies the configured request timeout
func (s *Server) timeout(next http.Handler) http.Handler {
	if s.config.RequestTimeout <= 0 {
		return next
	}
	return middleware.Timeout(s.config.RequestTimeout)(next)
}

// permission returns the permission check, or a pass-through when auth is off
func (s *Server) permission(permission string) func(http.Handler) http.Handler {
	if !s.authEnabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.authMiddleware.RequirePermission(permission)
}

// loggingMiddleware logs HTTP requests and records request metrics
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			duration := time.Since(start)
			route := routePattern(r)

			metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("duration_ms", duration.Milliseconds()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// routePattern returns the matched chi pattern so metrics are not labelled by id
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
