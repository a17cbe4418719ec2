package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	goTrust "github.com/MrEthical07/goTrust"
	"github.com/MrEthical07/goTrust/internal/logging"
	"github.com/MrEthical07/goTrust/metrics/export/prometheus"
	"github.com/MrEthical07/goTrust/middleware"
	"github.com/MrEthical07/goTrust/realtime"
)

const requestIDKey = "request_id"

// Server owns the gin router. It holds no per-request state.
type Server struct {
	engine   *goTrust.Engine
	registry *realtime.Registry
	metrics  *prometheus.Exporter
	logger   logging.Logger
	cfg      Config

	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New builds the router. registry may be nil, in which case /ws is not
// mounted.
func New(engine *goTrust.Engine, registry *realtime.Registry, logger logging.Logger, cfg Config) *Server {
	if logger == nil {
		logger = logging.Nop{}
	}
	s := &Server{
		engine:   engine,
		registry: registry,
		metrics:  prometheus.NewExporter(engine),
		logger:   logger,
		cfg:      cfg,
		router:   gin.New(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())

	if len(s.cfg.AllowOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = s.cfg.AllowOrigins
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
		corsConfig.AllowCredentials = true
		s.router.Use(cors.New(corsConfig))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthz)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	auth := s.router.Group("/auth")
	{
		auth.POST("/register", s.register)
		auth.POST("/login", s.login)
		auth.POST("/login/2fa", s.loginTwoFA)
		auth.POST("/refresh", s.refresh)
		auth.POST("/logout", s.logout)
		auth.POST("/forgot", s.forgotPassword)
		auth.POST("/reset", s.resetPassword)
		auth.POST("/2fa/disable/confirm", s.confirmTwoFADisable)
		auth.GET("/2fa/disable/confirm", s.confirmTwoFADisable)

		twofa := auth.Group("/2fa", middleware.RequireAuth(s.engine))
		twofa.POST("/setup", s.setupTwoFA)
		twofa.POST("/verify", s.verifyTwoFA)
		twofa.POST("/disable", s.disableTwoFA)
		twofa.POST("/disable/request", s.requestTwoFADisable)
	}

	moderation := s.router.Group("/moderation",
		middleware.RequireAuth(s.engine),
		middleware.RequireRole(goTrust.RoleModerator, goTrust.RoleAdmin),
	)
	{
		moderation.POST("/users/:id/ban", s.ban)
		moderation.POST("/users/:id/ban/revoke", s.revokeBan)
		moderation.POST("/users/:id/warn", s.warn)
	}

	if s.registry != nil {
		s.router.GET("/ws", s.websocket)
	}
}

// requestIDMiddleware tags the request with an id and carries the caller's
// address into the engine context for audit events and login throttling.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = goTrust.WithClientIP(ctx, c.ClientIP())
		ctx = goTrust.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.cfg.originAllowed(origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.engine.Ping(c.Request.Context()); err != nil {
		s.logger.Warn(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes the mapped status for err. Unknown errors are logged.
func (s *Server) fail(c *gin.Context, err error) {
	status, code := middleware.ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}

func badRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_input"})
}
