package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/common/apiutil"
	"github.com/Aidin1998/crowdfund/common/auth"
	_ "github.com/Aidin1998/crowdfund/docs"
	"github.com/Aidin1998/crowdfund/internal/config"
	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/internal/identities"
	"github.com/Aidin1998/crowdfund/internal/middleware/ratelimit"
	"github.com/Aidin1998/crowdfund/internal/projects"
	apierrors "github.com/Aidin1998/crowdfund/pkg/errors"
)

const (
	serviceName = "crowdfund"
	apiVersion  = "1.0.0"

	healthTimeout = 2 * time.Second
)

// Server represents the HTTP server
type Server struct {
	logger        *zap.Logger
	cfg           config.ServerConfig
	identitiesSvc identities.IdentityService
	projectsSvc   projects.ProjectService
	limiter       ratelimit.Limiter
	tokens        *validator.Validator
	db            *gorm.DB
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithDatabase makes /health report the database connection.
func WithDatabase(db *gorm.DB) Option {
	return func(s *Server) { s.db = db }
}

// NewServer creates a new HTTP server. A nil limiter disables rate limiting.
func NewServer(
	logger *zap.Logger,
	cfg config.ServerConfig,
	identitiesSvc identities.IdentityService,
	projectsSvc projects.ProjectService,
	limiter ratelimit.Limiter,
	tokens *validator.Validator,
	opts ...Option,
) *Server {
	s := &Server{
		logger:        logger,
		cfg:           cfg,
		identitiesSvc: identitiesSvc,
		projectsSvc:   projectsSvc,
		limiter:       limiter,
		tokens:        tokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	if origin := strings.TrimRight(s.cfg.FrontendURL, "/"); origin != "" {
		cfg.AllowOrigins = []string{origin}
		cfg.AllowCredentials = true
	} else {
		cfg.AllowAllOrigins = true
	}
	return cfg
}

// Router creates a new HTTP router
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(cors.New(s.corsConfig()))
	router.Use(apiutil.MetricsMiddleware())

	router.NoRoute(func(c *gin.Context) {
		apiutil.Problem(c, apierrors.NotFound.Explain("No route for %s %s", c.Request.Method, c.Request.URL.Path))
	})

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authenticated := auth.Middleware(s.logger, s.tokens, s.identitiesSvc)
	limited := ratelimit.Middleware(s.limiter, s.logger)

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", limited, s.handleRegister)
			authGroup.POST("/login", limited, s.handleLogin)
			authGroup.POST("/magic-link", limited, s.handleRequestMagicLink)
			authGroup.POST("/magic-link/verify", s.handleVerifyMagicLink)
			authGroup.POST("/password-reset", limited, s.handleRequestPasswordReset)
			authGroup.POST("/password-reset/confirm", s.handleConfirmPasswordReset)
		}

		users := v1.Group("/users", authenticated)
		{
			users.GET("/me", s.handleGetMe)
			users.PUT("/me", s.handleUpdateMe)
		}

		twoFactor := v1.Group("/2fa", authenticated)
		{
			twoFactor.POST("/setup", s.handle2FASetup)
			twoFactor.POST("/verify", s.handle2FAVerify)
			twoFactor.POST("/toggle", s.handle2FAToggle)
		}

		projectGroup := v1.Group("/projects")
		{
			projectGroup.GET("", s.handleListPublicProjects)
			projectGroup.GET("/slug/:slug", s.handleGetProjectBySlug)

			projectGroup.GET("/mine", authenticated, s.handleListMyProjects)
			projectGroup.GET("/suggest-slug", authenticated, s.handleSuggestSlug)
			projectGroup.POST("", authenticated, s.handleCreateProject)
			projectGroup.GET("/:id", authenticated, s.handleGetProject)
			projectGroup.PUT("/:id", authenticated, s.handleUpdateProject)
			projectGroup.DELETE("/:id", authenticated, s.handleDeleteProject)
			projectGroup.POST("/:id/submit", authenticated, s.handleSubmitProject)
			projectGroup.POST("/:id/contributions", authenticated, s.handleContribute)
		}

		admin := v1.Group("/admin", authenticated, auth.RequireAdmin())
		{
			admin.GET("/users", s.handleAdminListUsers)
			admin.GET("/users/:id", s.handleAdminGetUser)
			admin.PATCH("/users/:id", s.handleAdminUpdateUser)
			admin.DELETE("/users/:id", s.handleAdminDeleteUser)
			admin.GET("/projects", s.handleAdminListProjects)
			admin.GET("/projects/:id", s.handleAdminGetProject)
			admin.PATCH("/projects/:id", s.handleAdminUpdateProject)
			admin.DELETE("/projects/:id", s.handleAdminDeleteProject)
			admin.POST("/test-email", s.handleAdminTestEmail)
		}
	}

	return router
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for at most the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Crowdfund API",
		"docs":    "/docs/index.html",
		"version": apiVersion,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := database.Ping(ctx, s.db); err != nil {
			s.logger.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// paramID parses the :id path parameter and writes a problem when it is
// not a positive integer.
func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, strconv.IntSize)
	if err != nil || id == 0 {
		apiutil.Problem(c, apierrors.Invalid.WithField("uint", "id", "id must be a positive integer"))
		return 0, false
	}
	return uint(id), true
}

// bindJSON decodes the request body into dst and writes a problem on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apiutil.BindError(c, err)
		return false
	}
	return true
}

// listQuery holds the paging and filter query string of list endpoints
type listQuery struct {
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
	Status string `form:"status"`
	Search string `form:"search"`
}

func bindListQuery(c *gin.Context) (listQuery, bool) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		apiutil.Problem(c, apierrors.Invalid.Explain("Malformed query string").Wrap(err))
		return q, false
	}
	return q, true
}
