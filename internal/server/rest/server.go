// Package rest is the HTTP transport: the auth endpoints, the JSON API of
// the social features, the realtime socket and the operational endpoints.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/config"
	"github.com/dmitrijs2005/academyhub/internal/server/metrics"
	"github.com/dmitrijs2005/academyhub/internal/storage/localfs"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators of the HTTP server. Realtime, LocalStorage and
// Health are optional.
type Deps struct {
	Users         UserService
	Posts         PostService
	Messages      MessageService
	Notifications NotificationService
	Push          PushService

	Realtime     http.Handler
	LocalStorage *localfs.Service
	Health       func(ctx context.Context) error
}

type Server struct {
	cfg     *config.Config
	deps    Deps
	engine  *gin.Engine
	limiter *rateLimiter
	logger  logging.Logger
}

func NewServer(cfg *config.Config, deps Deps, logger logging.Logger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		engine:  gin.New(),
		limiter: newRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		logger:  logger.With("module", "http_server"),
	}
	if err := s.engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		s.logger.Error(context.Background(), "invalid trusted proxies, trusting none", "error", err)
		_ = s.engine.SetTrustedProxies(nil)
	}
	s.engine.MaxMultipartMemory = 8 << 20
	s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	r := s.engine
	r.Use(
		s.recovery(),
		s.requestLogger(),
		metrics.GinMiddleware(),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/socket", "/storage", "/metrics"})),
	)

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if s.deps.Realtime != nil {
		r.GET("/socket", gin.WrapH(s.deps.Realtime))
	}
	if s.deps.LocalStorage != nil {
		s.deps.LocalStorage.Register(r.Group("/storage"))
	}

	for _, prefix := range []string{"/auth", "/api/auth"} {
		g := r.Group(prefix)
		g.POST("/register", s.limiter.middleware(s), s.register)
		g.POST("/login", s.limiter.middleware(s), s.login)
		g.POST("/logout", s.logout)
		g.GET("/session", s.session)
	}

	api := r.Group("/api", s.requireSession)

	api.GET("/posts", s.listPosts)
	api.POST("/posts", s.createPost)
	api.POST("/posts/:id/like", s.likePost)
	api.DELETE("/posts/:id/like", s.unlikePost)
	api.GET("/posts/:id/comments", s.listComments)
	api.POST("/posts/:id/comments", s.addComment)

	api.GET("/messages/users", s.listContacts)
	api.GET("/messages/:userId", s.conversation)
	api.POST("/messages/:userId", s.sendMessage)

	api.GET("/notifications", s.bell)
	api.POST("/notifications/read-all", s.markAllRead)
	api.POST("/notifications/:id/read", s.markRead)

	api.GET("/push/key", s.pushKey)
	api.POST("/push/subscriptions", s.subscribePush)
	api.DELETE("/push/subscriptions", s.unsubscribePush)

	api.GET("/users", s.listUsers)
	api.GET("/users/:id", s.getUser)
	api.PATCH("/users/me", s.updateProfile)
	api.POST("/users/me/avatar", s.uploadAvatar)
}

// Run serves on cfg.HTTPAddr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthz(c *gin.Context) {
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request.Context()); err != nil {
			s.logger.Warn(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
