package rest

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/server/services"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const sessionKey = "session"

type sessionCtxKey struct{}

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *services.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sess)
}

// SessionFrom returns the session stored by WithSession, if any.
func SessionFrom(ctx context.Context) (*services.Session, bool) {
	sess, ok := ctx.Value(sessionCtxKey{}).(*services.Session)
	return sess, ok && sess != nil
}

// tokenFromRequest reads the session cookie, falling back to a bearer token.
func tokenFromRequest(r *http.Request) string {
	if ck, err := r.Cookie(common.SessionCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireSession resolves the caller or answers 401.
func (s *Server) requireSession(c *gin.Context) {
	sess, err := s.deps.Users.ResolveSession(c.Request.Context(), tokenFromRequest(c.Request))
	if err != nil {
		if !isAuthError(err) {
			s.respondError(c, err)
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	c.Set(sessionKey, sess)
	c.Request = c.Request.WithContext(WithSession(c.Request.Context(), sess))
	c.Next()
}

// currentSession is only valid behind requireSession.
func currentSession(c *gin.Context) *services.Session {
	return c.MustGet(sessionKey).(*services.Session)
}

// SessionAuthenticator resolves the user id behind a websocket upgrade; ""
// when the request carries no valid session.
func SessionAuthenticator(users UserService) func(r *http.Request) string {
	return func(r *http.Request) string {
		token := tokenFromRequest(r)
		if token == "" {
			return ""
		}
		sess, err := users.ResolveSession(r.Context(), token)
		if err != nil {
			return ""
		}
		return sess.User.ID
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		size := c.Writer.Size()
		if size < 0 {
			size = 0
		}
		s.logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"size", humanize.Bytes(uint64(size)),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error(c.Request.Context(), "panic in handler", "panic", r, "stack", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
		}()
		c.Next()
	}
}

// rateLimiter keeps one token bucket per client IP. Idle buckets expire.
type rateLimiter struct {
	buckets *cache.Cache
	limit   rate.Limit
	burst   int
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		buckets: cache.New(10*time.Minute, 5*time.Minute),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

func (l *rateLimiter) allow(key string) bool {
	if v, ok := l.buckets.Get(key); ok {
		lim := v.(*rate.Limiter)
		l.buckets.SetDefault(key, lim)
		return lim.Allow()
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.buckets.Add(key, lim, cache.DefaultExpiration); err != nil {
		// lost a race with another request from the same client
		if v, ok := l.buckets.Get(key); ok {
			lim = v.(*rate.Limiter)
		}
	}
	return lim.Allow()
}

// middleware is a no-op on a nil limiter.
func (l *rateLimiter) middleware(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		if !l.allow(c.ClientIP()) {
			s.logger.Warn(c.Request.Context(), "rate limit exceeded", "client_ip", c.ClientIP(), "path", c.FullPath())
			s.respondError(c, common.ErrRateLimited)
			return
		}
		c.Next()
	}
}
