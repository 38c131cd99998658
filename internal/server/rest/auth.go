package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/server/auth"
	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

func (r *credentialsRequest) complete() bool {
	return strings.TrimSpace(r.Email) != "" && r.Password != ""
}

func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !req.complete() {
		badRequest(c, "Email and password are required")
		return
	}

	res, err := s.deps.Users.Register(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.setSessionCookie(c, res.Token)
	c.JSON(http.StatusOK, gin.H{"user": s.presentUser(res.User)})
}

// login answers every unusable body like a wrong password.
func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.complete() {
		s.respondError(c, common.ErrInvalidCredentials)
		return
	}

	res, err := s.deps.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.setSessionCookie(c, res.Token)
	c.JSON(http.StatusOK, gin.H{"user": s.presentUser(res.User)})
}

func (s *Server) logout(c *gin.Context) {
	if token := tokenFromRequest(c.Request); token != "" {
		if err := s.deps.Users.Logout(c.Request.Context(), token); err != nil {
			s.logger.Warn(c.Request.Context(), "token revocation failed", "error", err)
		}
	}

	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// session never fails: anything short of a valid session is {user:null}.
func (s *Server) session(c *gin.Context) {
	sess, err := s.deps.Users.ResolveSession(c.Request.Context(), tokenFromRequest(c.Request))
	if err != nil {
		if !isAuthError(err) {
			s.logger.Warn(c.Request.Context(), "session lookup failed", "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": s.presentUser(sess.User)})
}

func (s *Server) setSessionCookie(c *gin.Context, t *auth.Token) {
	maxAge := int(time.Until(t.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = int(s.cfg.TokenValidity.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.SessionCookieName, t.Value, maxAge, "/", "", s.cfg.IsProduction(), true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.SessionCookieName, "", -1, "/", "", s.cfg.IsProduction(), true)
}
