package rest

import (
	"net/http"

	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) bell(c *gin.Context) {
	b, err := s.deps.Notifications.Bell(c.Request.Context(), currentSession(c).User.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": b.Notifications, "unread": b.Unread})
}

func (s *Server) markRead(c *gin.Context) {
	if err := s.deps.Notifications.MarkRead(c.Request.Context(), c.Param("id"), currentSession(c).User.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) markAllRead(c *gin.Context) {
	n, err := s.deps.Notifications.MarkAllRead(c.Request.Context(), currentSession(c).User.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

func (s *Server) pushKey(c *gin.Context) {
	key := s.deps.Push.PublicKey()
	c.JSON(http.StatusOK, gin.H{"publicKey": key, "enabled": key != ""})
}

type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *Server) subscribePush(c *gin.Context) {
	var req pushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	sub, err := s.deps.Push.Subscribe(c.Request.Context(), currentSession(c).User.ID, models.PushSubscription{
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

func (s *Server) unsubscribePush(c *gin.Context) {
	var req pushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if err := s.deps.Push.Unsubscribe(c.Request.Context(), currentSession(c).User.ID, req.Endpoint); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
