package rest

import (
	"net/http"

	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/gin-gonic/gin"
)

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.deps.Users.ListUsers(c.Request.Context(), c.Query("q"), "")
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": s.presentUsers(users)})
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.deps.Users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": s.presentUser(u)})
}

func (s *Server) updateProfile(c *gin.Context) {
	var upd models.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	u, err := s.deps.Users.UpdateProfile(c.Request.Context(), currentSession(c).User.ID, upd)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": s.presentUser(u)})
}

func (s *Server) uploadAvatar(c *gin.Context) {
	if !parseMultipart(c) {
		return
	}
	avatar, closer, ok := formFile(c, "avatar")
	if !ok {
		return
	}
	if avatar == nil {
		badRequest(c, "Avatar file is required")
		return
	}
	defer closer.Close()

	u, err := s.deps.Users.SetAvatar(c.Request.Context(), currentSession(c).User.ID, *avatar)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": s.presentUser(u)})
}
