package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listContacts(c *gin.Context) {
	users, err := s.deps.Messages.Contacts(c.Request.Context(), currentSession(c).User.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": s.presentUsers(users)})
}

func (s *Server) conversation(c *gin.Context) {
	msgs, err := s.deps.Messages.Conversation(c.Request.Context(), currentSession(c).User.ID, c.Param("userId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) sendMessage(c *gin.Context) {
	if !parseMultipart(c) {
		return
	}
	media, closer, ok := formFile(c, "media")
	if !ok {
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	msg, err := s.deps.Messages.Send(c.Request.Context(), currentSession(c).User.ID, c.Param("userId"), c.PostForm("content"), media)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
