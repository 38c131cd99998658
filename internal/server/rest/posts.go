package rest

import (
	"net/http"

	"github.com/dmitrijs2005/academyhub/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *Server) listPosts(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	academy, ok := parseBool(c, c.Query("academy"))
	if !ok {
		return
	}

	posts, err := s.deps.Posts.Feed(c.Request.Context(), currentSession(c).User.ID, page, academy)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "page": page})
}

func (s *Server) createPost(c *gin.Context) {
	if !parseMultipart(c) {
		return
	}
	academy, ok := parseBool(c, c.PostForm("academy"))
	if !ok {
		return
	}
	media, closer, ok := formFile(c, "media")
	if !ok {
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	post, err := s.deps.Posts.Create(c.Request.Context(), currentSession(c).User, services.NewPost{
		Content: c.PostForm("content"),
		Academy: academy,
		Media:   media,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

func (s *Server) likePost(c *gin.Context) {
	if err := s.deps.Posts.Like(c.Request.Context(), c.Param("id"), currentSession(c).User.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) unlikePost(c *gin.Context) {
	if err := s.deps.Posts.Unlike(c.Request.Context(), c.Param("id"), currentSession(c).User.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) listComments(c *gin.Context) {
	comments, err := s.deps.Posts.Comments(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

type commentRequest struct {
	Content string `json:"content"`
}

func (s *Server) addComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	comment, err := s.deps.Posts.AddComment(c.Request.Context(), c.Param("id"), currentSession(c).User.ID, req.Content)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}
