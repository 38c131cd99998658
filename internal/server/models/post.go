package models

import "time"

// Post is a feed entry. MediaURL is the storage URL of the attachment.
type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Content       string    `json:"content"`
	MediaURL      *string   `json:"media_url"`
	MediaType     *string   `json:"media_type"`
	IsAcademyPost bool      `json:"is_academy_post"`
	CreatedAt     time.Time `json:"created_at"`
}

// PostView is a Post as rendered in the feed.
type PostView struct {
	Post
	Author        Author `json:"author"`
	LikesCount    int    `json:"likes_count"`
	CommentsCount int    `json:"comments_count"`
	LikedByMe     bool   `json:"liked_by_me"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Author    Author    `json:"author"`
}
