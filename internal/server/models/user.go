// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an academy member. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     *string   `json:"fullName"`
	AvatarURL    *string   `json:"avatarUrl"`
	Age          *int      `json:"age"`
	Team         *string   `json:"team"`
	Position     *string   `json:"position"`
	IsParent     bool      `json:"isParent"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are
// left unchanged.
type ProfileUpdate struct {
	FullName *string `json:"fullName"`
	Age      *int    `json:"age"`
	Team     *string `json:"team"`
	Position *string `json:"position"`
	IsParent *bool   `json:"isParent"`
}

// Author is the public subset of a user embedded in feed items.
type Author struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}
