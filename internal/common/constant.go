package common

// SessionCookieName is the cookie that carries the signed session token.
const SessionCookieName = "token"

// Logical storage buckets.
const (
	BucketPostMedia    = "post-media"
	BucketMessageMedia = "message-media"
	BucketAvatars      = "avatars"
)

// User roles. Staff roles may publish academy posts.
const (
	RoleUser      = "user"
	RoleCoach     = "coach"
	RoleSuperUser = "super_user"
)

// IsStaffRole reports whether role belongs to academy staff.
func IsStaffRole(role string) bool {
	return role == RoleCoach || role == RoleSuperUser
}
