package users

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by tests and local
// tooling. It enforces the same uniqueness rules as the database.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*models.User), now: time.Now}
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// email is reported first regardless of map order
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, common.ErrEmailTaken
		}
	}
	for _, u := range r.users {
		if u.Username == user.Username {
			return nil, common.ErrUsernameTaken
		}
	}

	if user.Role == "" {
		user.Role = common.RoleUser
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.now()
	user.UpdatedAt = user.CreatedAt

	r.users[user.ID] = clone(user)
	return user, nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) List(_ context.Context, query, excludeID string) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var result []*models.User
	for _, u := range r.users {
		if u.ID == excludeID {
			continue
		}
		if q != "" {
			name := strings.ToLower(u.Username)
			full := ""
			if u.FullName != nil {
				full = strings.ToLower(*u.FullName)
			}
			if !strings.Contains(name, q) && !strings.Contains(full, q) {
				continue
			}
		}
		result = append(result, clone(u))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if upd.FullName != nil {
		u.FullName = upd.FullName
	}
	if upd.Age != nil {
		u.Age = upd.Age
	}
	if upd.Team != nil {
		u.Team = upd.Team
	}
	if upd.Position != nil {
		u.Position = upd.Position
	}
	if upd.IsParent != nil {
		u.IsParent = *upd.IsParent
	}
	u.UpdatedAt = r.now()
	return clone(u), nil
}

func (r *MemoryRepository) SetAvatar(_ context.Context, id, avatarURL string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.AvatarURL = &avatarURL
	u.UpdatedAt = r.now()
	return clone(u), nil
}
