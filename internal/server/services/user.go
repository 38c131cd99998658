package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/auth"
	"github.com/dmitrijs2005/academyhub/internal/server/config"
	"github.com/dmitrijs2005/academyhub/internal/server/media"
	"github.com/dmitrijs2005/academyhub/internal/server/metrics"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/academyhub/internal/storage"
	"github.com/google/uuid"
)

const maxUsernameLength = 50

// Session is the verified identity behind a request.
type Session struct {
	User      *models.User
	TokenID   string
	ExpiresAt time.Time
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  *models.User
	Token *auth.Token
}

// UserService handles accounts and sessions:
// registration, login, session resolution, logout and profiles.
type UserService struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	hasher         auth.Hasher
	storage        storage.Adapter
	jwtSecret      []byte
	tokenValidity  time.Duration
	revokeOnLogout bool
	logger         logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, hasher auth.Hasher, store storage.Adapter, logger logging.Logger) *UserService {
	return &UserService{
		db:             db,
		repomanager:    m,
		hasher:         hasher,
		storage:        store,
		jwtSecret:      []byte(cfg.SecretKey),
		tokenValidity:  cfg.TokenValidity,
		revokeOnLogout: cfg.RevokeOnLogout,
		logger:         logger.With("module", "user_service"),
	}
}

// Register creates an account and opens a session for it. An empty username
// is derived from the local part of the email.
func (s *UserService) Register(ctx context.Context, email, password, username string) (*AuthResult, error) {
	return s.register(ctx, email, password, username, common.RoleUser)
}

// CreateUser is Register without a session, for administrative tools that
// may also assign a staff role.
func (s *UserService) CreateUser(ctx context.Context, email, password, username, role string) (*models.User, error) {
	switch role {
	case common.RoleUser, common.RoleCoach, common.RoleSuperUser:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, role)
	}
	res, err := s.register(ctx, email, password, username, role)
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

func (s *UserService) register(ctx context.Context, email, password, username, role string) (*AuthResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		metrics.RecordAuth("register", "invalid")
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = email[:strings.IndexByte(email, '@')]
	}
	if len(username) > maxUsernameLength {
		metrics.RecordAuth("register", "invalid")
		return nil, fmt.Errorf("%w: username is too long", common.ErrorValidation)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		metrics.RecordAuth("register", "invalid")
		if errors.Is(err, auth.ErrPasswordLength) {
			return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, common.ErrEmailTaken) || errors.Is(err, common.ErrUsernameTaken) {
			metrics.RecordAuth("register", "taken")
			return nil, err
		}
		metrics.RecordAuth("register", "error")
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		metrics.RecordAuth("register", "error")
		return nil, fmt.Errorf("issue token: %w", err)
	}

	metrics.RecordAuth("register", "ok")
	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies the credentials. Unknown email and wrong password both
// yield common.ErrInvalidCredentials after one bcrypt comparison.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.CompareDummy(password)
			metrics.RecordAuth("login", "denied")
			return nil, common.ErrInvalidCredentials
		}
		metrics.RecordAuth("login", "error")
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		metrics.RecordAuth("login", "denied")
		return nil, common.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		metrics.RecordAuth("login", "error")
		return nil, fmt.Errorf("issue token: %w", err)
	}

	metrics.RecordAuth("login", "ok")
	return &AuthResult{User: user, Token: token}, nil
}

// ResolveSession turns a session token into the session it stands for. Any
// token that does not resolve to an existing user yields
// common.ErrorUnauthorized or one of the token errors.
func (s *UserService) ResolveSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	if s.revokeOnLogout && claims.ID != "" {
		revoked, err := s.repomanager.RevokedTokens(s.db).IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, common.ErrTokenRevoked
		}
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	sess := &Session{User: user, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// Logout revokes token when revocation is enabled. Invalid or expired tokens
// are ignored: there is nothing left to revoke.
func (s *UserService) Logout(ctx context.Context, token string) error {
	if !s.revokeOnLogout || token == "" {
		return nil
	}
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.repomanager.RevokedTokens(s.db).Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// ListUsers returns everybody but excludeID matching query.
func (s *UserService) ListUsers(ctx context.Context, query, excludeID string) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx, strings.TrimSpace(query), excludeID)
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.Age != nil && (*upd.Age < 0 || *upd.Age > 150) {
		return nil, fmt.Errorf("%w: age out of range", common.ErrorValidation)
	}
	for _, f := range []*string{upd.FullName, upd.Team, upd.Position} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	return s.repomanager.Users(s.db).UpdateProfile(ctx, id, upd)
}

// SetAvatar stores a square JPEG thumbnail of the upload and points the
// user's avatar at it.
func (s *UserService) SetAvatar(ctx context.Context, id string, up Upload) (*models.User, error) {
	thumb, err := media.AvatarThumbnail(up.Body)
	if err != nil {
		if errors.Is(err, media.ErrNotAnImage) {
			return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
		}
		return nil, err
	}

	objectPath := id + "/" + uuid.NewString() + ".jpg"
	res, err := s.storage.Upload(ctx, common.BucketAvatars, objectPath, thumb)
	metrics.RecordStorage("upload", err)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).SetAvatar(ctx, id, res.URL)
	if err != nil {
		rmErr := s.storage.Remove(ctx, common.BucketAvatars, res.Path)
		metrics.RecordStorage("remove", rmErr)
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	return email, nil
}
