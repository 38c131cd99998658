package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/dbx"
	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/auth"
	"github.com/dmitrijs2005/academyhub/internal/server/config"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/users"
	"github.com/dmitrijs2005/academyhub/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

// userManager serves only the users repository; the user service touches
// nothing else while revocation is off.
type userManager struct {
	repomanager.RepositoryManager
	users *users.MemoryRepository
}

func (m *userManager) Users(dbx.DBTX) users.Repository { return m.users }

type fakePosts struct {
	feedPage    int
	feedAcademy bool
	created     []services.NewPost
	liked       []string
	err         error
}

func (f *fakePosts) Feed(_ context.Context, _ string, page int, academyOnly bool) ([]*models.PostView, error) {
	f.feedPage, f.feedAcademy = page, academyOnly
	return []*models.PostView{}, f.err
}

func (f *fakePosts) Create(_ context.Context, author *models.User, in services.NewPost) (*models.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	return &models.Post{ID: "p1", UserID: author.ID, Content: in.Content, IsAcademyPost: in.Academy}, nil
}

func (f *fakePosts) Like(_ context.Context, postID, _ string) error {
	f.liked = append(f.liked, postID)
	return f.err
}

func (f *fakePosts) Unlike(context.Context, string, string) error { return f.err }

func (f *fakePosts) Comments(context.Context, string) ([]*models.Comment, error) {
	return []*models.Comment{}, f.err
}

func (f *fakePosts) AddComment(_ context.Context, postID, userID, content string) (*models.Comment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Comment{ID: "c1", PostID: postID, UserID: userID, Content: content}, nil
}

type fakeMessages struct {
	sentTo  string
	content string
	media   *services.Upload
}

func (f *fakeMessages) Contacts(context.Context, string) ([]*models.User, error) {
	return []*models.User{{ID: "u2", Email: "b@example.com", Username: "b"}}, nil
}

func (f *fakeMessages) Conversation(context.Context, string, string) ([]*models.Message, error) {
	return nil, common.ErrorNotFound
}

func (f *fakeMessages) Send(_ context.Context, senderID, receiverID, content string, media *services.Upload) (*models.Message, error) {
	f.sentTo, f.content, f.media = receiverID, content, media
	return &models.Message{ID: "m1", SenderID: senderID, ReceiverID: receiverID, Content: content}, nil
}

type fakeNotifications struct{}

func (fakeNotifications) Bell(context.Context, string) (*services.Bell, error) {
	return &services.Bell{Notifications: []services.NotificationView{}, Unread: 3}, nil
}

func (fakeNotifications) MarkRead(context.Context, string, string) error { return nil }

func (fakeNotifications) MarkAllRead(context.Context, string) (int64, error) { return 3, nil }

type fakePush struct{}

func (fakePush) PublicKey() string { return "" }

func (fakePush) Subscribe(context.Context, string, models.PushSubscription) (*models.PushSubscription, error) {
	return nil, common.ErrorValidation
}

func (fakePush) Unsubscribe(context.Context, string, string) error { return nil }

type RestSuite struct {
	suite.Suite

	cfg      *config.Config
	userRepo *users.MemoryRepository
	users    *services.UserService
	posts    *fakePosts
	messages *fakeMessages
	server   *Server
}

func TestRestSuite(t *testing.T) {
	suite.Run(t, new(RestSuite))
}

func (s *RestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *RestSuite) SetupTest() {
	s.cfg = &config.Config{}
	s.cfg.LoadDefaults()
	s.cfg.RateLimit.RPS = 0

	s.userRepo = users.NewMemoryRepository()
	s.users = services.NewUserService(nil, &userManager{users: s.userRepo}, s.cfg,
		auth.NewBcryptHasher(bcrypt.MinCost), nil, logging.Discard())
	s.posts = &fakePosts{}
	s.messages = &fakeMessages{}
	s.server = s.newServer(s.cfg, s.posts)
}

func (s *RestSuite) newServer(cfg *config.Config, posts PostService) *Server {
	return NewServer(cfg, Deps{
		Users:         s.users,
		Posts:         posts,
		Messages:      s.messages,
		Notifications: fakeNotifications{},
		Push:          fakePush{},
		Health:        func(context.Context) error { return nil },
	}, logging.Discard())
}

func (s *RestSuite) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(w, req)
	return w
}

func (s *RestSuite) doJSON(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return s.do(req)
}

func (s *RestSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == common.SessionCookieName {
			return c
		}
	}
	return nil
}

// login registers email and returns its session cookie.
func (s *RestSuite) login(email string) *http.Cookie {
	w := s.doJSON(http.MethodPost, "/auth/register", `{"email":"`+email+`","password":"password1"}`, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	ck := sessionCookie(w)
	s.Require().NotNil(ck)
	return ck
}

func (s *RestSuite) TestRegister() {
	w := s.doJSON(http.MethodPost, "/auth/register", `{"email":"A@Example.com","password":"password1","username":"alice"}`, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	body := s.decode(w)
	user := body["user"].(map[string]any)
	s.Equal("a@example.com", user["email"])
	s.Equal("alice", user["username"])
	s.NotContains(w.Body.String(), "password")

	ck := sessionCookie(w)
	s.Require().NotNil(ck)
	s.True(ck.HttpOnly)
	s.False(ck.Secure)
	s.Equal(http.SameSiteLaxMode, ck.SameSite)
	s.InDelta(86400, ck.MaxAge, 5)
}

func (s *RestSuite) TestRegister_DuplicateEmail() {
	s.login("a@example.com")

	w := s.doJSON(http.MethodPost, "/api/auth/register", `{"email":"a@example.com","password":"password2","username":"other"}`, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Email already registered", s.decode(w)["error"])
}

func (s *RestSuite) TestRegister_BadInput() {
	tests := []struct {
		name string
		body string
	}{
		{"no password key", `{"email":"a@example.com"}`},
		{"malformed json", `{"email":`},
		{"bad email", `{"email":"not-an-email","password":"password1"}`},
		{"short password", `{"email":"a@example.com","password":"short"}`},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.doJSON(http.MethodPost, "/auth/register", tt.body, nil)
			s.Equal(http.StatusBadRequest, w.Code)
			s.NotEmpty(s.decode(w)["error"])
			s.Nil(sessionCookie(w))
		})
	}
}

func (s *RestSuite) TestLogin() {
	s.login("a@example.com")

	w := s.doJSON(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"wrong-password"}`, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Invalid credentials", s.decode(w)["error"])

	w = s.doJSON(http.MethodPost, "/auth/login", `{"email":"nobody@example.com","password":"password1"}`, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Invalid credentials", s.decode(w)["error"])

	w = s.doJSON(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"password1"}`, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.NotNil(sessionCookie(w))
	s.Equal("a@example.com", s.decode(w)["user"].(map[string]any)["email"])
}

func (s *RestSuite) TestLogin_IncompleteBody() {
	s.login("a@example.com")

	tests := []struct {
		name string
		body string
	}{
		{"empty email", `{"email":""}`},
		{"no password key", `{"email":"a@example.com"}`},
		{"blank email", `{"email":"  ","password":"password1"}`},
		{"malformed json", `{"email":`},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.doJSON(http.MethodPost, "/auth/login", tt.body, nil)
			s.Equal(http.StatusUnauthorized, w.Code)
			s.Equal("Invalid credentials", s.decode(w)["error"])
			s.Nil(sessionCookie(w))
		})
	}
}

func (s *RestSuite) TestSession() {
	w := s.doJSON(http.MethodGet, "/auth/session", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"user":null}`, w.Body.String())

	w = s.doJSON(http.MethodGet, "/auth/session", "", &http.Cookie{Name: common.SessionCookieName, Value: "garbage"})
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"user":null}`, w.Body.String())

	ck := s.login("a@example.com")
	w = s.doJSON(http.MethodGet, "/api/auth/session", "", ck)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("a@example.com", s.decode(w)["user"].(map[string]any)["email"])
}

func (s *RestSuite) TestSession_BearerToken() {
	ck := s.login("a@example.com")

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+ck.Value)
	w := s.do(req)
	s.Equal("a@example.com", s.decode(w)["user"].(map[string]any)["email"])
}

func (s *RestSuite) TestLogout() {
	ck := s.login("a@example.com")

	w := s.doJSON(http.MethodPost, "/auth/logout", "", ck)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"success":true}`, w.Body.String())

	cleared := sessionCookie(w)
	s.Require().NotNil(cleared)
	s.Empty(cleared.Value)
	s.True(cleared.MaxAge < 0)
}

func (s *RestSuite) TestProtectedRoutesRequireSession() {
	for _, path := range []string{"/api/posts", "/api/messages/users", "/api/notifications", "/api/users"} {
		w := s.doJSON(http.MethodGet, path, "", nil)
		s.Equal(http.StatusUnauthorized, w.Code, path)
		s.JSONEq(`{"error":"Unauthorized"}`, w.Body.String())
	}
}

func (s *RestSuite) TestSessionForDeletedUserIsRejected() {
	tok, err := auth.GenerateToken("ghost", []byte(s.cfg.SecretKey), time.Hour)
	s.Require().NoError(err)

	w := s.doJSON(http.MethodGet, "/api/posts", "", &http.Cookie{Name: common.SessionCookieName, Value: tok.Value})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RestSuite) TestFeed() {
	ck := s.login("a@example.com")

	w := s.doJSON(http.MethodGet, "/api/posts?page=3&academy=true", "", ck)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(3, s.posts.feedPage)
	s.True(s.posts.feedAcademy)

	for _, q := range []string{"page=0", "page=-1", "page=abc", "academy=maybe"} {
		w = s.doJSON(http.MethodGet, "/api/posts?"+q, "", ck)
		s.Equal(http.StatusBadRequest, w.Code, q)
	}
}

func multipartBody(s *RestSuite, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		s.Require().NoError(err)
		_, err = fw.Write(content)
		s.Require().NoError(err)
	}
	s.Require().NoError(mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *RestSuite) TestCreatePost_Multipart() {
	ck := s.login("a@example.com")

	body, ct := multipartBody(s, map[string]string{"content": "match day"}, "media", "goal.png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(ck)
	w := s.do(req)

	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Require().Len(s.posts.created, 1)
	s.Equal("match day", s.posts.created[0].Content)
	s.Require().NotNil(s.posts.created[0].Media)
	s.Equal("goal.png", s.posts.created[0].Media.Filename)
}

func (s *RestSuite) TestCreatePost_AcademyRequiresStaff() {
	s.server = s.newServer(s.cfg, services.NewPostService(nil, nil, nil, nil, logging.Discard()))
	ck := s.login("a@example.com")

	body, ct := multipartBody(s, map[string]string{"content": "official", "academy": "true"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(ck)
	w := s.do(req)

	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("Forbidden", s.decode(w)["error"])
}

func (s *RestSuite) TestCreatePost_EmptyIsRejected() {
	s.server = s.newServer(s.cfg, services.NewPostService(nil, nil, nil, nil, logging.Discard()))
	ck := s.login("a@example.com")

	body, ct := multipartBody(s, map[string]string{"content": "   "}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(ck)
	w := s.do(req)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("post needs content or media", s.decode(w)["error"])
}

func (s *RestSuite) TestLikeAndComment() {
	ck := s.login("a@example.com")

	w := s.doJSON(http.MethodPost, "/api/posts/p9/like", "", ck)
	s.Equal(http.StatusOK, w.Code)
	s.Equal([]string{"p9"}, s.posts.liked)

	w = s.doJSON(http.MethodPost, "/api/posts/p9/comments", `{"content":"nice"}`, ck)
	s.Require().Equal(http.StatusCreated, w.Code)
	s.Equal("nice", s.decode(w)["comment"].(map[string]any)["content"])

	s.posts.err = common.ErrorNotFound
	w = s.doJSON(http.MethodGet, "/api/posts/missing/comments", "", ck)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RestSuite) TestMessages() {
	ck := s.login("a@example.com")

	w := s.doJSON(http.MethodGet, "/api/messages/users", "", ck)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["users"], 1)

	w = s.doJSON(http.MethodGet, "/api/messages/ghost", "", ck)
	s.Equal(http.StatusNotFound, w.Code)

	body, ct := multipartBody(s, map[string]string{"content": "hi"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/messages/u2", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(ck)
	w = s.do(req)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("u2", s.messages.sentTo)
	s.Equal("hi", s.messages.content)
	s.Nil(s.messages.media)
}

func (s *RestSuite) TestNotificationsAndPush() {
	ck := s.login("a@example.com")

	w := s.doJSON(http.MethodGet, "/api/notifications", "", ck)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"notifications":[],"unread":3}`, w.Body.String())

	w = s.doJSON(http.MethodPost, "/api/notifications/read-all", "", ck)
	s.JSONEq(`{"success":true,"updated":3}`, w.Body.String())

	w = s.doJSON(http.MethodGet, "/api/push/key", "", ck)
	s.JSONEq(`{"publicKey":"","enabled":false}`, w.Body.String())

	w = s.doJSON(http.MethodPost, "/api/push/subscriptions", `{"endpoint":"https://push.example/1"}`, ck)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RestSuite) TestProfile() {
	s.cfg.Gravatar.Enabled = true
	ck := s.login("a@example.com")

	w := s.doJSON(http.MethodPatch, "/api/users/me", `{"fullName":"Alice A","age":14}`, ck)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	user := s.decode(w)["user"].(map[string]any)
	s.Equal("Alice A", user["fullName"])
	s.Contains(user["avatarUrl"], "https://www.gravatar.com/avatar/")

	w = s.doJSON(http.MethodPatch, "/api/users/me", `{"age":200}`, ck)
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.doJSON(http.MethodGet, "/api/users/nope", "", ck)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.doJSON(http.MethodGet, "/api/users?q=ALI", "", ck)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["users"], 1)
}

func (s *RestSuite) TestAvatarRequiresFile() {
	ck := s.login("a@example.com")

	body, ct := multipartBody(s, map[string]string{"x": "y"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/users/me/avatar", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(ck)
	w := s.do(req)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Avatar file is required", s.decode(w)["error"])
}

func (s *RestSuite) TestRateLimit() {
	cfg := *s.cfg
	cfg.RateLimit.RPS = 0.001
	cfg.RateLimit.Burst = 2
	s.server = s.newServer(&cfg, s.posts)

	body := `{"email":"a@example.com","password":"password1"}`
	for i := 0; i < 2; i++ {
		w := s.doJSON(http.MethodPost, "/auth/login", body, nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	}
	w := s.doJSON(http.MethodPost, "/auth/login", body, nil)
	s.Equal(http.StatusTooManyRequests, w.Code)

	// other clients keep their own bucket
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.7:4321"
	s.Equal(http.StatusUnauthorized, s.do(req).Code)
}

func (s *RestSuite) TestRateLimit_IgnoresForwardedForFromUntrustedPeer() {
	cfg := *s.cfg
	cfg.RateLimit.RPS = 0.001
	cfg.RateLimit.Burst = 2
	s.server = s.newServer(&cfg, s.posts)

	body := `{"email":"a@example.com","password":"password1"}`
	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		codes = append(codes, s.do(req).Code)
	}
	s.Equal([]int{
		http.StatusUnauthorized, http.StatusUnauthorized,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)
}

func (s *RestSuite) TestRateLimit_HonoursForwardedForFromTrustedProxy() {
	cfg := *s.cfg
	cfg.RateLimit.RPS = 0.001
	cfg.RateLimit.Burst = 1
	cfg.TrustedProxies = []string{"192.0.2.0/24"}
	s.server = s.newServer(&cfg, s.posts)

	body := `{"email":"a@example.com","password":"password1"}`
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		s.Equal(http.StatusUnauthorized, s.do(req).Code)
	}
}

func (s *RestSuite) TestHealthzAndMetrics() {
	w := s.doJSON(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.doJSON(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "academyhub_")

	s.server = NewServer(s.cfg, Deps{
		Users:  s.users,
		Health: func(context.Context) error { return errors.New("db down") },
	}, logging.Discard())
	w = s.doJSON(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{common.ErrEmailTaken, http.StatusBadRequest, "Email already registered"},
		{common.ErrUsernameTaken, http.StatusBadRequest, "Username already taken"},
		{errors.Join(errors.New("x"), common.ErrInvalidCredentials), http.StatusUnauthorized, "Invalid credentials"},
		{common.ErrTokenRevoked, http.StatusUnauthorized, "Unauthorized"},
		{common.ErrorForbidden, http.StatusForbidden, "Forbidden"},
		{common.ErrorNotFound, http.StatusNotFound, "Not found"},
		{common.ErrRateLimited, http.StatusTooManyRequests, "Too many requests"},
		{errors.New("db error: boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		code, msg := errorStatus(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.msg, msg)
	}
}

func TestValidationMessage(t *testing.T) {
	err := fmt.Errorf("%w: age out of range", common.ErrorValidation)
	assert.Equal(t, "age out of range", validationMessage(err))

	wrapped := fmt.Errorf("update profile: %w", err)
	assert.Equal(t, "age out of range", validationMessage(wrapped))

	assert.Equal(t, "validation error", validationMessage(common.ErrorValidation))
}

func (s *RestSuite) TestSessionAuthenticator() {
	authn := SessionAuthenticator(s.users)

	req := httptest.NewRequest(http.MethodGet, "/socket", nil)
	s.Empty(authn(req))

	ck := s.login("a@example.com")
	req = httptest.NewRequest(http.MethodGet, "/socket", nil)
	req.AddCookie(ck)
	u, err := s.userRepo.GetByEmail(context.Background(), "a@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, authn(req))
}
