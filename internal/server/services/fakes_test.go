package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/academyhub/internal/common"
	"github.com/dmitrijs2005/academyhub/internal/dbx"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/notify/webpush"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/messages"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/posts"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/pushsubscriptions"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/academyhub/internal/server/repositories/users"
	"github.com/dmitrijs2005/academyhub/internal/storage"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- repository manager ---

type fakeManager struct {
	users   *users.MemoryRepository
	posts   *fakePosts
	msgs    *fakeMessages
	notifs  *fakeNotifications
	revoked *fakeRevoked
	push    *fakePushSubs
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		users:   users.NewMemoryRepository(),
		posts:   &fakePosts{posts: map[string]*models.Post{}, likes: map[string]bool{}},
		msgs:    &fakeMessages{},
		notifs:  &fakeNotifications{},
		revoked: &fakeRevoked{jtis: map[string]time.Time{}},
		push:    &fakePushSubs{},
	}
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeManager) Posts(dbx.DBTX) posts.Repository              { return m.posts }
func (m *fakeManager) Messages(dbx.DBTX) messages.Repository        { return m.msgs }
func (m *fakeManager) Notifications(dbx.DBTX) notifications.Repository {
	return m.notifs
}
func (m *fakeManager) RevokedTokens(dbx.DBTX) revokedtokens.Repository { return m.revoked }
func (m *fakeManager) PushSubscriptions(dbx.DBTX) pushsubscriptions.Repository {
	return m.push
}

// --- posts ---

type fakePosts struct {
	mu       sync.Mutex
	posts    map[string]*models.Post
	likes    map[string]bool
	comments []*models.Comment
	seq      int

	createErr error
	likeErr   error
	listArgs  []any
}

func (f *fakePosts) add(userID string) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	p := &models.Post{ID: fmt.Sprintf("p%d", f.seq), UserID: userID, CreatedAt: time.Now()}
	f.posts[p.ID] = p
	return p
}

func (f *fakePosts) Create(_ context.Context, post *models.Post) (*models.Post, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	post.ID = fmt.Sprintf("p%d", f.seq)
	post.CreatedAt = time.Now()
	f.posts[post.ID] = post
	return post, nil
}

func (f *fakePosts) GetByID(_ context.Context, id string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return p, nil
}

func (f *fakePosts) List(_ context.Context, viewerID string, academyOnly bool, limit, offset int) ([]*models.PostView, error) {
	f.listArgs = []any{viewerID, academyOnly, limit, offset}
	return []*models.PostView{}, nil
}

func (f *fakePosts) Like(_ context.Context, postID, userID string) (bool, error) {
	if f.likeErr != nil {
		return false, f.likeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := postID + "/" + userID
	if f.likes[key] {
		return false, nil
	}
	f.likes[key] = true
	return true, nil
}

func (f *fakePosts) Unlike(_ context.Context, postID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.likes, postID+"/"+userID)
	return nil
}

func (f *fakePosts) AddComment(_ context.Context, c *models.Comment) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = fmt.Sprintf("c%d", len(f.comments)+1)
	c.CreatedAt = time.Now()
	f.comments = append(f.comments, c)
	return c, nil
}

func (f *fakePosts) ListComments(_ context.Context, postID string) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Comment
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- messages ---

type fakeMessages struct {
	mu        sync.Mutex
	msgs      []*models.Message
	createErr error
}

func (f *fakeMessages) Create(_ context.Context, m *models.Message) (*models.Message, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = fmt.Sprintf("m%d", len(f.msgs)+1)
	m.CreatedAt = time.Now()
	f.msgs = append(f.msgs, m)
	return m, nil
}

func (f *fakeMessages) Conversation(_ context.Context, a, b string) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for _, m := range f.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- notifications ---

type fakeNotifications struct {
	mu        sync.Mutex
	items     []*models.Notification
	createErr error
	unread    int
}

func (f *fakeNotifications) Create(_ context.Context, n *models.Notification) (*models.Notification, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = fmt.Sprintf("n%d", len(f.items)+1)
	n.CreatedAt = time.Now()
	n.Sender = &models.Author{ID: n.SenderID, Username: "sender"}
	f.items = append(f.items, n)
	return n, nil
}

func (f *fakeNotifications) Latest(_ context.Context, userID string, limit int) ([]*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Notification
	for i := len(f.items) - 1; i >= 0 && len(out) < limit; i-- {
		if f.items[i].UserID == userID {
			out = append(out, f.items[i])
		}
	}
	return out, nil
}

func (f *fakeNotifications) CountUnread(context.Context, string) (int, error) {
	return f.unread, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return common.ErrorNotFound
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, it := range f.items {
		if it.UserID == userID && !it.Read {
			it.Read = true
			n++
		}
	}
	return n, nil
}

// --- revoked tokens ---

type fakeRevoked struct {
	mu   sync.Mutex
	jtis map[string]time.Time
}

func (f *fakeRevoked) Revoke(_ context.Context, jti string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jtis[jti] = exp
	return nil
}

func (f *fakeRevoked) IsRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jtis[jti]
	return ok, nil
}

func (f *fakeRevoked) PurgeExpired(context.Context, time.Time) (int64, error) { return 0, nil }

// --- push subscriptions ---

type fakePushSubs struct {
	mu      sync.Mutex
	subs    []*models.PushSubscription
	deleted []string
}

func (f *fakePushSubs) Upsert(_ context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub.ID = fmt.Sprintf("s%d", len(f.subs)+1)
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakePushSubs) ListByUser(_ context.Context, userID string) ([]*models.PushSubscription, error) {
	return nil, nil
}

func (f *fakePushSubs) DeleteByEndpoint(_ context.Context, userID, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, userID+" "+endpoint)
	return nil
}

// --- storage ---

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	removed   []string
	uploadErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Upload(_ context.Context, bucket, path string, r io.Reader) (*storage.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+path] = buf.Bytes()
	return &storage.UploadResult{Path: path, URL: f.URL(bucket, path)}, nil
}

func (f *fakeStorage) URL(bucket, path string) string {
	return "http://storage.test/" + bucket + "/" + path
}

func (f *fakeStorage) Remove(_ context.Context, bucket, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+path)
	f.removed = append(f.removed, bucket+"/"+path)
	return nil
}

// --- delivery ---

type emitted struct {
	Room, Event string
	Data        any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
	err    error
}

func (f *fakeEmitter) Emit(_ context.Context, room, event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{room, event, data})
	return f.err
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []*models.Notification
}

func (f *fakeNotifier) Deliver(_ context.Context, n *models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, n)
}

type fakePush struct {
	mu       sync.Mutex
	userIDs  []string
	payloads []webpush.Payload
	err      error
}

func (f *fakePush) Send(_ context.Context, userID string, p webpush.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userIDs = append(f.userIDs, userID)
	f.payloads = append(f.payloads, p)
	return f.err
}
