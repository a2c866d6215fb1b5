package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/healthchat/internal/common"
	"github.com/dmitrijs2005/healthchat/internal/dbx"
	"github.com/dmitrijs2005/healthchat/internal/server/models"
	"github.com/dmitrijs2005/healthchat/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/healthchat/internal/server/repositories/messages"
	refreshtokensrepo "github.com/dmitrijs2005/healthchat/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/healthchat/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	createOut *models.User
	createErr error
	created   *models.User

	getOut *models.User
	getErr error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.created = u
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createOut, nil
}

func (f *fakeUsersRepo) GetByEmail(context.Context, string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) GetByID(context.Context, string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

// --- refresh tokens ---

type fakeRefreshRepo struct {
	findOut *models.RefreshToken
	findErr error

	delErr    error
	createErr error

	created       []string
	expiredPurged bool
}

func (f *fakeRefreshRepo) Create(_ context.Context, _ string, token string, _ time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	return nil
}

func (f *fakeRefreshRepo) Find(context.Context, string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeRefreshRepo) Delete(context.Context, string) error { return f.delErr }

func (f *fakeRefreshRepo) DeleteExpired(context.Context, string, time.Time) (int64, error) {
	f.expiredPurged = true
	return 0, errBoom{}
}

// --- conversation store (in memory) ---

// memStore backs both the conversations and messages fakes so ownership and
// ordering behave like the real tables.
type memStore struct {
	mu    sync.Mutex
	clock time.Time
	convs map[string]*models.Conversation
	msgs  []*models.Message

	failCreateConv    error
	failFind          error
	failTouch         error
	failCreateMessage error
	failList          error
}

func newMemStore() *memStore {
	return &memStore{
		clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		convs: map[string]*models.Conversation{},
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type fakeConversations struct{ s *memStore }

func (f fakeConversations) Create(_ context.Context, c *models.Conversation) (*models.Conversation, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failCreateConv != nil {
		return nil, f.s.failCreateConv
	}
	cp := *c
	cp.ID = uuid.NewString()
	cp.CreatedAt = f.s.tick()
	cp.UpdatedAt = cp.CreatedAt
	f.s.convs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f fakeConversations) FindOwned(_ context.Context, id, ownerID string) (*models.Conversation, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failFind != nil {
		return nil, f.s.failFind
	}
	c, ok := f.s.convs[id]
	if !ok || c.UserID != ownerID {
		return nil, common.ErrorNotFound
	}
	out := *c
	return &out, nil
}

func (f fakeConversations) Touch(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failTouch != nil {
		return f.s.failTouch
	}
	c, ok := f.s.convs[id]
	if !ok {
		return common.ErrorNotFound
	}
	c.UpdatedAt = f.s.tick()
	return nil
}

func (f fakeConversations) ListByOwner(_ context.Context, ownerID string) ([]*models.Conversation, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failList != nil {
		return nil, f.s.failList
	}
	out := []*models.Conversation{}
	for _, c := range f.s.convs {
		if c.UserID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type fakeMessages struct{ s *memStore }

func (f fakeMessages) Create(_ context.Context, m *models.Message) (*models.Message, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failCreateMessage != nil {
		return nil, f.s.failCreateMessage
	}
	cp := *m
	cp.ID = uuid.NewString()
	cp.CreatedAt = f.s.tick()
	f.s.msgs = append(f.s.msgs, &cp)
	out := cp
	return &out, nil
}

func (f fakeMessages) filter(keep func(*models.Message) bool) ([]*models.Message, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.failList != nil {
		return nil, f.s.failList
	}
	out := []*models.Message{}
	for _, m := range f.s.msgs {
		if keep(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeMessages) ListByConversation(_ context.Context, id string) ([]*models.Message, error) {
	return f.filter(func(m *models.Message) bool { return m.ConversationID == id })
}

func (f fakeMessages) ListByUser(_ context.Context, userID string) ([]*models.Message, error) {
	return f.filter(func(m *models.Message) bool { return m.UserID == userID })
}

// --- manager ---

type fakeRepoManager struct {
	u     *fakeUsersRepo
	r     *fakeRefreshRepo
	store *memStore
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Conversations(dbx.DBTX) conversations.Repository {
	return fakeConversations{s: m.store}
}
func (m *fakeRepoManager) Messages(dbx.DBTX) messages.Repository { return fakeMessages{s: m.store} }
