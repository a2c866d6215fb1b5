package gateway

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/dmitrijs2005/healthchat/internal/common"
	"github.com/dmitrijs2005/healthchat/internal/server/models"
)

// --- store ---

type fakeStore struct {
	mu       sync.Mutex
	msgs     []*models.Message
	convs    map[string]string // id -> owner
	failRole map[models.Role]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		convs:    map[string]string{},
		failRole: map[models.Role]error{},
	}
}

func (s *fakeStore) AppendMessage(ctx context.Context, role models.Role, content, ownerID, conversationID string) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failRole[role]; err != nil {
		return nil, err
	}
	if owner, ok := s.convs[conversationID]; !ok || owner != ownerID {
		conversationID = fmt.Sprintf("conv-%d", len(s.convs)+1)
		s.convs[conversationID] = ownerID
	}
	m := &models.Message{
		ID:             fmt.Sprintf("msg-%d", len(s.msgs)+1),
		Role:           role,
		Content:        content,
		ConversationID: conversationID,
		UserID:         ownerID,
	}
	s.msgs = append(s.msgs, m)
	return m, nil
}

func (s *fakeStore) messages() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Message(nil), s.msgs...)
}

func (s *fakeStore) byRole(role models.Role) []*models.Message {
	var out []*models.Message
	for _, m := range s.messages() {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// --- bridge ---

type script func(ctx context.Context, yield func(string, error) bool)

type fakeBridge struct {
	mu      sync.Mutex
	systems []string
	prompts []string
	script  script
}

func (b *fakeBridge) Stream(ctx context.Context, systemPrompt, userPrompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		b.mu.Lock()
		b.systems = append(b.systems, systemPrompt)
		b.prompts = append(b.prompts, userPrompt)
		run := b.script
		b.mu.Unlock()
		run(ctx, yield)
	}
}

func (b *fakeBridge) lastPrompt() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.prompts) == 0 {
		return ""
	}
	return b.prompts[len(b.prompts)-1]
}

func fragments(fr ...string) script {
	return func(_ context.Context, yield func(string, error) bool) {
		for _, f := range fr {
			if !yield(f, nil) {
				return
			}
		}
	}
}

func failAfter(err error, fr ...string) script {
	return func(_ context.Context, yield func(string, error) bool) {
		for _, f := range fr {
			if !yield(f, nil) {
				return
			}
		}
		yield("", err)
	}
}

// blockAfter yields the fragments and then waits for cancellation, as a
// real upstream call does when its request context ends.
func blockAfter(fr ...string) script {
	return func(ctx context.Context, yield func(string, error) bool) {
		for _, f := range fr {
			if !yield(f, nil) {
				return
			}
		}
		<-ctx.Done()
		yield("", ctx.Err())
	}
}

// --- emitter ---

type event struct{ name, data string }

type recorder struct {
	mu     sync.Mutex
	events []event
	onEmit func(event) error
}

func (r *recorder) Emit(name, data string) error {
	e := event{name, data}
	if r.onEmit != nil {
		if err := r.onEmit(e); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) named(name string) []string {
	var out []string
	for _, e := range r.all() {
		if e.name == name {
			out = append(out, e.data)
		}
	}
	return out
}

// --- verifier ---

type fakeVerifier struct {
	users map[string]*models.User
}

func (v fakeVerifier) Verify(_ context.Context, token string) (*models.User, error) {
	if u, ok := v.users[token]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: bad token", common.ErrorUnauthorized)
}

// --- cache ---

type brokenCache struct{}

func (brokenCache) Put(context.Context, string, string) error { return errors.New("cache down") }
func (brokenCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache down")
}
