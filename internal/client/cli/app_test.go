package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/healthchat/internal/client/client"
)

type fakeAPI struct {
	registered []string
	loginErr   error
	loggedOut  bool
	convs      []client.Conversation
	msgs       map[string][]client.Message
	uploadErr  error
	uploaded   string
	gotPass    string
}

func (f *fakeAPI) Register(_ context.Context, email, name string, password []byte) (*client.User, error) {
	f.registered = append(f.registered, email+"/"+name)
	f.gotPass = string(password)
	return &client.User{ID: "u1", Email: email, Name: name}, nil
}
func (f *fakeAPI) Login(_ context.Context, email string, password []byte) (*client.User, error) {
	f.gotPass = string(password)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &client.User{ID: "u1", Email: email}, nil
}
func (f *fakeAPI) Logout() { f.loggedOut = true }
func (f *fakeAPI) ListConversations(context.Context) ([]client.Conversation, error) {
	return f.convs, nil
}
func (f *fakeAPI) CreateConversation(_ context.Context, title string) (*client.Conversation, error) {
	if title == "" {
		title = "New Chat"
	}
	return &client.Conversation{ID: "c-new", Title: title}, nil
}
func (f *fakeAPI) Messages(_ context.Context, id string) ([]client.Message, error) {
	return f.msgs[id], nil
}
func (f *fakeAPI) Upload(_ context.Context, path string) (*client.UploadResult, error) {
	f.uploaded = path
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &client.UploadResult{Summary: "It contains 3 rows of data.", Rows: 3}, nil
}

// fakeSession answers each Send with a scripted list of events.
type fakeSession struct {
	events  chan client.Event
	script  func(convID, text string) []client.Event
	sent    []string
	sendErr error
	closed  bool
}

func newFakeSession(script func(convID, text string) []client.Event) *fakeSession {
	return &fakeSession{events: make(chan client.Event, 64), script: script}
}

func (s *fakeSession) Send(_ context.Context, convID, text string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, convID+"|"+text)
	for _, ev := range s.script(convID, text) {
		s.events <- ev
	}
	return nil
}
func (s *fakeSession) Events() <-chan client.Event { return s.events }
func (s *fakeSession) Err() error                  { return nil }
func (s *fakeSession) Close() error                { s.closed = true; return nil }

func echo(convID, text string) []client.Event {
	if convID == "" {
		convID = "c-1"
	}
	evs := []client.Event{{Name: client.EventConversationID, Data: convID}}
	for _, w := range strings.SplitAfter(text, " ") {
		evs = append(evs, client.Event{Name: client.EventReceiveMessage, Data: w})
	}
	return evs
}

func testApp(api *fakeAPI, sess *fakeSession) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	a := newApp(api, strings.NewReader(""), &out)
	a.firstWait = time.Second
	a.quietWait = 20 * time.Millisecond
	a.dial = func(context.Context) (chatSession, error) {
		if sess == nil {
			return nil, client.ErrUnavailable
		}
		return sess, nil
	}
	return a, &out
}

func stubInputs(t *testing.T, lines []string, password string) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	i := 0
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if i >= len(lines) {
			return "", io.EOF
		}
		i++
		return lines[i-1], nil
	}
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte(password), nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

func TestRegisterAndLogin(t *testing.T) {
	api := &fakeAPI{}
	a, out := testApp(api, nil)
	ctx := context.Background()

	stubInputs(t, []string{"alice@example.com", "Alice"}, "secret1")
	require.NoError(t, a.Register(ctx))
	assert.Equal(t, []string{"alice@example.com/Alice"}, api.registered)
	assert.Equal(t, "secret1", api.gotPass)
	assert.False(t, a.isLoggedIn())

	stubInputs(t, []string{"alice@example.com"}, "secret1")
	require.NoError(t, a.Login(ctx))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "(alice@example.com)", a.getStatus())
	assert.Contains(t, out.String(), "Login successful")

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.isLoggedIn())
	assert.True(t, api.loggedOut)
	assert.Equal(t, "", a.getStatus())
}

func TestLogin_Failure(t *testing.T) {
	api := &fakeAPI{loginErr: &client.APIError{StatusCode: 401, Message: "unauthorized"}}
	a, out := testApp(api, nil)

	stubInputs(t, []string{"alice@example.com"}, "wrong")
	err := a.Login(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "wrong email or password")
}

func TestConversationCommands(t *testing.T) {
	api := &fakeAPI{
		convs: []client.Conversation{{ID: "c-1", Title: "Fever"}, {ID: "c-2", Title: "Sleep"}},
		msgs: map[string][]client.Message{
			"c-1": {{Role: "user", Content: "What is a fever?"}, {Role: "assistant", Content: "A fever is...\n"}},
		},
	}
	a, out := testApp(api, nil)
	a.user = &client.User{Email: "alice@example.com"}
	ctx := context.Background()

	require.NoError(t, a.Open(ctx, "c-1"))
	assert.Equal(t, "c-1", a.current)
	assert.Contains(t, out.String(), "[user] What is a fever?\n[assistant] A fever is...\n")

	out.Reset()
	require.NoError(t, a.List(ctx))
	assert.Contains(t, out.String(), "* c-1  Fever")
	assert.Contains(t, out.String(), "  c-2  Sleep")

	out.Reset()
	require.NoError(t, a.Open(ctx, "someone-elses"))
	assert.Equal(t, "c-1", a.current, "an empty thread does not switch")
	assert.Contains(t, out.String(), "No messages found")

	require.NoError(t, a.New(ctx, ""))
	assert.Equal(t, "c-new", a.current)
	assert.Equal(t, "(alice@example.com c-new)", a.getStatus())
}

func TestUpload(t *testing.T) {
	api := &fakeAPI{}
	a, out := testApp(api, nil)

	require.NoError(t, a.Upload(context.Background(), "/tmp/labs.xlsx"))
	assert.Equal(t, "/tmp/labs.xlsx", api.uploaded)
	assert.Contains(t, out.String(), "3 rows")

	api.uploadErr = &client.APIError{StatusCode: 422, Message: "unsupported file type"}
	assert.Error(t, a.Upload(context.Background(), "/tmp/scan.pdf"))
	assert.Contains(t, out.String(), "unsupported file type")
}

func TestSend_StreamsReplyAndTracksConversation(t *testing.T) {
	sess := newFakeSession(echo)
	a, out := testApp(&fakeAPI{}, sess)
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, "what is a fever"))
	assert.Equal(t, "c-1", a.current)
	assert.Equal(t, "what is a fever\n", out.String())

	out.Reset()
	require.NoError(t, a.Send(ctx, "thanks"))
	assert.Equal(t, []string{"|what is a fever", "c-1|thanks"}, sess.sent)
	assert.Equal(t, "thanks\n", out.String())

	a.Close()
	assert.True(t, sess.closed)
}

func TestSend_ErrorEvent(t *testing.T) {
	sess := newFakeSession(func(string, string) []client.Event {
		return []client.Event{{Name: client.EventError, Data: "Failed to save message"}}
	})
	a, out := testApp(&fakeAPI{}, sess)

	err := a.Send(context.Background(), "hello")
	assert.Error(t, err)
	assert.Contains(t, out.String(), "error: Failed to save message")
}

func TestSend_NoReply(t *testing.T) {
	sess := newFakeSession(func(string, string) []client.Event { return nil })
	a, _ := testApp(&fakeAPI{}, sess)
	a.firstWait = 30 * time.Millisecond

	err := a.Send(context.Background(), "hello")
	assert.True(t, errors.Is(err, errNoReply))
}

func TestSend_Unavailable(t *testing.T) {
	a, out := testApp(&fakeAPI{}, nil)

	err := a.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, client.ErrUnavailable)
	assert.Contains(t, out.String(), "server unavailable")
}

func TestSend_ConnectionClosed(t *testing.T) {
	sess := newFakeSession(func(string, string) []client.Event { return nil })
	a, _ := testApp(&fakeAPI{}, sess)
	close(sess.events)

	err := a.Send(context.Background(), "hello")
	assert.Error(t, err)
	assert.Nil(t, a.session, "a dead session is dropped")
}
