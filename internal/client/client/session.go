package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/healthchat/internal/common"
)

// Event names used by the chat gateway.
const (
	EventSendMessage    = "sendMessage"
	EventConversationID = "conversationId"
	EventReceiveMessage = "receiveMessage"
	EventError          = "error"
)

// Event is one server push on a chat session.
type Event struct {
	Name string
	Data string
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Session is an open chat connection. Events are delivered in arrival order
// on Events; the channel closes when the connection ends.
type Session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	events  chan Event
	done    chan struct{}
	once    sync.Once

	errMu sync.Mutex
	err   error
}

const writeWait = 10 * time.Second

// Connect opens a chat session authenticated with the current access token.
func (c *HTTPClient) Connect(ctx context.Context) (*Session, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"

	header := http.Header{}
	header.Set("Authorization", common.BearerPrefix+c.accessToken())

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	s := &Session{conn: conn, events: make(chan Event, 256), done: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

func (s *Session) readLoop() {
	defer close(s.events)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(err)
			return
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		var data string
		if err := json.Unmarshal(f.Data, &data); err != nil {
			data = string(f.Data)
		}
		ev := Event{Name: f.Event, Data: data}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}

		// The gateway closes right after rejecting a handshake token.
		if ev.Name == EventError && ev.Data == "Unauthorized" {
			s.setErr(ErrUnauthorized)
		}
	}
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil || errors.Is(err, ErrUnauthorized) {
		s.err = err
	}
}

// Err reports why the session ended. A normal close yields nil.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if websocket.IsCloseError(s.err, websocket.CloseNormalClosure) {
		return nil
	}
	return s.err
}

func (s *Session) Events() <-chan Event { return s.events }

// Send asks a question. An empty conversationID starts a new conversation;
// its id arrives as a conversationId event.
func (s *Session) Send(ctx context.Context, conversationID, text string) error {
	data, err := json.Marshal(map[string]string{
		"message":        text,
		"conversationId": conversationID,
	})
	if err != nil {
		return err
	}
	msg, err := json.Marshal(frame{Event: EventSendMessage, Data: data})
	if err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// Close says goodbye and drops the connection.
func (s *Session) Close() error {
	s.once.Do(func() { close(s.done) })
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}
