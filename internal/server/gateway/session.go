package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/healthchat/internal/logging"
	"github.com/dmitrijs2005/healthchat/internal/server/models"
)

// session is the state of one authenticated connection. It is owned by the
// handler goroutine and dropped when the connection closes.
type session struct {
	id     string
	user   *models.User
	conn   *websocket.Conn
	turns  *turnRunner
	opts   Options
	logger logging.Logger

	writeMu sync.Mutex
	queue   chan SendMessageRequest

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(id string, user *models.User, conn *websocket.Conn, turns *turnRunner, opts Options, logger logging.Logger) *session {
	return &session{
		id:     id,
		user:   user,
		conn:   conn,
		turns:  turns,
		opts:   opts,
		logger: logger,
		queue:  make(chan SendMessageRequest, max(opts.QueueSize, 1)),
	}
}

// Emit writes one event frame. Any write failure ends the session.
func (s *session) Emit(event, data string) error {
	if s.ctx.Err() != nil {
		return errGone
	}
	msg, err := encodeEvent(event, data)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		s.cancel()
		return fmt.Errorf("%w: %w", errGone, err)
	}
	return nil
}

// run blocks until the connection is closed by either side or ctx ends.
func (s *session) run(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()
	defer s.conn.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.worker()
	}()
	go func() {
		defer wg.Done()
		s.pinger()
	}()

	s.readLoop()
	s.cancel()
	// Unblock a worker that is waiting on a write.
	_ = s.conn.Close()
	wg.Wait()
}

// readLoop parses frames and queues turns. It keeps reading while a turn
// is in flight so a disconnect is noticed immediately.
func (s *session) readLoop() {
	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	// Close the connection when the server shuts down so ReadMessage returns.
	stop := context.AfterFunc(s.ctx, func() { _ = s.conn.Close() })
	defer stop()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug(s.ctx, "connection closed normally")
			} else if s.ctx.Err() == nil {
				s.logger.Debug(s.ctx, "websocket read error", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		req, err := parseRequest(raw)
		if err != nil {
			s.logger.Debug(s.ctx, "malformed request", "error", err)
			if s.Emit(EventError, MalformedText) != nil {
				return
			}
			continue
		}

		select {
		case s.queue <- req:
		case <-s.ctx.Done():
			return
		}
	}
}

// worker runs queued turns one at a time, so two turns on the same
// connection never interleave.
func (s *session) worker() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.queue:
			if s.ctx.Err() != nil {
				return
			}
			s.turns.run(s.ctx, s.user, req, s)
		}
	}
}

func (s *session) pinger() {
	if s.opts.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				s.cancel()
				return
			}
		}
	}
}
