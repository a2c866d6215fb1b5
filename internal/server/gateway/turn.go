package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/healthchat/internal/logging"
	"github.com/dmitrijs2005/healthchat/internal/server/completion"
	"github.com/dmitrijs2005/healthchat/internal/server/contextcache"
	"github.com/dmitrijs2005/healthchat/internal/server/metrics"
	"github.com/dmitrijs2005/healthchat/internal/server/models"
)

// ConversationStore is the persistence the gateway needs.
type ConversationStore interface {
	AppendMessage(ctx context.Context, role models.Role, content, ownerID, conversationID string) (*models.Message, error)
}

// Emitter delivers events to one connection.
type Emitter interface {
	Emit(event, data string) error
}

// errGone marks an emit to a connection that is already closed.
var errGone = errors.New("connection gone")

// turnRunner executes sendMessage requests for one user. It holds no
// per-turn state between calls.
type turnRunner struct {
	store          ConversationStore
	cache          contextcache.Cache
	bridge         completion.Streamer
	logger         logging.Logger
	persistTimeout time.Duration
}

// run handles one request end to end. ctx is the session context: once it
// is cancelled the turn is abandoned and nothing more is persisted.
func (t *turnRunner) run(ctx context.Context, user *models.User, req SendMessageRequest, out Emitter) {
	start := time.Now()
	text := req.Content()

	userMsg, err := t.store.AppendMessage(ctx, models.RoleUser, text, user.ID, req.ConversationID)
	if err != nil {
		if ctx.Err() != nil {
			metrics.TurnsTotal.WithLabelValues("disconnected").Inc()
			return
		}
		t.logger.Error(ctx, "persist user message", "error", err)
		metrics.TurnsTotal.WithLabelValues("persist_error").Inc()
		_ = out.Emit(EventError, PersistFailText)
		return
	}
	convID := userMsg.ConversationID

	if err := out.Emit(EventConversationID, convID); err != nil {
		metrics.TurnsTotal.WithLabelValues("disconnected").Inc()
		return
	}

	contextText, hasContext, err := t.cache.Get(ctx, user.ID)
	if err != nil {
		t.logger.Warn(ctx, "context lookup failed, answering without it", "error", err)
		hasContext = false
	}
	prompt := BuildPrompt(contextText, hasContext, text)

	var (
		reply     strings.Builder
		streamErr error
	)
	for frag, err := range t.bridge.Stream(ctx, SystemPrompt, prompt) {
		if err != nil {
			streamErr = err
			break
		}
		if err := out.Emit(EventReceiveMessage, frag); err != nil {
			streamErr = err
			break
		}
		reply.WriteString(frag)
		metrics.FragmentsStreamed.Inc()
	}

	if ctx.Err() != nil || errors.Is(streamErr, errGone) {
		t.logger.Info(ctx, "turn abandoned, client went away", "conversation_id", convID, "fragments_bytes", reply.Len())
		metrics.TurnsTotal.WithLabelValues("disconnected").Inc()
		return
	}

	content := reply.String()
	outcome := "completed"
	if streamErr != nil {
		t.logger.Warn(ctx, "completion failed", "conversation_id", convID, "error", streamErr)
		outcome = "upstream_error"
		content = ApologyText
		if err := out.Emit(EventReceiveMessage, ApologyText); err != nil {
			metrics.TurnsTotal.WithLabelValues("disconnected").Inc()
			return
		}
	}

	// The reply is complete; finish the write even if the client leaves now.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.persistTimeout)
	defer cancel()
	if _, err := t.store.AppendMessage(pctx, models.RoleAssistant, content, user.ID, convID); err != nil {
		t.logger.Error(ctx, "persist assistant message", "conversation_id", convID, "error", err)
		metrics.TurnsTotal.WithLabelValues("persist_error").Inc()
		_ = out.Emit(EventError, PersistFailText)
		return
	}

	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	t.logger.Debug(ctx, "turn finished", "conversation_id", convID, "outcome", outcome, "bytes", len(content))
}
