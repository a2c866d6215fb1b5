package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/healthchat/internal/common"
	"github.com/dmitrijs2005/healthchat/internal/dbx"
	"github.com/dmitrijs2005/healthchat/internal/server/models"
	"github.com/dmitrijs2005/healthchat/internal/server/repositories/repomanager"
)

// TitleLength is how many characters of the first user message become the
// conversation title.
const TitleLength = 30

// ConversationService is the conversation store: it owns conversations and
// the append-only message log, and enforces that a user only ever sees
// their own threads.
type ConversationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewConversationService(db *sql.DB, m repomanager.RepositoryManager) *ConversationService {
	return &ConversationService{db: db, repomanager: m}
}

// CreateConversation starts an empty thread. A blank title becomes "New Chat".
func (s *ConversationService) CreateConversation(ctx context.Context, ownerID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = common.DefaultConversationTitle
	}
	c, err := s.repomanager.Conversations(s.db).Create(ctx, &models.Conversation{Title: title, UserID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("%w: create conversation: %w", common.ErrPersistence, err)
	}
	return c, nil
}

// ListConversations returns the owner's threads, most recently active first.
func (s *ConversationService) ListConversations(ctx context.Context, ownerID string) ([]*models.Conversation, error) {
	list, err := s.repomanager.Conversations(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", common.ErrPersistence, err)
	}
	if list == nil {
		list = []*models.Conversation{}
	}
	return list, nil
}

// GetMessages returns the thread's messages oldest first. Unknown, foreign
// or malformed conversation IDs produce an empty list rather than an error.
func (s *ConversationService) GetMessages(ctx context.Context, conversationID, requesterID string) ([]*models.Message, error) {
	empty := []*models.Message{}
	if _, err := uuid.Parse(conversationID); err != nil {
		return empty, nil
	}

	if _, err := s.repomanager.Conversations(s.db).FindOwned(ctx, conversationID, requesterID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return empty, nil
		}
		return nil, fmt.Errorf("%w: find conversation: %w", common.ErrPersistence, err)
	}

	list, err := s.repomanager.Messages(s.db).ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", common.ErrPersistence, err)
	}
	if list == nil {
		list = empty
	}
	return list, nil
}

// ListAllMessages returns every message the user has written or received,
// across all conversations, oldest first.
//
// Deprecated: kept for the legacy /chat endpoint; use GetMessages.
func (s *ConversationService) ListAllMessages(ctx context.Context, ownerID string) ([]*models.Message, error) {
	list, err := s.repomanager.Messages(s.db).ListByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", common.ErrPersistence, err)
	}
	if list == nil {
		list = []*models.Message{}
	}
	return list, nil
}

// AppendMessage stores a message in the given conversation, creating the
// conversation first when conversationID is empty, malformed, unknown or
// owned by someone else. The returned message carries the ID of the
// conversation it actually landed in.
func (s *ConversationService) AppendMessage(ctx context.Context, role models.Role, content, ownerID, conversationID string) (*models.Message, error) {
	if !role.Valid() {
		return nil, common.ErrInvalidRole
	}

	msg, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Message, error) {
		convRepo := s.repomanager.Conversations(tx)

		convID, err := s.resolveConversation(ctx, tx, conversationID, ownerID)
		if err != nil {
			return nil, err
		}

		if convID == "" {
			c, err := convRepo.Create(ctx, &models.Conversation{Title: titleFor(role, content), UserID: ownerID})
			if err != nil {
				return nil, fmt.Errorf("create conversation: %w", err)
			}
			convID = c.ID
		} else if err := convRepo.Touch(ctx, convID); err != nil {
			return nil, fmt.Errorf("touch conversation: %w", err)
		}

		m, err := s.repomanager.Messages(tx).Create(ctx, &models.Message{
			Role:           role,
			Content:        content,
			ConversationID: convID,
			UserID:         ownerID,
		})
		if err != nil {
			return nil, fmt.Errorf("create message: %w", err)
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return msg, nil
}

// resolveConversation returns conversationID when it names a thread owned by
// ownerID and "" when a new thread has to be created.
func (s *ConversationService) resolveConversation(ctx context.Context, tx dbx.DBTX, conversationID, ownerID string) (string, error) {
	if conversationID == "" {
		return "", nil
	}
	if _, err := uuid.Parse(conversationID); err != nil {
		return "", nil
	}
	c, err := s.repomanager.Conversations(tx).FindOwned(ctx, conversationID, ownerID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("find conversation: %w", err)
	}
	return c.ID, nil
}

// titleFor derives the title of a conversation started by a message.
func titleFor(role models.Role, content string) string {
	if role != models.RoleUser {
		return common.DefaultConversationTitle
	}
	r := []rune(content)
	if len(r) > TitleLength {
		r = r[:TitleLength]
	}
	return string(r) + "..."
}
