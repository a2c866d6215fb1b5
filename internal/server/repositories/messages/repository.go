// Package messages declares the repository contract for chat messages.
// Messages are append-only: the contract has no update or delete.
package messages

import (
	"context"

	"github.com/dmitrijs2005/healthchat/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Message) (*models.Message, error)
	// ListByConversation returns messages oldest first.
	ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error)
	// ListByUser returns all of the user's messages across conversations, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Message, error)
}
