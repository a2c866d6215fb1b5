// Package conversations declares the repository contract for chat threads.
package conversations

import (
	"context"

	"github.com/dmitrijs2005/healthchat/internal/server/models"
)

// Repository persists conversations. Lookups are always scoped to an owner;
// a conversation owned by someone else is reported as common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	FindOwned(ctx context.Context, id string, ownerID string) (*models.Conversation, error)
	Touch(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Conversation, error)
}
