package messages

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/healthchat/internal/dbx"
	"github.com/dmitrijs2005/healthchat/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	query :=
		`INSERT INTO messages (role, content, conversation_id, user_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, string(m.Role), m.Content, m.ConversationID, m.UserID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return m, nil
}

func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.Message, error) {
	query :=
		`SELECT id, role, content, conversation_id, user_id, created_at FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at ASC, seq ASC
		 `
	return r.list(ctx, query, conversationID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Message, error) {
	query :=
		`SELECT id, role, content, conversation_id, user_id, created_at FROM messages
		 WHERE user_id = $1
		 ORDER BY created_at ASC, seq ASC
		 `
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg string) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Message, 0)
	for rows.Next() {
		m := &models.Message{}
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.ConversationID, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.Role = models.Role(role)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
