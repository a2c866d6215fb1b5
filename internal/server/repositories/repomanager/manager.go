package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/healthchat/internal/dbx"
	"github.com/dmitrijs2005/healthchat/internal/server/repositories/conversations"
	"github.com/dmitrijs2005/healthchat/internal/server/repositories/messages"
	"github.com/dmitrijs2005/healthchat/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/healthchat/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so services can compose several repositories in one tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Conversations(db dbx.DBTX) conversations.Repository
	Messages(db dbx.DBTX) messages.Repository
}
