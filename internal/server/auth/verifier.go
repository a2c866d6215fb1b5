package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/healthchat/internal/common"
	"github.com/dmitrijs2005/healthchat/internal/server/models"
	"github.com/dmitrijs2005/healthchat/internal/server/repositories/users"
)

// UserLookup is the part of the users repository the verifier needs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

var _ UserLookup = (users.Repository)(nil)

// Verifier turns a presented credential into the user it belongs to.
type Verifier struct {
	secret []byte
	users  UserLookup
}

func NewVerifier(secret []byte, lookup UserLookup) *Verifier {
	return &Verifier{secret: secret, users: lookup}
}

// Verify returns the user the token was issued to. Any failure, including a
// token for a user that no longer exists, is reported as
// common.ErrorUnauthorized wrapping the underlying cause.
func (v *Verifier) Verify(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", common.ErrorUnauthorized)
	}

	userID, err := GetUserIDFromToken(token, v.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	u, err := v.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown user", common.ErrorUnauthorized)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	return u, nil
}

// BearerToken extracts the token from an Authorization header value. It
// returns "" when the header does not use the Bearer scheme.
func BearerToken(header string) string {
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(common.BearerPrefix):])
}
