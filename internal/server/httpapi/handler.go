// Package httpapi is the REST surface of the server: auth endpoints, the
// conversation queries, document upload, health and metrics, plus the
// WebSocket route.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/healthchat/internal/common"
	"github.com/dmitrijs2005/healthchat/internal/logging"
	"github.com/dmitrijs2005/healthchat/internal/server/models"
	"github.com/dmitrijs2005/healthchat/internal/server/services"
)

// UserService is implemented by services.UserService.
type UserService interface {
	Register(ctx context.Context, email, name, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, *models.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

// ConversationService is implemented by services.ConversationService.
type ConversationService interface {
	CreateConversation(ctx context.Context, ownerID, title string) (*models.Conversation, error)
	ListConversations(ctx context.Context, ownerID string) ([]*models.Conversation, error)
	GetMessages(ctx context.Context, conversationID, requesterID string) ([]*models.Message, error)
	ListAllMessages(ctx context.Context, ownerID string) ([]*models.Message, error)
}

// UploadService is implemented by services.UploadService.
type UploadService interface {
	Upload(ctx context.Context, userID, fileName, contentType string, data []byte) (*services.UploadResult, error)
}

// Pinger is a dependency the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	users         UserService
	conversations ConversationService
	uploads       UploadService
	checks        map[string]Pinger
	maxUpload     int64
	logger        logging.Logger
}

func NewHandler(users UserService, conversations ConversationService, uploads UploadService, checks map[string]Pinger, maxUpload int64, logger logging.Logger) *Handler {
	return &Handler{
		users:         users,
		conversations: conversations,
		uploads:       uploads,
		checks:        checks,
		maxUpload:     maxUpload,
		logger:        logger.With("module", "http"),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail maps a service error to a status code. Unexpected errors are logged
// and reported with a generic message.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrRefreshTokenExpired),
		errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		h.Error(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrorValidation), errors.Is(err, common.ErrMalformedRequest):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		h.Error(w, http.StatusConflict, "already exists")
	case errors.Is(err, common.ErrUnsupportedFile):
		h.Error(w, http.StatusUnprocessableEntity, "unsupported file type")
	default:
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return common.ErrMalformedRequest
	}
	return nil
}

// decodeOptional is decode for endpoints where an empty body is fine.
func decodeOptional(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return common.ErrMalformedRequest
	}
	return nil
}
