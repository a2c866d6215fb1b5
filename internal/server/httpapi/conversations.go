package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type createConversationRequest struct {
	Title string `json:"title"`
}

// ListConversations handles GET /conversations.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	list, err := h.conversations.ListConversations(r.Context(), user.ID)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, list)
}

// CreateConversation handles POST /conversations. The body is optional.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeOptional(r, &req); err != nil {
		h.Fail(w, r, err)
		return
	}
	user := UserFromContext(r.Context())
	c, err := h.conversations.CreateConversation(r.Context(), user.ID, req.Title)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, c)
}

// GetMessages handles GET /conversations/{id}/messages. Conversations the
// caller does not own look empty.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	msgs, err := h.conversations.GetMessages(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, msgs)
}

// History handles the legacy GET /chat: every message of the caller.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	msgs, err := h.conversations.ListAllMessages(r.Context(), user.ID)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, msgs)
}
