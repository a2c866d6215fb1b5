package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/healthchat/internal/common"
)

// Event names on the wire.
const (
	EventSendMessage    = "sendMessage"
	EventConversationID = "conversationId"
	EventReceiveMessage = "receiveMessage"
	EventError          = "error"
)

// Fixed texts used by every turn.
const (
	SystemPrompt = "You are a helpful healthcare AI companion. Provide accurate, empathetic health info. Always advise consulting a doctor."
	ApologyText  = "I'm sorry, I encountered an error connecting to the AI service. Please try again later."

	UnauthorizedText = "Unauthorized"
	MalformedText    = "Malformed request"
	PersistFailText  = "Failed to save message"
)

// Frame is one JSON text frame in either direction. Data is raw on the way
// in and a JSON string on the way out.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessageRequest is the payload of a sendMessage frame. Text is
// accepted as an alias of Message.
type SendMessageRequest struct {
	Message        string `json:"message"`
	Text           string `json:"text"`
	ConversationID string `json:"conversationId"`
}

// Content returns the message text, preferring Message over Text.
func (r SendMessageRequest) Content() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Text
}

// parseRequest decodes an inbound frame into a turn request. Anything that
// is not a sendMessage with non-empty text is common.ErrMalformedRequest.
func parseRequest(raw []byte) (SendMessageRequest, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return SendMessageRequest{}, fmt.Errorf("%w: %w", common.ErrMalformedRequest, err)
	}
	if f.Event != EventSendMessage {
		return SendMessageRequest{}, fmt.Errorf("%w: unknown event %q", common.ErrMalformedRequest, f.Event)
	}

	var req SendMessageRequest
	if len(f.Data) == 0 {
		return req, fmt.Errorf("%w: missing data", common.ErrMalformedRequest)
	}
	if err := json.Unmarshal(f.Data, &req); err != nil {
		return req, fmt.Errorf("%w: %w", common.ErrMalformedRequest, err)
	}
	if strings.TrimSpace(req.Content()) == "" {
		return req, fmt.Errorf("%w: empty text", common.ErrMalformedRequest)
	}
	return req, nil
}

func encodeEvent(event, data string) ([]byte, error) {
	d, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: d})
}

// BuildPrompt frames the user's question with their uploaded document, if any.
func BuildPrompt(contextText string, hasContext bool, question string) string {
	if !hasContext {
		return question
	}
	return "Here is the data from the uploaded Excel file:\n" + contextText + "\n\nUser Question: " + question
}
