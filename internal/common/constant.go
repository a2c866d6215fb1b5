package common

// BearerPrefix prefixes the access token in the HTTP Authorization header.
const BearerPrefix = "Bearer "

// DefaultConversationTitle is assigned to conversations that were not
// started from a user message.
const DefaultConversationTitle = "New Chat"
