// Package client is the HealthChat API client used by the CLI.
//
// HTTPClient covers the REST surface (register, login, token refresh,
// conversations, history and upload) and keeps the token pair in memory.
// An authenticated call answered with 401 triggers one refresh and retry.
// Connect opens a WebSocket Session for streamed replies.
//
// Failures to reach the server wrap ErrUnavailable; non-2xx answers are
// *APIError, and a 401 matches ErrUnauthorized with errors.Is.
package client
