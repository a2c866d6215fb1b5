package models

import "time"

// Conversation groups the messages of one chat thread. UserID is fixed at
// creation; UpdatedAt moves forward every time a message is appended.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
