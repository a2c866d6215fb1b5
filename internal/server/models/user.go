// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account holder. Users are created by the registration flow and
// referenced by conversations and messages.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}
