// Package models contains shared data models used across the docsense codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the requesting principal jobs are attributed to. Identity
// federation lives outside this service; a user row only anchors API keys
// and job ownership.
type User struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Username  string    `db:"username"   json:"username"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
