// Package credentials stores password hashes for users whose profiles live
// in the user directory. Records are written wholesale.
package credentials

import (
	"context"
	"time"
)

// Record is the stored password hash of one user.
type Record struct {
	UserID       string    `json:"user_id"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository reads and writes credential records.
type Repository interface {
	// Get returns the record for userID or common.ErrNotFound.
	Get(ctx context.Context, userID string) (*Record, error)

	// Put overwrites the record for r.UserID.
	Put(ctx context.Context, r *Record) error
}
