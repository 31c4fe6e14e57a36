package store

import "github.com/google/uuid"

// IDGenerator produces result identifiers.
type IDGenerator func() string

// NewID returns a random UUIDv4 string.
func NewID() string {
	return uuid.NewString()
}
