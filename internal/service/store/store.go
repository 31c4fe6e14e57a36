// Package store keeps asynchronous transcription results for a short time so
// clients can poll for them.
//
// Entries expire under two policies, whichever triggers first:
//
//	age:       now - Timestamp   > MaxAge
//	retrieval: now - RetrievedAt > RetentionAfterRetrieval (once retrieved)
//
// Expired entries are invisible to Get and Has immediately and are deleted by
// the periodic Sweep.
package store

import (
	"context"
	"errors"
	"time"

	"media-transcription-proxy/internal/models"
)

// ErrNotFound is returned when an identifier is unknown or expired.
var ErrNotFound = errors.New("transcription not found")

// Store is a transient key/value store of transcription results.
type Store interface {
	// Store inserts result under a newly generated identifier.
	Store(ctx context.Context, result models.TranscriptionResult) (string, error)
	// StoreAs inserts result under a caller-chosen identifier.
	StoreAs(ctx context.Context, id string, result models.TranscriptionResult) error
	// Get returns the result and stamps the first retrieval time.
	Get(ctx context.Context, id string) (models.TranscriptionResult, error)
	// Has reports whether id is present without stamping retrieval.
	Has(ctx context.Context, id string) (bool, error)
	// Sweep deletes expired entries.
	Sweep(ctx context.Context) (SweepStats, error)
	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
}

// Policy holds the two expiry windows.
type Policy struct {
	MaxAge                  time.Duration
	RetentionAfterRetrieval time.Duration
}

// DefaultPolicy returns a one hour age limit and a one minute retention after
// the first retrieval.
func DefaultPolicy() Policy {
	return Policy{
		MaxAge:                  time.Hour,
		RetentionAfterRetrieval: time.Minute,
	}
}

// ExpiryReason names the policy that expired an entry.
type ExpiryReason string

const (
	NotExpired       ExpiryReason = ""
	ExpiredAge       ExpiryReason = "age"
	ExpiredRetrieved ExpiryReason = "retrieved"
)

// SweepStats counts entries removed by a sweep, per policy.
type SweepStats struct {
	Aged      int
	Retrieved int
}

// Total returns the number of entries removed.
func (s SweepStats) Total() int {
	return s.Aged + s.Retrieved
}

// StoredTranscription wraps a result with its lifecycle timestamps.
type StoredTranscription struct {
	Result      models.TranscriptionResult `json:"result"`
	Timestamp   time.Time                  `json:"timestamp"`
	RetrievedAt *time.Time                 `json:"retrievedAt,omitempty"`
}

// Expiry reports whether the entry has expired at now under p.
func (s StoredTranscription) Expiry(now time.Time, p Policy) ExpiryReason {
	if now.Sub(s.Timestamp) > p.MaxAge {
		return ExpiredAge
	}
	if s.RetrievedAt != nil && now.Sub(*s.RetrievedAt) > p.RetentionAfterRetrieval {
		return ExpiredRetrieved
	}
	return NotExpired
}
