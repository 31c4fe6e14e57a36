package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-transcription-proxy/internal/models"
)

// Memory is a process-local Store guarded by a mutex.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*StoredTranscription
	policy  Policy
	now     func() time.Time
	newID   IDGenerator
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(gen IDGenerator) MemoryOption {
	return func(m *Memory) {
		m.newID = gen
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(policy Policy, opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*StoredTranscription),
		policy:  policy,
		now:     time.Now,
		newID:   NewID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store inserts result under a new identifier. It never fails.
func (m *Memory) Store(ctx context.Context, result models.TranscriptionResult) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.newID()
	for {
		if _, taken := m.entries[id]; !taken {
			break
		}
		id = m.newID()
	}
	m.entries[id] = &StoredTranscription{Result: result, Timestamp: m.now()}
	return id, nil
}

// StoreAs inserts result under id, replacing any previous entry.
func (m *Memory) StoreAs(ctx context.Context, id string, result models.TranscriptionResult) error {
	if id == "" {
		return errors.New("empty result id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &StoredTranscription{Result: result, Timestamp: m.now()}
	return nil
}

// Get returns the result for id. The first successful call stamps RetrievedAt;
// later calls leave it untouched.
func (m *Memory) Get(ctx context.Context, id string) (models.TranscriptionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[id]
	if !ok || e.Expiry(now, m.policy) != NotExpired {
		return models.TranscriptionResult{}, ErrNotFound
	}
	if e.RetrievedAt == nil {
		e.RetrievedAt = &now
	}
	return e.Result, nil
}

// Has reports whether a live entry exists for id.
func (m *Memory) Has(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	return ok && e.Expiry(m.now(), m.policy) == NotExpired, nil
}

// Sweep deletes every entry that meets either expiry rule.
func (m *Memory) Sweep(ctx context.Context) (SweepStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats SweepStats
	now := m.now()
	for id, e := range m.entries {
		switch e.Expiry(now, m.policy) {
		case ExpiredAge:
			stats.Aged++
			delete(m.entries, id)
		case ExpiredRetrieved:
			stats.Retrieved++
			delete(m.entries, id)
		}
	}
	return stats, nil
}

// Len returns the number of entries, including expired ones not yet swept.
func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

// Entry returns a copy of the raw entry for id, expired or not.
func (m *Memory) Entry(id string) (StoredTranscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return StoredTranscription{}, false
	}
	return *e, true
}
