package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"media-transcription-proxy/internal/models"
)

// RedisConfig holds connection settings for the shared store backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// DialRedis connects to Redis and verifies the connection with a ping.
func DialRedis(ctx context.Context, cfg RedisConfig) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Redis is a Store shared between instances. Expiry is enforced with key TTLs:
// every key is written with a MaxAge TTL and the first retrieval lowers it to
// RetentionAfterRetrieval. Sweep is therefore a no-op.
type Redis struct {
	rdb    goredis.Cmdable
	prefix string
	policy Policy
	now    func() time.Time
	newID  IDGenerator
}

// NewRedis wraps a Redis client as a Store.
func NewRedis(rdb goredis.Cmdable, prefix string, policy Policy) *Redis {
	if prefix == "" {
		prefix = "transcription:"
	}
	return &Redis{
		rdb:    rdb,
		prefix: prefix,
		policy: policy,
		now:    time.Now,
		newID:  NewID,
	}
}

func (r *Redis) key(id string) string {
	return r.prefix + id
}

// Store inserts result under a new identifier.
func (r *Redis) Store(ctx context.Context, result models.TranscriptionResult) (string, error) {
	id := r.newID()
	if err := r.StoreAs(ctx, id, result); err != nil {
		return "", err
	}
	return id, nil
}

// StoreAs inserts result under id with a MaxAge TTL.
func (r *Redis) StoreAs(ctx context.Context, id string, result models.TranscriptionResult) error {
	if id == "" {
		return errors.New("empty result id")
	}
	data, err := json.Marshal(StoredTranscription{Result: result, Timestamp: r.now()})
	if err != nil {
		return fmt.Errorf("marshal stored transcription: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(id), data, r.policy.MaxAge).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the result for id. The first retrieval stamps RetrievedAt and
// shortens the key TTL to the retention window.
func (r *Redis) Get(ctx context.Context, id string) (models.TranscriptionResult, error) {
	key := r.key(id)
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return models.TranscriptionResult{}, ErrNotFound
	}
	if err != nil {
		return models.TranscriptionResult{}, fmt.Errorf("redis get: %w", err)
	}

	var entry StoredTranscription
	if err := json.Unmarshal(data, &entry); err != nil {
		return models.TranscriptionResult{}, fmt.Errorf("unmarshal stored transcription: %w", err)
	}

	now := r.now()
	if entry.Expiry(now, r.policy) != NotExpired {
		return models.TranscriptionResult{}, ErrNotFound
	}
	if entry.RetrievedAt == nil {
		entry.RetrievedAt = &now
		if err := r.markRetrieved(ctx, key, entry); err != nil {
			return models.TranscriptionResult{}, err
		}
	}
	return entry.Result, nil
}

func (r *Redis) markRetrieved(ctx context.Context, key string, entry StoredTranscription) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal stored transcription: %w", err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SetXX(ctx, key, data, goredis.KeepTTL)
		pipe.ExpireLT(ctx, key, r.policy.RetentionAfterRetrieval)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis mark retrieved: %w", err)
	}
	return nil
}

// Has reports whether id exists.
func (r *Redis) Has(ctx context.Context, id string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Sweep is a no-op: Redis expires keys on its own.
func (r *Redis) Sweep(ctx context.Context) (SweepStats, error) {
	return SweepStats{}, nil
}

// Len counts keys under the store prefix.
func (r *Redis) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}
