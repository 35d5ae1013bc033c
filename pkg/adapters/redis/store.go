package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/kiln/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.FingerprintStore using a Redis hash, so several
// machines building the same tree can share fingerprints.
type Store struct {
	client *backend.Client
	prefix string
	// project separates unrelated build trees sharing one Redis.
	project string
	ttl     time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for the fingerprint hash.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithProject namespaces the hash by project name.
func WithProject(project string) Option {
	return func(s *Store) {
		s.project = project
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:  client,
		prefix:  "kiln:",
		project: "default",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key() string {
	return s.prefix + s.project + ":fingerprints"
}

// Load reads the whole hash.
func (s *Store) Load(ctx context.Context) (map[string]domain.Fingerprint, error) {
	fields, err := s.client.HGetAll(ctx, s.key()).Result()
	if err != nil {
		if err == backend.Nil {
			return map[string]domain.Fingerprint{}, nil
		}
		return nil, fmt.Errorf("failed to read fingerprints from redis: %w", err)
	}

	out := make(map[string]domain.Fingerprint, len(fields))
	for id, raw := range fields {
		var fp domain.Fingerprint
		if err := json.Unmarshal([]byte(raw), &fp); err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", domain.ErrStoreCorrupted, id, err)
		}
		out[id] = fp
	}
	return out, nil
}

// Save replaces the hash in one MULTI/EXEC transaction.
func (s *Store) Save(ctx context.Context, records map[string]domain.Fingerprint) error {
	values := make(map[string]any, len(records))
	for id, fp := range records {
		data, err := json.Marshal(fp)
		if err != nil {
			return fmt.Errorf("failed to marshal fingerprint %s: %w", id, err)
		}
		values[id] = data
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key())
	if len(values) > 0 {
		pipe.HSet(ctx, s.key(), values)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key(), s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save fingerprints to redis: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
