package hash

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/eleven-am/govod/internal/domain"
)

// Check hashes path and records it in index under assetID. The first asset
// to claim a digest owns it; later callers see Duplicate set.
func Check(ctx context.Context, hasher *Hasher, index domain.DedupIndex, path, assetID string) (domain.DedupResult, error) {
	digest, err := hasher.HashFile(ctx, path)
	if err != nil {
		return domain.DedupResult{}, err
	}
	return Claim(ctx, index, digest, assetID)
}

// Claim records an already computed digest for assetID.
func Claim(ctx context.Context, index domain.DedupIndex, digest, assetID string) (domain.DedupResult, error) {
	result := domain.DedupResult{Digest: digest}
	if index == nil {
		return result, nil
	}

	owner, created, err := index.Remember(ctx, digest, assetID)
	if err != nil {
		return result, domain.NewFailure(domain.KindHash, "dedup index", err)
	}
	if !created && owner != assetID {
		result.Duplicate = true
		result.DuplicateOf = owner
	}
	return result, nil
}

type MemoryIndex struct {
	mu      sync.Mutex
	digests map[string]string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{digests: make(map[string]string)}
}

func (m *MemoryIndex) Lookup(ctx context.Context, digest string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.digests[digest]
	return id, ok, nil
}

func (m *MemoryIndex) Remember(ctx context.Context, digest, assetID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner, ok := m.digests[digest]; ok {
		return owner, false, nil
	}
	m.digests[digest] = assetID
	return assetID, true, nil
}

type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

type RedisIndex struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisIndex(cfg RedisConfig) (*RedisIndex, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		Username:   strings.TrimSpace(cfg.Username),
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 2,
	})
	return NewRedisIndexWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

func NewRedisIndexWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisIndex {
	if prefix == "" {
		prefix = "govod:digest:"
	}
	return &RedisIndex{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisIndex) key(digest string) string {
	return r.prefix + digest
}

func (r *RedisIndex) Lookup(ctx context.Context, digest string) (string, bool, error) {
	id, err := r.client.Get(ctx, r.key(digest)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup digest: %w", err)
	}
	return id, true, nil
}

func (r *RedisIndex) Remember(ctx context.Context, digest, assetID string) (string, bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(digest), assetID, r.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("remember digest: %w", err)
	}
	if ok {
		return assetID, true, nil
	}
	owner, found, err := r.Lookup(ctx, digest)
	if err != nil {
		return "", false, err
	}
	if !found {
		// expired between SETNX and GET
		return r.Remember(ctx, digest, assetID)
	}
	return owner, false, nil
}

func (r *RedisIndex) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisIndex) Close() error {
	return r.client.Close()
}
