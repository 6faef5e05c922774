package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrMissingKey  = errors.New("missing api key")
	ErrInvalidKey  = errors.New("invalid api key")
	ErrKeyNotFound = errors.New("api key not found")
)

// Team is the billing/accountability unit behind an API key.
type Team struct {
	ID           string `json:"team_id"`
	Name         string `json:"team_name"`
	RateLimitRPM int    `json:"rate_limit_rpm"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (t *Team) MarshalBinary() ([]byte, error) {
	return json.Marshal(t)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (t *Team) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, t)
}

// APIKeyRecord is the credential store's view of one issued key. The raw
// key is never stored; only its hash and a display prefix.
type APIKeyRecord struct {
	ID           string
	KeyHash      string
	KeyPrefix    string
	TeamID       string
	TeamName     string
	RateLimitRPM int
	Active       bool
	CreatedAt    time.Time
	ExpiresAt    *time.Time
}

type Store interface {
	GetByKeyHash(ctx context.Context, keyHash string) (*APIKeyRecord, error)
	Create(ctx context.Context, record *APIKeyRecord) error
	List(ctx context.Context) ([]*APIKeyRecord, error)
	Revoke(ctx context.Context, keyID string) error
}

func HashKey(key string) string {
	h := sha256.New()
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateKey mints a new opaque key: "llm-" + 32 hex chars.
func GenerateKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return "llm-" + hex.EncodeToString(buf), nil
}

// Authenticator validates presented keys against the credential store,
// with a short read-through Redis cache in front. The cache TTL is
// seconds, not minutes, so revocation latency stays small.
type Authenticator struct {
	store    Store
	cache    *redis.Client
	cacheTTL time.Duration
	log      *slog.Logger
}

func NewAuthenticator(store Store, cache *redis.Client, cacheTTL time.Duration, log *slog.Logger) *Authenticator {
	return &Authenticator{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// Authenticate resolves a presented key to its team. Inactive and expired
// records are indistinguishable from unknown keys to the caller.
func (a *Authenticator) Authenticate(ctx context.Context, presentedKey string) (*Team, error) {
	if presentedKey == "" {
		return nil, ErrMissingKey
	}
	keyHash := HashKey(presentedKey)
	cacheKey := "auth:" + keyHash

	if a.cache != nil {
		var team Team
		err := a.cache.Get(ctx, cacheKey).Scan(&team)
		if err == nil {
			return &team, nil
		}
		if err != redis.Nil {
			a.log.Warn("auth cache error", "error", err)
		}
	}

	record, err := a.store.GetByKeyHash(ctx, keyHash)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("credential lookup: %w", err)
	}
	if !record.Active {
		return nil, ErrInvalidKey
	}
	if record.ExpiresAt != nil && record.ExpiresAt.Before(time.Now().UTC()) {
		return nil, ErrInvalidKey
	}

	team := &Team{
		ID:           record.TeamID,
		Name:         record.TeamName,
		RateLimitRPM: record.RateLimitRPM,
	}
	if a.cache != nil {
		_ = a.cache.Set(ctx, cacheKey, team, a.cacheTTL).Err()
	}
	return team, nil
}
