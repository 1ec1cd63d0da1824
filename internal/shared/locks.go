package shared

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UploadLockKey builds redis keys for per-scope ledger upload critical sections.
func UploadLockKey(entityCode, month string, year int) string {
	return fmt.Sprintf("upload:%s:%s:%d:lock", strings.ToLower(strings.TrimSpace(entityCode)), strings.ToLower(strings.TrimSpace(month)), year)
}

// releaseScript deletes the lock only when the caller still owns it.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// ScopeLock is a redis SET NX advisory lock with an owner token.
type ScopeLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewScopeLock constructs a ScopeLock.
func NewScopeLock(client *redis.Client, ttl time.Duration) *ScopeLock {
	return &ScopeLock{client: client, ttl: ttl}
}

// Acquire takes the lock and returns the owner token, or ErrLockHeld.
func (l *ScopeLock) Acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// Release frees the lock when token still owns it. Expired locks release
// silently.
func (l *ScopeLock) Release(ctx context.Context, key, token string) error {
	return l.client.Eval(ctx, releaseScript, []string{key}, token).Err()
}
