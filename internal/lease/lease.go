package lease

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Manager hands out per-connection sync leases so two workers never sync the
// same connection at once. Backed by redis SETNX when a client is configured;
// callers fall back to the database lease columns otherwise.
type Manager struct {
	client    *redis.Client
	keyPrefix string
	owner     string
	ttl       time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 4 * time.Minute
	}
	return &Manager{
		client:    client,
		keyPrefix: "tradelocker:sync:lease:",
		owner:     uuid.NewString(),
		ttl:       ttl,
	}
}

// Owner identifies this worker instance in lease records.
func (m *Manager) Owner() string {
	if m == nil {
		return ""
	}
	return m.owner
}

func (m *Manager) TTL() time.Duration {
	if m == nil {
		return 0
	}
	return m.ttl
}

// Available reports whether a redis backend is wired.
func (m *Manager) Available() bool {
	return m != nil && m.client != nil
}

// Acquire claims the lease for connectionID. False means another worker holds
// it; that is not an error.
func (m *Manager) Acquire(ctx context.Context, connectionID uint64) (bool, error) {
	if !m.Available() {
		return false, fmt.Errorf("lease: redis not configured")
	}
	key := m.keyPrefix + strconv.FormatUint(connectionID, 10)
	ok, err := m.client.SetNX(ctx, key, m.owner, m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lease acquire failed: %w", err)
	}
	return ok, nil
}

// Release frees the lease if this worker still holds it. A lease taken over
// after expiry by someone else is left alone.
func (m *Manager) Release(ctx context.Context, connectionID uint64) error {
	if !m.Available() {
		return nil
	}
	key := m.keyPrefix + strconv.FormatUint(connectionID, 10)
	const script = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`
	return m.client.Eval(ctx, script, []string{key}, m.owner).Err()
}
