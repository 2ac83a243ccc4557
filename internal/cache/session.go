package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse/gatehouse/internal/session"
)

// sessionPrefix is the Redis key prefix for session records.
const sessionPrefix = "session:"

// SessionStore keeps session records in Redis. Every write and touch
// resets the key's TTL, so a record only expires once its connection has
// gone quiet for the idle window.
type SessionStore struct {
	cache   *Cache
	idleTTL time.Duration
}

var _ session.Store = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore. A zero idleTTL stores records
// without expiry.
func NewSessionStore(c *Cache, idleTTL time.Duration) *SessionStore {
	return &SessionStore{cache: c, idleTTL: idleTTL}
}

// Get loads a session by id. Missing and corrupted entries are both
// reported as session.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.cache.client.Get(ctx, sessionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupted entry - treat as miss
		return nil, session.ErrNotFound
	}
	sess, err := session.FromRecord(rec)
	if err != nil {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

// Save writes the full record and resets its TTL.
func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	data, err := json.Marshal(sess.Record())
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.cache.client.Set(ctx, sessionPrefix+sess.ID(), data, s.idleTTL).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.MarkClean()
	return nil
}

// Touch resets the TTL of an unchanged record.
func (s *SessionStore) Touch(ctx context.Context, id string) error {
	if s.idleTTL <= 0 {
		return nil
	}
	ok, err := s.cache.client.Expire(ctx, sessionPrefix+id, s.idleTTL).Result()
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if !ok {
		return session.ErrNotFound
	}
	return nil
}

// Delete removes a session record.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.cache.client.Del(ctx, sessionPrefix+id).Err()
}
