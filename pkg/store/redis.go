package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sessionpod/orchestrator/pkg/session"
)

// RedisStore implements Store on top of a Redis hash per session, matching
// the key layout the gateway/worker/reaper source uses
// (session:<user_id> -> {status, addr, last_active}).
type RedisStore struct {
	client *redis.Client
}

// Config holds the connection parameters for the Redis-backed store.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New dials Redis and returns a Store. It does not block on connectivity;
// callers that want a fail-fast startup should call Ping themselves.
func New(cfg Config) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Ping verifies connectivity, wrapping any failure in ErrUnavailable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) GetSession(ctx context.Context, userID string) (session.Record, bool, error) {
	fields, err := s.client.HGetAll(ctx, session.Key(userID)).Result()
	if err != nil {
		return session.Record{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	rec, ok := session.DecodeRecord(fields)
	return rec, ok, nil
}

func (s *RedisStore) PutStatus(ctx context.Context, userID string, status session.Status) error {
	err := s.client.HSet(ctx, session.Key(userID), session.FieldStatus, string(status)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) PutReady(ctx context.Context, userID string, addr string, now time.Time) error {
	err := s.client.HSet(ctx, session.Key(userID),
		session.FieldStatus, string(session.StatusReady),
		session.FieldAddr, addr,
		session.FieldLastActive, session.EncodeLastActive(now),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Touch(ctx context.Context, userID string, now time.Time) error {
	err := s.client.HSet(ctx, session.Key(userID), session.FieldLastActive, session.EncodeLastActive(now)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, session.Key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ScanSessions uses SCAN with MATCH "session:*" rather than KEYS, so an
// unbounded key space never blocks the Redis event loop the way the
// reference implementation's redis_conn.keys(...) does.
func (s *RedisStore) ScanSessions(ctx context.Context, fn func(userID string, rec session.Record) error) error {
	var (
		cursor  uint64
		lastErr error
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, session.KeyPrefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for _, key := range keys {
			userID := strings.TrimPrefix(key, session.KeyPrefix)
			fields, err := s.client.HGetAll(ctx, key).Result()
			if err != nil {
				lastErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
				continue
			}
			rec, ok := session.DecodeRecord(fields)
			if !ok {
				continue
			}
			if err := fn(userID, rec); err != nil {
				lastErr = err
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return lastErr
}
