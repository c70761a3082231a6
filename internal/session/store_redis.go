package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "attester/pkg/domain"
	"attester/pkg/platform/sentinel"
)

const sessionKeyPrefix = "attester:session:"

// RedisStore is the Redis-backed session store for deployments where several
// instances share session state. Expiry rides on the Redis key TTL, so
// expired sessions disappear without a sweeper.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	return s.client.Set(ctx, sessionKey(session.ID), raw, ttl).Err()
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	deleted, err := s.client.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	if deleted == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Execute runs a read-modify-write under an optimistic WATCH transaction so
// concurrent mutations of the same session id retry instead of interleaving.
func (s *RedisStore) Execute(ctx context.Context, sessionID id.SessionID, mutate func(*Session) error) (*Session, error) {
	key := sessionKey(sessionID)
	var result *Session

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
		}

		var session Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}

		if err := mutate(&session); err != nil {
			return err
		}

		updated, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		ttl := time.Until(session.ExpiresAt)
		if ttl <= 0 {
			return sentinel.ErrExpired
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, ttl)
			return nil
		})
		if err != nil {
			return err
		}

		result = &session
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}
