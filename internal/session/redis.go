package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in Redis with a matching key TTL.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore returns a store on client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

type redisSession struct {
	UserID    int64 `json:"user_id"`
	ExpiresAt int64 `json:"expires_at"`
}

func redisKey(token string) string {
	return redisKeyPrefix + token
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, sess Session, ttl time.Duration) error {
	payload, err := json.Marshal(redisSession{UserID: sess.UserID, ExpiresAt: sess.ExpiresAt.Unix()})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(sess.Token), payload, ttl).Err()
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, token string) (Session, error) {
	raw, err := s.client.Get(ctx, redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	var rs redisSession
	if err := json.Unmarshal(raw, &rs); err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: rs.UserID, ExpiresAt: time.Unix(rs.ExpiresAt, 0).UTC()}, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, redisKey(token)).Err()
}
