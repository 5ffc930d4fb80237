package auth

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const SESSION_ID_COOKIE = "session_id"
const SESSION_TTL = time.Hour * 24 * 7

const sessionKeyPrefix = "session:"

type Session struct {
	UserID    string
	Admin     bool
	CreatedAt time.Time
}

type SessionStore interface {
	CreateSession(ctx context.Context, s Session) (string, error)
	// GetSession returns nil without error for unknown or expired ids.
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// RedisSessionStore keeps gob encoded sessions in redis for SESSION_TTL.
type RedisSessionStore struct {
	RedisClient *redis.Client
}

func NewRedisSessionStore(r *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{RedisClient: r}
}

func (m *RedisSessionStore) CreateSession(ctx context.Context, s Session) (string, error) {
	sessionId := uuid.New().String()

	var sess bytes.Buffer
	if err := gob.NewEncoder(&sess).Encode(s); err != nil {
		return "", err
	}

	status := m.RedisClient.SetEX(ctx, sessionKeyPrefix+sessionId, sess.Bytes(), SESSION_TTL)
	if status.Err() != nil {
		return "", status.Err()
	}

	return sessionId, nil
}

func (m *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	return m.RedisClient.Del(ctx, sessionKeyPrefix+id).Err()
}

func (m *RedisSessionStore) GetSession(ctx context.Context, id string) (*Session, error) {
	b, err := m.RedisClient.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var sess Session
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&sess); err != nil {
		return nil, err
	}

	return &sess, nil
}
