package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
)

// SessionStore keeps bearer sessions in Redis. A user holds at most one session.
type SessionStore struct {
	client redis.UniversalClient
}

func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

// Create issues a new session token for userID, replacing any previous session
// so the 7-day timer restarts at each login.
func (s *SessionStore) Create(ctx context.Context, userID uuid.UUID) (string, error) {
	if err := s.InvalidateUser(ctx, userID); err != nil {
		return "", err
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+token, userID.String(), SessionDuration)
	pipe.Set(ctx, UserSessionKeyPrefix+userID.String(), token, SessionDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Validate returns the user owning token. A missing session is not an error.
func (s *SessionStore) Validate(ctx context.Context, token string) (uuid.UUID, bool, error) {
	if token == "" {
		return uuid.Nil, false, nil
	}

	userIDStr, err := s.client.Get(ctx, SessionKeyPrefix+token).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false, err
	}
	return userID, true, nil
}

// Refresh slides the session of userID by another SessionDuration.
func (s *SessionStore) Refresh(ctx context.Context, token string, userID uuid.UUID) error {
	pipe := s.client.TxPipeline()
	sessionTTL := pipe.Expire(ctx, SessionKeyPrefix+token, SessionDuration)
	pipe.Expire(ctx, UserSessionKeyPrefix+userID.String(), SessionDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if !sessionTTL.Val() {
		return fmt.Errorf("session not found")
	}
	return nil
}

// Invalidate removes a single session.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sessionKey := SessionKeyPrefix + token

	userIDStr, err := s.client.Get(ctx, sessionKey).Result()
	if err == nil && userIDStr != "" {
		s.client.Del(ctx, UserSessionKeyPrefix+userIDStr)
	}
	return s.client.Del(ctx, sessionKey).Err()
}

// InvalidateUser removes whatever session userID currently holds.
func (s *SessionStore) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	userSessionKey := UserSessionKeyPrefix + userID.String()

	token, err := s.client.Get(ctx, userSessionKey).Result()
	if err == nil && token != "" {
		s.client.Del(ctx, SessionKeyPrefix+token)
	} else if err != nil && err != redis.Nil {
		return err
	}
	return s.client.Del(ctx, userSessionKey).Err()
}
