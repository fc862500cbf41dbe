// Package auth resolves session tokens to users and hashes passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-booking/internal/logger"
	"ms-booking/internal/utils"
)

// Resolver maps a session token to a user id. It fails soft: any error
// resolves to no user.
type Resolver interface {
	Resolve(ctx context.Context, token string) (int64, bool)
}

const sessionKeyPrefix = "session:"

// RedisSessions stores opaque session tokens in Redis with a sliding TTL.
type RedisSessions struct {
	Client *redis.Client
	TTL    time.Duration
	Log    *logger.Logger
}

func NewRedisSessions(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisSessions {
	if log == nil {
		log = logger.Discard()
	}
	return &RedisSessions{Client: client, TTL: ttl, Log: log}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

// Create issues a new token for the user.
func (s *RedisSessions) Create(ctx context.Context, userID int64) (string, error) {
	if s.Client == nil {
		return "", errors.New("redis client not initialized")
	}
	token, err := utils.GenerateToken(32)
	if err != nil {
		return "", err
	}
	if err := s.Client.Set(ctx, sessionKey(token), userID, s.TTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return token, nil
}

func (s *RedisSessions) Resolve(ctx context.Context, token string) (int64, bool) {
	if s.Client == nil || token == "" {
		return 0, false
	}
	val, err := s.Client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		s.Log.Error("AUTH", fmt.Sprintf("Session lookup failed: %v", err))
		return 0, false
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil || userID <= 0 {
		s.Log.Warn("AUTH", "Session holds a malformed user id")
		return 0, false
	}
	if s.TTL > 0 {
		s.Client.Expire(ctx, sessionKey(token), s.TTL)
	}
	return userID, true
}

func (s *RedisSessions) Revoke(ctx context.Context, token string) error {
	if s.Client == nil {
		return errors.New("redis client not initialized")
	}
	return s.Client.Del(ctx, sessionKey(token)).Err()
}
