package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTResolver accepts HS256 tokens whose subject is the user id.
type JWTResolver struct {
	Secret []byte
	TTL    time.Duration
}

func NewJWTResolver(secret string, ttl time.Duration) *JWTResolver {
	return &JWTResolver{Secret: []byte(secret), TTL: ttl}
}

// Issue signs a token for the user.
func (j *JWTResolver) Issue(userID int64, now time.Time) (string, error) {
	if len(j.Secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(userID, 10),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if j.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(j.TTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
}

func (j *JWTResolver) Resolve(_ context.Context, token string) (int64, bool) {
	userID, err := j.parse(token)
	if err != nil {
		return 0, false
	}
	return userID, true
}

func (j *JWTResolver) parse(tokenString string) (int64, error) {
	if tokenString == "" || len(j.Secret) == 0 {
		return 0, errors.New("empty token")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return j.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, errors.New("subject claim is not a user id")
	}
	return userID, nil
}
