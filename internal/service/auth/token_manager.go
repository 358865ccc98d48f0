package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"webshop/internal/domain"
	tokenrepo "webshop/internal/repository/token"
)

type tokenManager struct {
	repo tokenrepo.Repository
	ttl  time.Duration
}

func newTokenManager(repo tokenrepo.Repository, ttl time.Duration) *tokenManager {
	return &tokenManager{repo: repo, ttl: ttl}
}

// Issue stores a fresh random refresh token, retrying on the rare collision.
func (m *tokenManager) Issue(ctx context.Context, userID string, now time.Time) (string, error) {
	for i := 0; i < 5; i++ {
		token, err := randomToken()
		if err != nil {
			return "", err
		}
		err = m.repo.Create(ctx, tokenrepo.Token{
			Token:     token,
			UserID:    userID,
			ExpiresAt: now.Add(m.ttl),
		})
		if err == nil {
			return token, nil
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		return "", err
	}
	return "", errors.New("token collision")
}

// Validate returns the owner of a live token. Expired tokens are deleted.
func (m *tokenManager) Validate(ctx context.Context, token string, now time.Time) (string, bool) {
	if token == "" {
		return "", false
	}
	meta, err := m.repo.Get(ctx, token)
	if err != nil {
		return "", false
	}
	if now.After(meta.ExpiresAt) {
		_ = m.repo.Delete(ctx, token)
		return "", false
	}
	return meta.UserID, true
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
