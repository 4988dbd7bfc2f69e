// Package session maps opaque session tokens to users.
//
// A Resolver issues a token per login, remembers which user it belongs to in
// a Store, and hands the caller a signed JWT wrapping that token. The
// signature rejects forged or altered cookies before the Store is consulted;
// the Store lookup is what makes logout take effect immediately.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/reelvault/apiserver/internal/store"
	"github.com/reelvault/apiserver/types"
)

// Store persists token to user bindings. Get reports store.ErrNotFound for
// unknown or expired tokens. Delete of an unknown token is not an error.
type Store interface {
	Get(ctx context.Context, token string) (uuid.UUID, error)
	Put(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
}

// UserLoader re-hydrates the full user for a resolved session.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
}

// Resolver establishes, resolves and terminates sessions.
type Resolver struct {
	store  Store
	users  UserLoader
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewResolver(s Store, users UserLoader, secret string, ttl time.Duration) *Resolver {
	return &Resolver{
		store:  s,
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL is how long an established session stays valid.
func (r *Resolver) TTL() time.Duration {
	return r.ttl
}

// Establish starts a new session for principalID and returns the value to
// hand to the client.
func (r *Resolver) Establish(ctx context.Context, principalID uuid.UUID) (string, error) {
	token := uuid.NewString()
	now := r.now()
	expiresAt := now.Add(r.ttl)

	if err := r.store.Put(ctx, token, principalID, expiresAt); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	claims := jwt.RegisteredClaims{
		ID:        token,
		Subject:   principalID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		_ = r.store.Delete(ctx, token)
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Resolve returns the user behind raw, or nil when there is none: missing,
// forged, expired, logged out, or pointing at a user that no longer exists.
// An error is returned only when a backing store fails.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*types.User, error) {
	claims, ok := r.parse(raw, true)
	if !ok {
		return nil, nil
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, nil
	}

	userID, err := r.store.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if userID != subject {
		return nil, nil
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}
	user.PasswordHash = ""
	return &user, nil
}

// Terminate ends the session behind raw. Ending an unknown, expired or
// already terminated session is a no-op.
func (r *Resolver) Terminate(ctx context.Context, raw string) error {
	claims, ok := r.parse(raw, false)
	if !ok {
		return nil
	}
	if err := r.store.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Resolver) parse(raw string, validateClaims bool) (*jwt.RegisteredClaims, bool) {
	if raw == "" {
		return nil, false
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	}
	if !validateClaims {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, false
	}
	return claims, true
}
