package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reelvault/apiserver/internal/store"
	"github.com/reelvault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	resolver *Resolver
	store    *MemoryStore
	users    *store.MemoryUserRepository
	user     types.User
	clock    *clock
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	users := store.NewMemoryUserRepository()
	user, err := users.Create(context.Background(), types.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	c := &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	mem := NewMemoryStore()
	mem.now = c.Now

	r := NewResolver(mem, users, "test-secret", time.Hour)
	r.now = c.Now

	return fixture{resolver: r, store: mem, users: users, user: user, clock: c}
}

func TestResolver_EstablishResolveTerminate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.resolver.Establish(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	got, err := f.resolver.Resolve(ctx, raw)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, f.user.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Empty(t, got.PasswordHash)

	require.NoError(t, f.resolver.Terminate(ctx, raw))

	got, err = f.resolver.Resolve(ctx, raw)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolver_TerminateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.resolver.Establish(ctx, f.user.ID)
	require.NoError(t, err)

	require.NoError(t, f.resolver.Terminate(ctx, raw))
	require.NoError(t, f.resolver.Terminate(ctx, raw))
	require.NoError(t, f.resolver.Terminate(ctx, ""))
	require.NoError(t, f.resolver.Terminate(ctx, "garbage"))
	assert.Zero(t, f.store.Len())
}

func TestResolver_SessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.resolver.Establish(ctx, f.user.ID)
	require.NoError(t, err)
	second, err := f.resolver.Establish(ctx, f.user.ID)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.NoError(t, f.resolver.Terminate(ctx, first))

	got, err := f.resolver.Resolve(ctx, second)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestResolver_RejectsUnusableTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.resolver.Establish(ctx, f.user.ID)
	require.NoError(t, err)

	other := NewResolver(f.store, f.users, "another-secret", time.Hour)
	forged, err := other.Establish(ctx, f.user.ID)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	parts[2] = strings.Repeat("A", len(parts[2]))
	tampered := strings.Join(parts, ".")

	tests := map[string]string{
		"empty":      "",
		"not a jwt":  "abc.def.ghi",
		"tampered":   tampered,
		"wrong key":  forged,
		"plain uuid": uuid.NewString(),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := f.resolver.Resolve(ctx, token)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestResolver_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.resolver.Establish(ctx, f.user.ID)
	require.NoError(t, err)

	f.clock.Advance(59 * time.Minute)
	got, err := f.resolver.Resolve(ctx, raw)
	require.NoError(t, err)
	assert.NotNil(t, got)

	f.clock.Advance(2 * time.Minute)
	got, err = f.resolver.Resolve(ctx, raw)
	require.NoError(t, err)
	assert.Nil(t, got)

	removed, err := f.store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Expired tokens can still be terminated without error.
	require.NoError(t, f.resolver.Terminate(ctx, raw))
}

func TestResolver_DanglingUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.resolver.Establish(ctx, uuid.New())
	require.NoError(t, err)

	got, err := f.resolver.Resolve(ctx, raw)
	require.NoError(t, err)
	assert.Nil(t, got)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (uuid.UUID, error) {
	return uuid.Nil, errors.New("connection refused")
}

func (failingStore) Put(context.Context, string, uuid.UUID, time.Time) error {
	return errors.New("connection refused")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func TestResolver_StoreFailureIsReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raw, err := f.resolver.Establish(ctx, f.user.ID)
	require.NoError(t, err)

	broken := NewResolver(failingStore{}, f.users, "test-secret", time.Hour)
	broken.now = f.clock.Now

	got, err := broken.Resolve(ctx, raw)
	assert.Error(t, err)
	assert.Nil(t, got)

	_, err = broken.Establish(ctx, f.user.ID)
	assert.Error(t, err)
}
