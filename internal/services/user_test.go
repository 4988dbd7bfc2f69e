package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/reelvault/apiserver/internal/store"
	"github.com/reelvault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func validRegistration() RegisterInput {
	return RegisterInput{
		Name:            "Alice",
		Email:           "Alice@Example.com ",
		Password:        "s3cret!",
		ConfirmPassword: "s3cret!",
	}
}

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryUserRepository()
	svc := NewUserService(repo)

	id, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.NotEqual(t, "s3cret!", stored.PasswordHash)

	got, err := svc.Authenticate(ctx, "  ALICE@example.COM", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestUserService_GetByIDOmitsPasswordHash(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryUserRepository()
	svc := NewUserService(repo)

	id, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	user, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)

	_, err = svc.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserService_Register_HashFailureIsWrapped(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	svc := NewUserService(repo)
	svc.cost = bcrypt.MaxCost + 1

	_, err := svc.Register(context.Background(), validRegistration())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash password")
	var costErr bcrypt.InvalidCostError
	assert.ErrorAs(t, err, &costErr)
	_, err = repo.GetByEmail(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserService_Register_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemoryUserRepository()
	svc := NewUserService(repo)

	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	again := validRegistration()
	again.Email = "alice@example.com"
	_, err = svc.Register(ctx, again)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserService_Register_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{name: "missing name", mutate: func(in *RegisterInput) { in.Name = "  " }, field: "name"},
		{name: "bad email", mutate: func(in *RegisterInput) { in.Email = "not-an-email" }, field: "email"},
		{name: "short password", mutate: func(in *RegisterInput) { in.Password, in.ConfirmPassword = "abc", "abc" }, field: "password"},
		{name: "mismatch", mutate: func(in *RegisterInput) { in.ConfirmPassword = "different" }, field: "confirm_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := store.NewMemoryUserRepository()
			svc := NewUserService(repo)

			in := validRegistration()
			tt.mutate(&in)

			_, err := svc.Register(context.Background(), in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)

			_, err = repo.GetByEmail(context.Background(), NormalizeEmail(in.Email))
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestUserService_Authenticate_DoesNotRevealWhichPartFailed(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(store.NewMemoryUserRepository())

	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, wrongPassword := svc.Authenticate(ctx, "alice@example.com", "wrong-password")
	_, unknownEmail := svc.Authenticate(ctx, "bob@example.com", "s3cret!")
	_, empty := svc.Authenticate(ctx, "", "")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.ErrorIs(t, empty, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

type brokenUsers struct{}

func (brokenUsers) GetByID(context.Context, uuid.UUID) (types.User, error) {
	return types.User{}, errors.New("connection refused")
}

func (brokenUsers) GetByEmail(context.Context, string) (types.User, error) {
	return types.User{}, errors.New("connection refused")
}

func (brokenUsers) Create(context.Context, types.User) (types.User, error) {
	return types.User{}, errors.New("connection refused")
}

func TestUserService_StoreFailure(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(brokenUsers{})

	_, err := svc.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.Authenticate(ctx, "alice@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
