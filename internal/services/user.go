package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/reelvault/apiserver/internal/store"
	"github.com/reelvault/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor applied to every stored password.
const PasswordCost = 10

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService registers and authenticates users.
type UserService struct {
	repo UserRepository
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, cost: PasswordCost}
}

// NormalizeEmail is the canonical form used for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user and returns its id. Passwords are stored only as
// bcrypt digests.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (uuid.UUID, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if err := ValidateRegistration(in); err != nil {
		return uuid.Nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return uuid.Nil, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, unavailable("lookup user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, store.ErrDuplicate) {
			return uuid.Nil, ErrDuplicateEmail
		}
		return uuid.Nil, unavailable("create user", err)
	}
	return user.ID, nil
}

// Authenticate returns the id of the user owning email and password. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials after the same
// bcrypt comparison.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (uuid.UUID, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return uuid.Nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, unavailable("lookup user", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return uuid.Nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	return user.ID, nil
}

// GetByID loads a user for display or as a request principal. The password
// digest is never handed out.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, unavailable("get user", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cost)
	})
	return s.dummyHash
}
