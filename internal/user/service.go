package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type Service interface {
	Register(ctx context.Context, newUser *User, password string) (*User, error)
	Authenticate(ctx context.Context, login, password string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
	UpdateUser(ctx context.Context, id uuid.UUID, update Update) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository) Service {
	return &service{
		repo:     repo,
		validate: validator.New(),
	}
}

// Register validates the email format, hashes the password and persists the
// user. Validation and hashing both happen before any durable write; a
// uniqueness violation is reported by the database, never pre-checked.
func (s *service) Register(ctx context.Context, newUser *User, password string) (*User, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	if err := s.validate.Var(newUser.Email, "required,email"); err != nil {
		return nil, fmt.Errorf("invalid email %q: %w", newUser.Email, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		return nil, fmt.Errorf("internal error hashing password: %w", err)
	}
	newUser.PasswordHash = string(hash)

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}
	newUser.ID = id

	if err := s.repo.Create(ctx, newUser); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		log.Error().Err(err).Msg("Failed to create user in repository")
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	return newUser, nil
}

// Authenticate looks the user up by email or username and verifies the
// password. Unknown login and wrong password both return
// ErrInvalidCredentials so callers cannot probe for existing accounts.
func (s *service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	foundUser, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("Failed to get user by login in repository")
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(foundUser.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return foundUser, nil
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	foundUser, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Msg("Failed to get user by id in repository")
		return nil, fmt.Errorf("failed to get user by id '%s': %w", id, err)
	}

	return foundUser, nil
}

func (s *service) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users in repository")
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

// UpdateUser applies the allow-listed fields to the stored record. A supplied
// password is rehashed; a supplied email is format-validated before the write.
func (s *service) UpdateUser(ctx context.Context, id uuid.UUID, update Update) (*User, error) {
	foundUser, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Msg("Failed to get user for update in repository")
		return nil, fmt.Errorf("failed to get user by id '%s': %w", id, err)
	}

	if update.Email != nil {
		if err := s.validate.Var(*update.Email, "required,email"); err != nil {
			return nil, fmt.Errorf("invalid email %q: %w", *update.Email, err)
		}
		foundUser.Email = *update.Email
	}
	if update.Username != nil {
		foundUser.Username = *update.Username
	}
	if update.FirstName != nil {
		foundUser.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		foundUser.LastName = *update.LastName
	}
	if update.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			return nil, fmt.Errorf("internal error hashing password: %w", err)
		}
		foundUser.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, foundUser); err != nil {
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		log.Error().Err(err).Msg("Failed to update user in repository")
		return nil, fmt.Errorf("failed to update user by id '%s': %w", id, err)
	}

	return foundUser, nil
}

func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Msg("Failed to delete user in repository")
		return fmt.Errorf("failed to delete user by id '%s': %w", id, err)
	}

	return nil
}
