package service

import (
	"context"
	"errors"
	"fmt"

	"user-registry/internal/domain"
	"user-registry/internal/metrics"
	"user-registry/internal/repository"
)

// UserService describes user registry operations.
type UserService interface {
	CreateUser(ctx context.Context, username, email string) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

// CreateUser stores a new user. Empty fields fail with domain.ErrValidation before the
// repository is touched; a taken email fails with domain.ErrDuplicateEmail.
func (s *userService) CreateUser(ctx context.Context, username, email string) (*domain.User, error) {
	if username == "" || email == "" {
		metrics.UsersCreatedTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, domain.ErrValidation
	}

	user, err := s.users.Create(ctx, username, email)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			metrics.UsersCreatedTotal.WithLabelValues(metrics.ResultDuplicate).Inc()
			return nil, domain.ErrDuplicateEmail
		}
		metrics.UsersCreatedTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("create user: %w", err)
	}

	metrics.UsersCreatedTotal.WithLabelValues(metrics.ResultCreated).Inc()
	return copyUser(user), nil
}

func (s *userService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return copyUser(user), nil
}

func (s *userService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.User, len(users))
	copy(out, users)
	return out, nil
}

func copyUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clone := *user
	return &clone
}
