package repository

import (
	"context"

	"user-registry/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, username, email string) (*domain.User, error)
	CreateMany(ctx context.Context, users []domain.User) ([]domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Recreate(ctx context.Context) error
}
