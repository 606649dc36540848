// Package maintenance holds operator-only operations on the user table. None of it is
// reachable from the HTTP surface.
package maintenance

import (
	"context"
	"fmt"

	"user-registry/internal/domain"
	"user-registry/internal/repository"
)

// DemoUsers are the fixed accounts inserted by Seed.
var DemoUsers = []domain.User{
	{Username: "barbie", Email: "barbie@barbieland.com"},
	{Username: "ken", Email: "ken@ilovehorses.com"},
}

// Recreate drops every user and rebuilds an empty table.
func Recreate(ctx context.Context, users repository.UserRepository) error {
	if err := users.Recreate(ctx); err != nil {
		return fmt.Errorf("recreate users: %w", err)
	}
	return nil
}

// Seed inserts DemoUsers in a single transaction and returns the stored records. If any
// demo email is already taken nothing is inserted.
func Seed(ctx context.Context, users repository.UserRepository) ([]domain.User, error) {
	seeded, err := users.CreateMany(ctx, DemoUsers)
	if err != nil {
		return nil, fmt.Errorf("seed demo users: %w", err)
	}
	return seeded, nil
}
