// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/taskpad/internal/domain/task"
	"github.com/Strob0t/taskpad/internal/domain/user"
)

// Store is the port interface for database operations.
// Task methods are scoped to the user carried in ctx.
type Store interface {
	// Tasks
	ListTasks(ctx context.Context) ([]task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	CreateTask(ctx context.Context, t *task.Task) error
	UpdateTask(ctx context.Context, t *task.Task) error
	DeleteTask(ctx context.Context, id string) error

	// Users
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}
