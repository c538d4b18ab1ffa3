// Package store is the data-access layer of the tracker. It presents one
// contract over two interchangeable backends: a relational adapter
// (PostgreSQL via database/sql) and a document adapter (MongoDB). The
// services above it never know which backend is in use.
package store

import (
	"context"

	"github.com/tasktrac/apiserver/types"
)

// TaskStore defines persistence operations for tasks. Every operation
// that reads or mutates an existing task is scoped by the filter's
// OwnerID.
type TaskStore interface {
	Create(ctx context.Context, task types.Task) (types.Task, error)
	GetOne(ctx context.Context, filter TaskFilter) (types.Task, error)
	GetMany(ctx context.Context, filter TaskFilter) ([]types.Task, error)
	UpdateOne(ctx context.Context, filter TaskFilter, patch types.TaskPatch) (types.Task, error)
	DeleteOne(ctx context.Context, filter TaskFilter) error
	GetManyPaginated(ctx context.Context, filter TaskFilter, page Page) ([]types.Task, Pagination, error)
}

// UserStore defines persistence operations for users.
type UserStore interface {
	Create(ctx context.Context, user types.User) (types.User, error)
	GetOne(ctx context.Context, filter UserFilter) (types.User, error)
}
