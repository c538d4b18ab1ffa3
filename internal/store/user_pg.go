package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tasktrac/apiserver/types"
)

const userColumns = "id, name, email, mobile, password_hash, is_active, created_at, updated_at"

// pqUniqueViolation is the PostgreSQL error code for unique constraint
// violations, used to map duplicate email/mobile inserts to ErrNotCreated.
const pqUniqueViolation = "23505"

// PGUserStore is the relational user adapter.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

func (s *PGUserStore) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, name, email, mobile, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.Mobile,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return types.User{}, ErrNotCreated
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *PGUserStore) GetOne(ctx context.Context, filter UserFilter) (types.User, error) {
	if filter.IsZero() {
		return types.User{}, ErrNotFound
	}

	conds := make([]string, 0, 3)
	args := make([]any, 0, 3)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ID != "" {
		add("id = $%d", filter.ID)
	}
	if filter.Mobile != "" {
		add("mobile = $%d", filter.Mobile)
	}
	if filter.Email != "" {
		add("email = $%d", filter.Email)
	}

	query := fmt.Sprintf("SELECT %s FROM users WHERE %s LIMIT 1", userColumns, strings.Join(conds, " AND "))
	var user types.User
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Mobile,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
