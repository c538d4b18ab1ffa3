package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tasktrac/apiserver/types"
)

const taskColumns = "id, title, description, start_date, end_date, completed, user_id, created_at, updated_at"

// taskSortColumns whitelists caller-selectable sort fields. Keys are the
// JSON field names used on the wire.
var taskSortColumns = map[string]string{
	"startDate": "start_date",
	"endDate":   "end_date",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
}

// PGTaskStore is the relational task adapter.
type PGTaskStore struct {
	db *sql.DB
}

func NewPGTaskStore(db *sql.DB) *PGTaskStore {
	return &PGTaskStore{db: db}
}

func (s *PGTaskStore) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (id, title, description, start_date, end_date, completed, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	result, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		task.Description,
		task.StartDate,
		task.EndDate,
		task.Completed,
		task.UserID,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return types.Task{}, fmt.Errorf("create task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Task{}, fmt.Errorf("create task: %w", err)
	}
	if affected == 0 {
		return types.Task{}, ErrNotCreated
	}
	return task, nil
}

func (s *PGTaskStore) GetOne(ctx context.Context, filter TaskFilter) (types.Task, error) {
	where, args := taskWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE %s LIMIT 1", taskColumns, where)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *PGTaskStore) GetMany(ctx context.Context, filter TaskFilter) ([]types.Task, error) {
	where, args := taskWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC", taskColumns, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, ErrNotFound
	}
	return tasks, nil
}

func (s *PGTaskStore) UpdateOne(ctx context.Context, filter TaskFilter, patch types.TaskPatch) (types.Task, error) {
	if patch.IsZero() {
		return types.Task{}, ErrNotUpdated
	}

	set := make([]string, 0, 5)
	args := make([]any, 0, 7)
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Completed != nil {
		add("completed", *patch.Completed)
	}
	if patch.EndDate != nil {
		add("end_date", *patch.EndDate)
	}
	add("updated_at", time.Now())

	where, whereArgs := taskWhereFrom(filter, len(args))
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE %s", strings.Join(set, ", "), where)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return types.Task{}, fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Task{}, fmt.Errorf("update task: %w", err)
	}
	if affected == 0 {
		return types.Task{}, ErrNotUpdated
	}

	return s.GetOne(ctx, filter)
}

func (s *PGTaskStore) DeleteOne(ctx context.Context, filter TaskFilter) error {
	where, args := taskWhere(filter)
	query := fmt.Sprintf("DELETE FROM tasks WHERE %s", where)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected == 0 {
		return ErrNotDeleted
	}
	return nil
}

func (s *PGTaskStore) GetManyPaginated(ctx context.Context, filter TaskFilter, page Page) ([]types.Task, Pagination, error) {
	page = page.Normalize()
	where, args := taskWhere(filter)

	countQuery := fmt.Sprintf("SELECT COUNT(1) FROM tasks WHERE %s", where)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, Pagination{}, fmt.Errorf("count tasks: %w", err)
	}

	orderBy := "created_at"
	if column, ok := taskSortColumns[page.SortBy]; ok {
		orderBy = column
	}

	listQuery := fmt.Sprintf(
		"SELECT %s FROM tasks WHERE %s ORDER BY %s %s OFFSET $%d LIMIT $%d",
		taskColumns, where, orderBy, page.Order, len(args)+1, len(args)+2,
	)
	rows, err := s.db.QueryContext(ctx, listQuery, append(args, page.Offset(), page.PageSize)...)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, NewPagination(page, total), nil
}

// taskWhere builds the WHERE clause for a filter with placeholders
// starting at $1. The owner condition is always first.
func taskWhere(filter TaskFilter) (string, []any) {
	return taskWhereFrom(filter, 0)
}

// taskWhereFrom builds the WHERE clause with placeholders starting after
// the given offset, for queries that bind other arguments first.
func taskWhereFrom(filter TaskFilter, offset int) (string, []any) {
	conds := make([]string, 0, 5)
	args := make([]any, 0, 5)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, offset+len(args)))
	}

	add("user_id = $%d", filter.OwnerID)
	if filter.ID != "" {
		add("id = $%d", filter.ID)
	}
	if filter.Completed != nil {
		add("completed = $%d", *filter.Completed)
	}
	if filter.StartFrom != nil {
		add("start_date >= $%d", *filter.StartFrom)
	}
	if filter.EndTo != nil {
		add("end_date <= $%d", *filter.EndTo)
	}
	return strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (types.Task, error) {
	var task types.Task
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.StartDate,
		&task.EndDate,
		&task.Completed,
		&task.UserID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	return task, err
}

func collectTasks(rows *sql.Rows) ([]types.Task, error) {
	tasks := make([]types.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
