package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/taskpad/internal/domain/task"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const taskColumns = `id, user_id, title, content, is_done, due_date, created_at, updated_at`

func scanTask(row scannable) (task.Task, error) {
	var t task.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Content, &t.IsDone, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// --- Tasks ---

func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC, id`, userFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return orEmpty(tasks), nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, userFromCtx(ctx))

	t, err := scanTask(row)
	if err != nil {
		return nil, wrapErr(err, "get task %s", id)
	}
	return &t, nil
}

// CreateTask inserts t for the user in ctx and fills in its ID, owner and timestamps.
func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	t.UserID = userFromCtx(ctx)
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, content, is_done, due_date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		t.UserID, t.Title, t.Content, t.IsDone, t.DueDate)

	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return wrapErr(err, "create task")
	}
	return nil
}

// UpdateTask writes every mutable field of t. created_at is never touched.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	row := s.pool.QueryRow(ctx,
		`UPDATE tasks SET title = $1, content = $2, is_done = $3, due_date = $4, updated_at = now()
		 WHERE id = $5 AND user_id = $6
		 RETURNING user_id, created_at, updated_at`,
		t.Title, t.Content, t.IsDone, t.DueDate, t.ID, userFromCtx(ctx))

	if err := row.Scan(&t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return wrapErr(err, "update task %s", t.ID)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userFromCtx(ctx))
	return execExpectOne(tag, err, "delete task %s", id)
}
