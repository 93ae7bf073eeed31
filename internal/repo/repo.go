package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planner/internal/activity"
	"planner/internal/goals"
	"planner/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repo struct {
	Pool *pgxpool.Pool
	db   querier
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool, db: pool}
}

// WithTx runs fn inside a transaction. Inside an existing transaction it
// opens a savepoint.
func (r *Repo) WithTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repo{Pool: r.Pool, db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Users

func (r *Repo) CreateUser(ctx context.Context, email, passwordHash, fullName string) (models.User, error) {
	u := models.User{Email: email, PasswordHash: passwordHash, FullName: fullName}
	err := r.db.QueryRow(ctx, `INSERT INTO users (email, password_hash, full_name) VALUES ($1, $2, $3)
		RETURNING id, is_active, created_at`, email, passwordHash, fullName).Scan(&u.ID, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

const userColumns = `id, email, password_hash, full_name, is_active, created_at`

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (r *Repo) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

// Goals

const goalSelect = `SELECT g.id, g.owner_id, g.title, g.description, g.target_date, g.completed, g.is_pinned, g.created_at, g.updated_at,
		COUNT(t.id), COUNT(t.id) FILTER (WHERE t.completed)
	FROM goals g LEFT JOIN tasks t ON t.goal_id = g.id`

func scanGoal(row rowScanner) (models.Goal, error) {
	var g models.Goal
	var total, done int
	err := row.Scan(&g.ID, &g.OwnerID, &g.Title, &g.Description, &g.TargetDate, &g.Completed, &g.IsPinned, &g.CreatedAt, &g.UpdatedAt, &total, &done)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Goal{}, ErrNotFound
	}
	if err != nil {
		return models.Goal{}, err
	}
	g.Progress = goals.Progress(total, done)
	return g, nil
}

func (r *Repo) CreateGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO goals (owner_id, title, description, target_date, completed, is_pinned)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`,
		g.OwnerID, g.Title, g.Description, g.TargetDate, g.Completed, g.IsPinned).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return models.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (r *Repo) GetGoal(ctx context.Context, id, ownerID string) (models.Goal, error) {
	return scanGoal(r.db.QueryRow(ctx, goalSelect+` WHERE g.id=$1 AND g.owner_id=$2 GROUP BY g.id`, id, ownerID))
}

func (r *Repo) ListGoals(ctx context.Context, ownerID string, page Page) ([]models.Goal, error) {
	page = page.Normalize()
	rows, err := r.db.Query(ctx, goalSelect+` WHERE g.owner_id=$1 GROUP BY g.id
		ORDER BY g.is_pinned DESC, g.created_at DESC OFFSET $2 LIMIT $3`, ownerID, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()
	res := []models.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (r *Repo) UpdateGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE goals SET title=$1, description=$2, target_date=$3, completed=$4, is_pinned=$5, updated_at=now()
		WHERE id=$6 AND owner_id=$7`, g.Title, g.Description, g.TargetDate, g.Completed, g.IsPinned, g.ID, g.OwnerID)
	if err != nil {
		return models.Goal{}, fmt.Errorf("update goal: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return models.Goal{}, ErrNotFound
	}
	return r.GetGoal(ctx, g.ID, g.OwnerID)
}

// LockGoal holds the goal row until the surrounding transaction ends, so
// concurrent completions of its tasks evaluate the goal one at a time.
func (r *Repo) LockGoal(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRow(ctx, `SELECT id FROM goals WHERE id=$1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock goal: %w", err)
	}
	return nil
}

// MarkGoalCompleted only ever moves completed from false to true.
func (r *Repo) MarkGoalCompleted(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE goals SET completed=true, updated_at=now() WHERE id=$1 AND completed=false`, id)
	if err != nil {
		return fmt.Errorf("complete goal: %w", err)
	}
	return nil
}

func (r *Repo) DeleteGoal(ctx context.Context, id, ownerID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM goals WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Tasks

const taskColumns = `id, owner_id, goal_id, title, description, completed, created_at, updated_at`

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.OwnerID, &t.GoalID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	return t, err
}

func collectTasks(rows pgx.Rows) ([]models.Task, error) {
	defer rows.Close()
	res := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r *Repo) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO tasks (owner_id, goal_id, title, description, completed)
		VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
		t.OwnerID, t.GoalID, t.Title, t.Description, t.Completed).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (r *Repo) GetTask(ctx context.Context, id, ownerID string) (models.Task, error) {
	return scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 AND owner_id=$2`, id, ownerID))
}

// GetTaskForUpdate locks the task row until the surrounding transaction
// ends. Ownership is left to the caller.
func (r *Repo) GetTaskForUpdate(ctx context.Context, id string) (models.Task, error) {
	return scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1 FOR UPDATE`, id))
}

func (r *Repo) ListTasks(ctx context.Context, ownerID string, goalID *string, page Page) ([]models.Task, error) {
	page = page.Normalize()
	rows, err := r.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE owner_id=$1 AND ($2::uuid IS NULL OR goal_id=$2::uuid)
		ORDER BY created_at DESC OFFSET $3 LIMIT $4`, ownerID, goalID, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

func (r *Repo) ListGoalTasks(ctx context.Context, goalID string) ([]models.Task, error) {
	rows, err := r.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE goal_id=$1`, goalID)
	if err != nil {
		return nil, fmt.Errorf("list goal tasks: %w", err)
	}
	return collectTasks(rows)
}

func (r *Repo) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	err := r.db.QueryRow(ctx, `UPDATE tasks SET goal_id=$1, title=$2, description=$3, completed=$4, updated_at=now()
		WHERE id=$5 AND owner_id=$6 RETURNING `+taskColumns,
		t.GoalID, t.Title, t.Description, t.Completed, t.ID, t.OwnerID).Scan(
		&t.ID, &t.OwnerID, &t.GoalID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (r *Repo) DeleteTask(ctx context.Context, id, ownerID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Activity

// IncrementActivity is a single-statement upsert on the (user_id, day)
// unique key, so concurrent calls for the same key serialise in the database.
func (r *Repo) IncrementActivity(ctx context.Context, userID string, day time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `INSERT INTO activity_records (user_id, day, count) VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day) DO UPDATE SET count = activity_records.count + 1
		RETURNING count`, userID, activity.Day(day)).Scan(&count)
	if err != nil {
		if isRetryable(err) {
			return 0, fmt.Errorf("increment activity: %w: %w", activity.ErrRetryable, err)
		}
		return 0, fmt.Errorf("increment activity: %w", err)
	}
	return count, nil
}

func scanActivity(rows pgx.Rows) ([]models.ActivityRecord, error) {
	defer rows.Close()
	res := []models.ActivityRecord{}
	for rows.Next() {
		var rec models.ActivityRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Date, &rec.Count, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (r *Repo) ListActivity(ctx context.Context, userID string, start, end time.Time) ([]models.ActivityRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id, day, count, created_at FROM activity_records
		WHERE user_id=$1 AND day >= $2 AND day <= $3 ORDER BY day`, userID, activity.Day(start), activity.Day(end))
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return scanActivity(rows)
}

func (r *Repo) ListAllActivity(ctx context.Context, userID string) ([]models.ActivityRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id, day, count, created_at FROM activity_records
		WHERE user_id=$1 ORDER BY day`, userID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return scanActivity(rows)
}

// pg helpers

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// isRetryable is true only when the statement is known not to have taken
// effect: it never reached the server, or the server aborted it.
func isRetryable(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}
