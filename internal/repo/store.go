package repo

import (
	"context"

	"planner/internal/activity"
	"planner/internal/models"
)

// Store is the persistence surface of the service layer. *Repo implements
// it; WithTx hands fn a Store bound to one transaction.
type Store interface {
	activity.Store

	CreateUser(ctx context.Context, email, passwordHash, fullName string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)

	CreateGoal(ctx context.Context, g models.Goal) (models.Goal, error)
	GetGoal(ctx context.Context, id, ownerID string) (models.Goal, error)
	ListGoals(ctx context.Context, ownerID string, page Page) ([]models.Goal, error)
	UpdateGoal(ctx context.Context, g models.Goal) (models.Goal, error)
	LockGoal(ctx context.Context, id string) error
	MarkGoalCompleted(ctx context.Context, id string) error
	DeleteGoal(ctx context.Context, id, ownerID string) error

	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	GetTask(ctx context.Context, id, ownerID string) (models.Task, error)
	GetTaskForUpdate(ctx context.Context, id string) (models.Task, error)
	ListTasks(ctx context.Context, ownerID string, goalID *string, page Page) ([]models.Task, error)
	ListGoalTasks(ctx context.Context, goalID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, t models.Task) (models.Task, error)
	DeleteTask(ctx context.Context, id, ownerID string) error

	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// Page is an offset window over a list query.
type Page struct {
	Skip  int
	Limit int
}

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}
