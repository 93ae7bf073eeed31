package service

import (
	"context"
	"strings"
	"time"

	"planner/internal/activity"
	"planner/internal/goals"
	"planner/internal/models"
	"planner/internal/repo"
)

// ledgerTimeout bounds the activity update that runs after the task commit.
const ledgerTimeout = 5 * time.Second

type TaskInput struct {
	Title       string
	Description string
	GoalID      *string
}

// TaskPatch holds one optional slot per editable task field. A GoalID
// pointing at "" detaches the task from its goal.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
	GoalID      *string
}

func (p TaskPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil && p.GoalID == nil
}

func (p TaskPatch) apply(t *models.Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.GoalID != nil {
		if *p.GoalID == "" {
			t.GoalID = nil
		} else {
			id := *p.GoalID
			t.GoalID = &id
		}
	}
}

func (s *Service) CreateTask(ctx context.Context, userID string, in TaskInput) (models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, ErrInvalidArgs
	}
	if in.GoalID != nil && *in.GoalID == "" {
		in.GoalID = nil
	}
	if in.GoalID != nil {
		if _, err := s.Store.GetGoal(ctx, *in.GoalID, userID); err != nil {
			return models.Task{}, err
		}
	}
	return s.Store.CreateTask(ctx, models.Task{
		OwnerID:     userID,
		GoalID:      in.GoalID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
	})
}

func (s *Service) GetTask(ctx context.Context, userID, taskID string) (models.Task, error) {
	return s.Store.GetTask(ctx, taskID, userID)
}

// ListTasks lists the user's tasks, optionally only those of one goal. The
// goal must belong to the user.
func (s *Service) ListTasks(ctx context.Context, userID string, goalID *string, page repo.Page) ([]models.Task, error) {
	if goalID != nil {
		if _, err := s.Store.GetGoal(ctx, *goalID, userID); err != nil {
			return nil, err
		}
	}
	return s.Store.ListTasks(ctx, userID, goalID, page)
}

func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	return s.Store.DeleteTask(ctx, taskID, userID)
}

// CompleteTask marks the task completed. Repeating it is a no-op for the
// goal cascade and the activity ledger.
func (s *Service) CompleteTask(ctx context.Context, userID, taskID, clientDate string) (models.Task, error) {
	done := true
	return s.UpdateTask(ctx, userID, taskID, TaskPatch{Completed: &done}, clientDate)
}

// UpdateTask applies patch to the task. When it moves the task from
// incomplete to completed the owning goal is re-evaluated in the same
// transaction and, once that commits, the completion is counted on the
// attribution day resolved from clientDate.
//
// A task owned by someone else yields ErrForbidden before anything is
// written. Cascade and ledger failures are reported through Events and never
// fail the update.
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, patch TaskPatch, clientDate string) (models.Task, error) {
	if patch.empty() {
		return models.Task{}, ErrInvalidArgs
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return models.Task{}, ErrInvalidArgs
	}

	var (
		updated    models.Task
		completion bool
	)
	err := s.Store.WithTx(ctx, func(tx repo.Store) error {
		task, err := tx.GetTaskForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if task.OwnerID != userID {
			return ErrForbidden
		}
		wasCompleted := task.Completed

		if patch.GoalID != nil && *patch.GoalID != "" {
			if _, err := tx.GetGoal(ctx, *patch.GoalID, userID); err != nil {
				return err
			}
		}
		patch.apply(&task)

		updated, err = tx.UpdateTask(ctx, task)
		if err != nil {
			return err
		}
		completion = !wasCompleted && updated.Completed
		if completion && updated.GoalID != nil {
			s.cascade(ctx, tx, userID, *updated.GoalID)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}

	if completion {
		day := s.resolveDate(ctx, userID, clientDate)
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
		defer cancel()
		if count, err := s.Ledger.RecordCompletion(lctx, userID, day); err != nil {
			s.Events.LedgerFailed(ctx, userID, day, err)
		} else {
			s.Events.LedgerRecorded(ctx, userID, day, count)
		}
	}
	return updated, nil
}

// cascade runs in a savepoint so a failure leaves the outer transaction, and
// with it the task update, intact. The goal row is locked before its tasks
// are read so the last two completions cannot both see the other task open.
func (s *Service) cascade(ctx context.Context, tx repo.Store, userID, goalID string) {
	err := tx.WithTx(ctx, func(sp repo.Store) error {
		if err := sp.LockGoal(ctx, goalID); err != nil {
			return err
		}
		goal, err := sp.GetGoal(ctx, goalID, userID)
		if err != nil {
			return err
		}
		tasks, err := sp.ListGoalTasks(ctx, goalID)
		if err != nil {
			return err
		}
		complete := goals.ShouldComplete(goal, tasks)
		s.Events.CascadeEvaluated(ctx, goalID, len(tasks), complete)
		if !complete {
			return nil
		}
		return sp.MarkGoalCompleted(ctx, goalID)
	})
	if err != nil {
		s.Events.CascadeSkipped(ctx, goalID, err)
	}
}

func (s *Service) resolveDate(ctx context.Context, userID, clientDate string) time.Time {
	day, fromClient := activity.ResolveDate(clientDate, s.Now(), s.Location)
	s.Events.DateResolved(ctx, userID, clientDate, day, fromClient)
	return day
}
