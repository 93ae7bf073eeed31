package service

import (
	"context"
	"strings"
	"time"

	"planner/internal/models"
	"planner/internal/repo"
)

type GoalInput struct {
	Title       string
	Description string
	TargetDate  *time.Time
	IsPinned    bool
}

// GoalPatch holds one optional slot per editable goal field. Completed may
// be set either way here; only the cascade is restricted to false→true.
type GoalPatch struct {
	Title           *string
	Description     *string
	TargetDate      *time.Time
	ClearTargetDate bool
	Completed       *bool
	IsPinned        *bool
}

func (p GoalPatch) apply(g *models.Goal) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return ErrInvalidArgs
		}
		g.Title = title
	}
	if p.Description != nil {
		g.Description = strings.TrimSpace(*p.Description)
	}
	if p.ClearTargetDate {
		g.TargetDate = nil
	} else if p.TargetDate != nil {
		t := *p.TargetDate
		g.TargetDate = &t
	}
	if p.Completed != nil {
		g.Completed = *p.Completed
	}
	if p.IsPinned != nil {
		g.IsPinned = *p.IsPinned
	}
	return nil
}

func (s *Service) CreateGoal(ctx context.Context, userID string, in GoalInput) (models.Goal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Goal{}, ErrInvalidArgs
	}
	return s.Store.CreateGoal(ctx, models.Goal{
		OwnerID:     userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		TargetDate:  in.TargetDate,
		IsPinned:    in.IsPinned,
	})
}

func (s *Service) GetGoal(ctx context.Context, userID, goalID string) (models.Goal, error) {
	return s.Store.GetGoal(ctx, goalID, userID)
}

func (s *Service) ListGoals(ctx context.Context, userID string, page repo.Page) ([]models.Goal, error) {
	return s.Store.ListGoals(ctx, userID, page)
}

func (s *Service) UpdateGoal(ctx context.Context, userID, goalID string, patch GoalPatch) (models.Goal, error) {
	var updated models.Goal
	err := s.Store.WithTx(ctx, func(tx repo.Store) error {
		goal, err := tx.GetGoal(ctx, goalID, userID)
		if err != nil {
			return err
		}
		if err := patch.apply(&goal); err != nil {
			return err
		}
		updated, err = tx.UpdateGoal(ctx, goal)
		return err
	})
	if err != nil {
		return models.Goal{}, err
	}
	return updated, nil
}

func (s *Service) DeleteGoal(ctx context.Context, userID, goalID string) error {
	return s.Store.DeleteGoal(ctx, goalID, userID)
}
