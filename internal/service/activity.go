package service

import (
	"context"

	"planner/internal/activity"
	"planner/internal/models"
)

// MaxWindowDays caps the activity history a single request may ask for.
const MaxWindowDays = 3660

type ActivityIncrement struct {
	Count int    `json:"count"`
	Date  string `json:"date"`
}

// GetActivity returns exactly windowDays entries ending at today, where
// today follows the same resolution as completion attribution.
func (s *Service) GetActivity(ctx context.Context, userID string, windowDays int, clientToday string) (map[string]int, error) {
	if windowDays < 1 || windowDays > MaxWindowDays {
		return nil, ErrInvalidArgs
	}
	today := s.resolveDate(ctx, userID, clientToday)
	start, end := activity.Window(today, windowDays)
	return s.Ledger.ReadRange(ctx, userID, start, end)
}

// IncrementActivity counts one event by hand. Unlike the completion path,
// a ledger failure is returned to the caller.
func (s *Service) IncrementActivity(ctx context.Context, userID, clientDate string) (ActivityIncrement, error) {
	day := s.resolveDate(ctx, userID, clientDate)
	count, err := s.Ledger.RecordCompletion(ctx, userID, day)
	if err != nil {
		s.Events.LedgerFailed(ctx, userID, day, err)
		return ActivityIncrement{}, err
	}
	s.Events.LedgerRecorded(ctx, userID, day, count)
	return ActivityIncrement{Count: count, Date: day.Format(activity.DateLayout)}, nil
}

func (s *Service) ActivityRecords(ctx context.Context, userID string) ([]models.ActivityRecord, error) {
	return s.Ledger.Records(ctx, userID)
}
