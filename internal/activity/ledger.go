package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planner/internal/models"
)

// ErrRetryable marks store errors that are known not to have applied the
// increment, so repeating the call cannot double-count.
var ErrRetryable = errors.New("retryable store error")

// Store is the persistence the ledger needs. IncrementActivity must be a
// single atomic increment-or-insert on the (user, day) key.
type Store interface {
	IncrementActivity(ctx context.Context, userID string, day time.Time) (int, error)
	ListActivity(ctx context.Context, userID string, start, end time.Time) ([]models.ActivityRecord, error)
	ListAllActivity(ctx context.Context, userID string) ([]models.ActivityRecord, error)
}

type Ledger struct {
	store       Store
	maxAttempts int
	backoff     time.Duration
}

func NewLedger(store Store, maxAttempts int) *Ledger {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Ledger{store: store, maxAttempts: maxAttempts, backoff: 20 * time.Millisecond}
}

// RecordCompletion adds one completion event to the (user, day) counter and
// returns the new count. Only errors wrapping ErrRetryable are retried.
func (l *Ledger) RecordCompletion(ctx context.Context, userID string, day time.Time) (int, error) {
	day = Day(day)
	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		count, err := l.store.IncrementActivity(ctx, userID, day)
		if err == nil {
			return count, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRetryable) || attempt == l.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("record completion: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * l.backoff):
		}
	}
	return 0, fmt.Errorf("record completion: %w", lastErr)
}

// ReadRange maps every day in [start, end] to its count, zero when no
// record exists.
func (l *Ledger) ReadRange(ctx context.Context, userID string, start, end time.Time) (map[string]int, error) {
	days := DaysBetween(start, end)
	out := make(map[string]int, len(days))
	for _, d := range days {
		out[d.Format(DateLayout)] = 0
	}
	if len(days) == 0 {
		return out, nil
	}
	records, err := l.store.ListActivity(ctx, userID, days[0], days[len(days)-1])
	if err != nil {
		return nil, fmt.Errorf("read activity range: %w", err)
	}
	for _, rec := range records {
		key := Day(rec.Date).Format(DateLayout)
		if _, ok := out[key]; ok {
			out[key] = rec.Count
		}
	}
	return out, nil
}

func (l *Ledger) Records(ctx context.Context, userID string) ([]models.ActivityRecord, error) {
	return l.store.ListAllActivity(ctx, userID)
}
