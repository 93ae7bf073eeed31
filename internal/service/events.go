package service

import (
	"context"
	"log/slog"
	"time"

	"planner/internal/activity"
)

// Events receives the discrete outcomes of the completion workflow.
type Events interface {
	DateResolved(ctx context.Context, userID, clientDate string, day time.Time, fromClient bool)
	LedgerRecorded(ctx context.Context, userID string, day time.Time, count int)
	LedgerFailed(ctx context.Context, userID string, day time.Time, err error)
	CascadeEvaluated(ctx context.Context, goalID string, tasks int, completed bool)
	CascadeSkipped(ctx context.Context, goalID string, err error)
}

// LogEvents writes every event as a structured log record.
type LogEvents struct {
	Log *slog.Logger
}

func (e LogEvents) DateResolved(ctx context.Context, userID, clientDate string, day time.Time, fromClient bool) {
	level := slog.LevelDebug
	if clientDate != "" && !fromClient {
		level = slog.LevelWarn
	}
	e.Log.Log(ctx, level, "attribution date resolved",
		"user_id", userID, "client_date", clientDate, "date", day.Format(activity.DateLayout), "from_client", fromClient)
}

func (e LogEvents) LedgerRecorded(ctx context.Context, userID string, day time.Time, count int) {
	e.Log.DebugContext(ctx, "activity recorded", "user_id", userID, "date", day.Format(activity.DateLayout), "count", count)
}

func (e LogEvents) LedgerFailed(ctx context.Context, userID string, day time.Time, err error) {
	e.Log.ErrorContext(ctx, "activity ledger update failed", "user_id", userID, "date", day.Format(activity.DateLayout), "error", err)
}

func (e LogEvents) CascadeEvaluated(ctx context.Context, goalID string, tasks int, completed bool) {
	e.Log.DebugContext(ctx, "goal cascade evaluated", "goal_id", goalID, "tasks", tasks, "completed", completed)
}

func (e LogEvents) CascadeSkipped(ctx context.Context, goalID string, err error) {
	e.Log.WarnContext(ctx, "goal cascade skipped", "goal_id", goalID, "error", err)
}

type NopEvents struct{}

func (NopEvents) DateResolved(context.Context, string, string, time.Time, bool) {}
func (NopEvents) LedgerRecorded(context.Context, string, time.Time, int)       {}
func (NopEvents) LedgerFailed(context.Context, string, time.Time, error)       {}
func (NopEvents) CascadeEvaluated(context.Context, string, int, bool)          {}
func (NopEvents) CascadeSkipped(context.Context, string, error)                {}
