package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"planner/internal/activity"
	"planner/internal/auth"
	"planner/internal/db"
	"planner/internal/models"
	"planner/internal/repo"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func setupPostgresService(t *testing.T) (*Service, *repo.Repo, func()) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	config.MaxConns = 16
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := db.RunMigrations(ctx, pool, db.Migrations(), log); err != nil {
		pool.Close()
		t.Fatalf("migrate: %v", err)
	}

	store := repo.New(pool)
	svc := New(store, auth.NewManager("test-secret", time.Hour), activity.NewLedger(store, 3), LogEvents{Log: log}, time.UTC)
	svc.Now = func() time.Time { return serverNow }
	return svc, store, func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	}
}

func dayCount(t *testing.T, store *repo.Repo, userID, day string) int {
	t.Helper()
	records, err := store.ListAllActivity(context.Background(), userID)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	for _, rec := range records {
		if rec.Date.Format(activity.DateLayout) == day {
			return rec.Count
		}
	}
	return 0
}

func TestConcurrentCompletionCountsOnce(t *testing.T) {
	svc, store, cleanup := setupPostgresService(t)
	defer cleanup()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "a@b.com", "x", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	task, err := svc.CreateTask(ctx, user.ID, TaskInput{Title: "T1"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	const n = 10
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := svc.CompleteTask(ctx, user.ID, task.ID, ""); err != nil {
				t.Errorf("complete: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := dayCount(t, store, user.ID, serverToday); got != 1 {
		t.Fatalf("expected exactly one counted completion, got %d", got)
	}
}

func TestConcurrentLastTasksCompleteGoal(t *testing.T) {
	svc, store, cleanup := setupPostgresService(t)
	defer cleanup()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "a@b.com", "x", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	const rounds = 5
	for i := 0; i < rounds; i++ {
		goal, err := svc.CreateGoal(ctx, user.ID, GoalInput{Title: fmt.Sprintf("goal %d", i)})
		if err != nil {
			t.Fatalf("create goal: %v", err)
		}
		var tasks []models.Task
		for _, title := range []string{"T1", "T2"} {
			task, err := svc.CreateTask(ctx, user.ID, TaskInput{Title: title, GoalID: &goal.ID})
			if err != nil {
				t.Fatalf("create task: %v", err)
			}
			tasks = append(tasks, task)
		}

		start := make(chan struct{})
		var wg sync.WaitGroup
		for _, task := range tasks {
			wg.Add(1)
			go func(taskID string) {
				defer wg.Done()
				<-start
				if _, err := svc.CompleteTask(ctx, user.ID, taskID, ""); err != nil {
					t.Errorf("complete: %v", err)
				}
			}(task.ID)
		}
		close(start)
		wg.Wait()

		got, err := svc.GetGoal(ctx, user.ID, goal.ID)
		if err != nil {
			t.Fatalf("get goal: %v", err)
		}
		if !got.Completed {
			t.Fatalf("round %d: goal left open after both tasks completed", i)
		}
	}

	if got := dayCount(t, store, user.ID, serverToday); got != 2*rounds {
		t.Fatalf("expected %d completions, got %d", 2*rounds, got)
	}
}
