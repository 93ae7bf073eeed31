package service

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"planner/internal/activity"
	"planner/internal/goals"
	"planner/internal/models"
	"planner/internal/repo"

	"github.com/google/uuid"
)

// memStore is an in-memory repo.Store. WithTx restores a snapshot when fn
// fails, which is enough to observe rollback for sequential callers.
type memStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	goals    map[string]models.Goal
	tasks    map[string]models.Task
	activity map[string]models.ActivityRecord

	incrementErr     error
	listGoalTasksErr error
	lockedGoals      []string
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]models.User),
		goals:    make(map[string]models.Goal),
		tasks:    make(map[string]models.Task),
		activity: make(map[string]models.ActivityRecord),
	}
}

type memSnapshot struct {
	users    map[string]models.User
	goals    map[string]models.Goal
	tasks    map[string]models.Task
	activity map[string]models.ActivityRecord
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx repo.Store) error) error {
	m.mu.Lock()
	snap := memSnapshot{
		users:    maps.Clone(m.users),
		goals:    maps.Clone(m.goals),
		tasks:    maps.Clone(m.tasks),
		activity: maps.Clone(m.activity),
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.users, m.goals, m.tasks, m.activity = snap.users, snap.goals, snap.tasks, snap.activity
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) CreateUser(_ context.Context, email, passwordHash, fullName string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return models.User{}, repo.ErrEmailTaken
		}
	}
	u := models.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, FullName: fullName, IsActive: true, CreatedAt: time.Now()}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, userID string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *memStore) withProgress(g models.Goal) models.Goal {
	total, done := 0, 0
	for _, t := range m.tasks {
		if t.GoalID != nil && *t.GoalID == g.ID {
			total++
			if t.Completed {
				done++
			}
		}
	}
	g.Progress = goals.Progress(total, done)
	return g
}

func (m *memStore) CreateGoal(_ context.Context, g models.Goal) (models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = uuid.NewString()
	g.CreatedAt = time.Now()
	g.UpdatedAt = g.CreatedAt
	m.goals[g.ID] = g
	return g, nil
}

func (m *memStore) GetGoal(_ context.Context, id, ownerID string) (models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[id]
	if !ok || g.OwnerID != ownerID {
		return models.Goal{}, repo.ErrNotFound
	}
	return m.withProgress(g), nil
}

func (m *memStore) ListGoals(_ context.Context, ownerID string, page repo.Page) ([]models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []models.Goal{}
	for _, g := range m.goals {
		if g.OwnerID == ownerID {
			res = append(res, m.withProgress(g))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].IsPinned != res[j].IsPinned {
			return res[i].IsPinned
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return paginate(res, page), nil
}

func (m *memStore) UpdateGoal(_ context.Context, g models.Goal) (models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.goals[g.ID]
	if !ok || cur.OwnerID != g.OwnerID {
		return models.Goal{}, repo.ErrNotFound
	}
	g.CreatedAt = cur.CreatedAt
	g.UpdatedAt = time.Now()
	m.goals[g.ID] = g
	return m.withProgress(g), nil
}

func (m *memStore) LockGoal(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.goals[id]; !ok {
		return repo.ErrNotFound
	}
	m.lockedGoals = append(m.lockedGoals, id)
	return nil
}

func (m *memStore) MarkGoalCompleted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.goals[id]; ok && !g.Completed {
		g.Completed = true
		m.goals[id] = g
	}
	return nil
}

func (m *memStore) DeleteGoal(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[id]
	if !ok || g.OwnerID != ownerID {
		return repo.ErrNotFound
	}
	delete(m.goals, id)
	for tid, t := range m.tasks {
		if t.GoalID != nil && *t.GoalID == id {
			t.GoalID = nil
			m.tasks[tid] = t
		}
	}
	return nil
}

func (m *memStore) CreateTask(_ context.Context, t models.Task) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.GoalID != nil {
		if _, ok := m.goals[*t.GoalID]; !ok {
			return models.Task{}, repo.ErrNotFound
		}
	}
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memStore) GetTask(_ context.Context, id, ownerID string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return models.Task{}, repo.ErrNotFound
	}
	return t, nil
}

func (m *memStore) GetTaskForUpdate(_ context.Context, id string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return models.Task{}, repo.ErrNotFound
	}
	return t, nil
}

func (m *memStore) ListTasks(_ context.Context, ownerID string, goalID *string, page repo.Page) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []models.Task{}
	for _, t := range m.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		if goalID != nil && (t.GoalID == nil || *t.GoalID != *goalID) {
			continue
		}
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return paginate(res, page), nil
}

func (m *memStore) ListGoalTasks(_ context.Context, goalID string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listGoalTasksErr != nil {
		return nil, m.listGoalTasksErr
	}
	res := []models.Task{}
	for _, t := range m.tasks {
		if t.GoalID != nil && *t.GoalID == goalID {
			res = append(res, t)
		}
	}
	return res, nil
}

func (m *memStore) UpdateTask(_ context.Context, t models.Task) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tasks[t.ID]
	if !ok || cur.OwnerID != t.OwnerID {
		return models.Task{}, repo.ErrNotFound
	}
	if t.GoalID != nil {
		if _, ok := m.goals[*t.GoalID]; !ok {
			return models.Task{}, repo.ErrNotFound
		}
	}
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = time.Now()
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memStore) DeleteTask(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return repo.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func activityKey(userID string, day time.Time) string {
	return userID + "|" + day.Format(activity.DateLayout)
}

func (m *memStore) IncrementActivity(_ context.Context, userID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	day = activity.Day(day)
	k := activityKey(userID, day)
	rec, ok := m.activity[k]
	if !ok {
		rec = models.ActivityRecord{ID: uuid.NewString(), UserID: userID, Date: day, CreatedAt: time.Now()}
	}
	rec.Count++
	m.activity[k] = rec
	return rec.Count, nil
}

func (m *memStore) ListActivity(_ context.Context, userID string, start, end time.Time) ([]models.ActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []models.ActivityRecord
	for _, d := range activity.DaysBetween(start, end) {
		if rec, ok := m.activity[activityKey(userID, d)]; ok {
			res = append(res, rec)
		}
	}
	return res, nil
}

func (m *memStore) ListAllActivity(_ context.Context, userID string) ([]models.ActivityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []models.ActivityRecord{}
	for _, rec := range m.activity {
		if rec.UserID == userID {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}

func (m *memStore) count(userID, day string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activity[userID+"|"+day].Count
}

func paginate[T any](items []T, page repo.Page) []T {
	page = page.Normalize()
	if page.Skip >= len(items) {
		return []T{}
	}
	items = items[page.Skip:]
	if len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}
