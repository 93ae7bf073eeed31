package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"planner/internal/activity"
	"planner/internal/auth"
	"planner/internal/repo"
	"planner/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxBodyBytes      = 1 << 20
	defaultWindowDays = 365
)

type FlexTime struct {
	time.Time
}

func (ft *FlexTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// <input type="date">
	if t, err := time.Parse(activity.DateLayout, s); err == nil {
		ft.Time = t
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		ft.Time = t
		return nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		ft.Time = t
		return nil
	}
	return errors.New("invalid date/time format")
}

func (ft *FlexTime) ToTimePtr() *time.Time {
	if ft == nil || ft.Time.IsZero() {
		return nil
	}
	t := ft.Time
	return &t
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type goalRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	TargetDate  *FlexTime `json:"target_date"`
	Completed   *bool     `json:"completed"`
	IsPinned    *bool     `json:"is_pinned"`
}

type taskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	GoalID      *string `json:"goal_id"`
}

type activityRecordResponse struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Count     int       `json:"count"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *API) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Planner API"})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password required")
		return
	}
	user, err := a.Service.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		a.writeServiceError(w, r, err, "User")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleLogin accepts the OAuth2 password form (username, password) as well
// as a JSON body.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if !decodeJSON(w, r, &req) {
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_FORM", "Invalid payload")
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}
	email := req.Username
	if email == "" {
		email = req.Email
	}
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password required")
		return
	}
	token, err := a.Service.Login(r.Context(), email, req.Password)
	if err != nil {
		a.writeServiceError(w, r, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := a.Service.Me(r.Context(), userID)
	if err != nil {
		a.writeServiceError(w, r, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleMyTasks(w http.ResponseWriter, r *http.Request) {
	a.listTasks(w, r, nil)
}

func (a *API) handleMyGoals(w http.ResponseWriter, r *http.Request) {
	a.handleListGoals(w, r)
}

func (a *API) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	days := defaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > service.MaxWindowDays {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid days")
			return
		}
		days = n
	}
	counts, err := a.Service.GetActivity(r.Context(), userID, days, r.URL.Query().Get("today"))
	if err != nil {
		a.writeServiceError(w, r, err, "Activity")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) handleIncrementActivity(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	res, err := a.Service.IncrementActivity(r.Context(), userID, r.URL.Query().Get("today"))
	if err != nil {
		a.writeServiceError(w, r, err, "Activity")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleActivityDebug(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	records, err := a.Service.ActivityRecords(r.Context(), userID)
	if err != nil {
		a.writeServiceError(w, r, err, "Activity")
		return
	}
	res := make([]activityRecordResponse, 0, len(records))
	for _, rec := range records {
		res = append(res, activityRecordResponse{
			ID:        rec.ID,
			Date:      rec.Date.Format(activity.DateLayout),
			Count:     rec.Count,
			UserID:    rec.UserID,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleListGoals(w http.ResponseWriter, r *http.Request) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	goals, err := a.Service.ListGoals(r.Context(), userID, page)
	if err != nil {
		a.writeServiceError(w, r, err, "Goal")
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (a *API) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title required")
		return
	}
	in := service.GoalInput{Title: *req.Title, TargetDate: req.TargetDate.ToTimePtr()}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.IsPinned != nil {
		in.IsPinned = *req.IsPinned
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	goal, err := a.Service.CreateGoal(r.Context(), userID, in)
	if err != nil {
		a.writeServiceError(w, r, err, "Goal")
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (a *API) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Goal")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	goal, err := a.Service.GetGoal(r.Context(), userID, id)
	if err != nil {
		a.writeServiceError(w, r, err, "Goal")
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (a *API) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Goal")
	if !ok {
		return
	}
	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := service.GoalPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		IsPinned:    req.IsPinned,
	}
	if req.TargetDate != nil {
		if t := req.TargetDate.ToTimePtr(); t != nil {
			patch.TargetDate = t
		} else {
			patch.ClearTargetDate = true
		}
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	goal, err := a.Service.UpdateGoal(r.Context(), userID, id, patch)
	if err != nil {
		a.writeServiceError(w, r, err, "Goal")
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (a *API) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Goal")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := a.Service.DeleteGoal(r.Context(), userID, id); err != nil {
		a.writeServiceError(w, r, err, "Goal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Goal deleted successfully"})
}

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var goalID *string
	if raw := r.URL.Query().Get("goal_id"); raw != "" {
		if !validID(raw) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Goal not found")
			return
		}
		goalID = &raw
	}
	a.listTasks(w, r, goalID)
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request, goalID *string) {
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	tasks, err := a.Service.ListTasks(r.Context(), userID, goalID, page)
	if err != nil {
		a.writeTaskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title required")
		return
	}
	if req.GoalID != nil && *req.GoalID != "" && !validID(*req.GoalID) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Goal not found")
		return
	}
	in := service.TaskInput{Title: *req.Title, GoalID: req.GoalID}
	if req.Description != nil {
		in.Description = *req.Description
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	task, err := a.Service.CreateTask(r.Context(), userID, in)
	if err != nil {
		a.writeTaskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Task")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	task, err := a.Service.GetTask(r.Context(), userID, id)
	if err != nil {
		a.writeServiceError(w, r, err, "Task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleReplaceTask treats the body as the full editable state: an absent
// description or goal_id clears it.
func (a *API) handleReplaceTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Title required")
		return
	}
	empty := ""
	if req.Description == nil {
		req.Description = &empty
	}
	if req.GoalID == nil {
		req.GoalID = &empty
	}
	a.updateTask(w, r, req)
}

func (a *API) handlePatchTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a.updateTask(w, r, req)
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request, req taskRequest) {
	id, ok := pathID(w, r, "Task")
	if !ok {
		return
	}
	if req.GoalID != nil && *req.GoalID != "" && !validID(*req.GoalID) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Goal not found")
		return
	}
	patch := service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		GoalID:      req.GoalID,
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	task, err := a.Service.UpdateTask(r.Context(), userID, id, patch, r.URL.Query().Get("today"))
	if err != nil {
		a.writeServiceError(w, r, err, "Task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Task")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	task, err := a.Service.CompleteTask(r.Context(), userID, id, r.URL.Query().Get("today"))
	if err != nil {
		a.writeServiceError(w, r, err, "Task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Task")
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := a.Service.DeleteTask(r.Context(), userID, id); err != nil {
		a.writeServiceError(w, r, err, "Task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// pathID returns the {id} URL parameter, answering 404 when it is not a
// UUID.
func pathID(w http.ResponseWriter, r *http.Request, entity string) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", entity+" not found")
		return "", false
	}
	return id, true
}

func parsePage(w http.ResponseWriter, r *http.Request) (repo.Page, bool) {
	var page repo.Page
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"skip", &page.Skip}, {"limit", &page.Limit}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+p.name)
			return repo.Page{}, false
		}
		*p.dst = n
	}
	return page.Normalize(), true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid payload")
		return false
	}
	return true
}
