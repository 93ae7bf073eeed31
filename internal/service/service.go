package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"planner/internal/activity"
	"planner/internal/auth"
	"planner/internal/models"
	"planner/internal/repo"
)

var (
	ErrNotFound           = repo.ErrNotFound
	ErrEmailTaken         = repo.ErrEmailTaken
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidArgs        = errors.New("invalid arguments")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Service struct {
	Store    repo.Store
	Auth     *auth.Manager
	Ledger   *activity.Ledger
	Events   Events
	Location *time.Location
	Now      func() time.Time
}

func New(store repo.Store, authManager *auth.Manager, ledger *activity.Ledger, events Events, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Service{
		Store:    store,
		Auth:     authManager,
		Ledger:   ledger,
		Events:   events,
		Location: loc,
		Now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, email, password, fullName string) (models.User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") || password == "" {
		return models.User{}, ErrInvalidArgs
	}
	hash, err := s.Auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	return s.Store.CreateUser(ctx, email, hash, strings.TrimSpace(fullName))
}

// Login checks the credentials and returns a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.Store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := s.Auth.ComparePassword(user.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", ErrInvalidCredentials
	}
	return s.Auth.IssueToken(user.ID)
}

func (s *Service) Me(ctx context.Context, userID string) (models.User, error) {
	return s.Store.GetUserByID(ctx, userID)
}
