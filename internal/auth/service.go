package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hrconnect/hrconnect/internal/rbac"
	"github.com/hrconnect/hrconnect/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RoleChange records a wholesale replacement of a holder's role.
type RoleChange struct {
	From rbac.Role
	To   rbac.Role
	At   time.Time
}

// Authenticate validates email/password credentials. Every failure collapses
// to ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and installs the user's role in holder. On failure the
// holder keeps its current role.
func (s *Service) Login(ctx context.Context, email, password string, holder rbac.RoleHolder) (*User, RoleChange, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, RoleChange{}, err
	}
	return user, s.replace(holder, user.Role), nil
}

// Logout returns holder to the default role.
func (s *Service) Logout(holder rbac.RoleHolder) RoleChange {
	return s.replace(holder, rbac.DefaultRole)
}

func (s *Service) replace(holder rbac.RoleHolder, role rbac.Role) RoleChange {
	change := RoleChange{From: holder.Current(), To: role, At: s.now().UTC()}
	holder.Replace(role)
	return change
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
