package users

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrconnect/hrconnect/internal/rbac"
	"github.com/hrconnect/hrconnect/jobs"
)

// RoleChangeNotifier is told when an administrator assigns a stored role.
type RoleChangeNotifier interface {
	EnqueueRoleChanged(ctx context.Context, payload jobs.RoleChangedPayload) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	notifier RoleChangeNotifier
	logger   *slog.Logger
}

// NewService builds Service instance. notifier may be nil.
func NewService(repo RepositoryPort, notifier RoleChangeNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// AssignRole stores role for a user. Sessions already holding a role keep it
// until the user signs in again.
func (s *Service) AssignRole(ctx context.Context, actorID, userID int64, role rbac.Role) (Assignment, error) {
	if !role.Valid() {
		return Assignment{}, rbac.ErrUnknownRole
	}
	previous, err := s.repo.UpdateRole(ctx, userID, role)
	if err != nil {
		return Assignment{}, fmt.Errorf("users: assign role: %w", err)
	}
	out := Assignment{UserID: userID, From: previous, To: role}
	if out.Changed() && s.notifier != nil {
		payload := jobs.RoleChangedPayload{
			ActorID: actorID,
			UserID:  userID,
			From:    string(out.From),
			To:      string(out.To),
			Reason:  "assign",
			At:      time.Now().UTC(),
		}
		if err := s.notifier.EnqueueRoleChanged(ctx, payload); err != nil {
			s.logger.Warn("enqueue role assignment", slog.Any("error", err))
		}
	}
	return out, nil
}
