package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/hrconnect/hrconnect/internal/jobs"
	"github.com/hrconnect/hrconnect/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRoleChanged records a role replacement in the audit log.
	TaskRoleChanged = "audit:role_changed"
)

// RoleChangedPayload describes a role replacement. Login and logout carry the
// session; administrative assignments carry the acting user instead.
type RoleChangedPayload struct {
	ActorID   int64     `json:"actor_id,omitempty"`
	UserID    int64     `json:"user_id"`
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// NewRoleChangedTask constructs an Asynq task.
func NewRoleChangedTask(payload RoleChangedPayload) (*asynq.Task, error) {
	if payload.At.IsZero() {
		payload.At = time.Now().UTC()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoleChanged, data), nil
}

// NewRoleChangedHandler returns the handler that writes role changes to the
// audit log. Malformed payloads are not retried.
func NewRoleChangedHandler(recorder shared.AuditRecorder, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskRoleChanged)
		var payload RoleChangedPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Warn("role changed payload", slog.Any("error", err))
			return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
		}
		entry := auditEntry(payload)
		if err := shared.ValidateAuditLog(entry); err != nil {
			return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
		}
		if err := recorder.Record(ctx, entry); err != nil {
			return tracker.End(fmt.Errorf("jobs: record role change: %w", err))
		}
		return tracker.End(nil)
	}
}

func auditEntry(payload RoleChangedPayload) shared.AuditLog {
	entry := shared.AuditLog{
		ActorID:  payload.UserID,
		Action:   payload.Reason,
		Entity:   "session_role",
		EntityID: payload.SessionID,
		Meta:     map[string]any{"from": payload.From, "to": payload.To},
		At:       payload.At,
	}
	if payload.SessionID == "" && payload.ActorID != 0 {
		entry.ActorID = payload.ActorID
		entry.Entity = "user_role"
		entry.EntityID = strconv.FormatInt(payload.UserID, 10)
	}
	return entry
}
