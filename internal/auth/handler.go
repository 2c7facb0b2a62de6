package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hrconnect/hrconnect/internal/platform/httpx"
	"github.com/hrconnect/hrconnect/internal/rbac"
	"github.com/hrconnect/hrconnect/internal/shared"
	"github.com/hrconnect/hrconnect/jobs"
)

// RoleChangeNotifier is told whenever login or logout replaces a session role.
type RoleChangeNotifier interface {
	EnqueueRoleChanged(ctx context.Context, payload jobs.RoleChangedPayload) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	tokens         *TokenIssuer
	sessionManager *shared.SessionManager
	notifier       RoleChangeNotifier
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. notifier may be nil.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenIssuer, sessions *shared.SessionManager, notifier RoleChangeNotifier) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		tokens:         tokens,
		sessionManager: sessions,
		notifier:       notifier,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	Role      rbac.Role `json:"role"`
	Label     string    `json:"label"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id"`
}

type logoutResponse struct {
	Role rbac.Role `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, errors.Join(httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, errors.Join(httpx.ErrValidation, err))
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, errors.New("session missing"))
		return
	}

	user, change, err := h.service.Login(r.Context(), req.Email, req.Password, rbac.NewSessionHolder(sess))
	if err != nil {
		httpx.RespondError(w, errors.Join(httpx.ErrUnauthorized, err))
		return
	}
	h.sessionManager.Renew(sess)
	sess.SetUser(strconv.FormatInt(user.ID, 10))

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), h.sessionManager.Fingerprint(sess.ID), user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	token, tokenExp, err := h.tokens.Issue(user, sess.ID)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	h.notify(r.Context(), jobs.RoleChangedPayload{
		UserID:    user.ID,
		SessionID: sess.ID,
		From:      string(change.From),
		To:        string(change.To),
		Reason:    "login",
		At:        change.At,
	})

	httpx.JSON(w, http.StatusOK, loginResponse{
		Role:      user.Role,
		Label:     user.Role.Label(),
		Token:     token,
		ExpiresAt: tokenExp,
		SessionID: sess.ID,
	})
}

// handleLogout signs out the cookie session and, for bearer clients, the login
// session their token is bound to. Either way the token stops verifying.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	signedIn := sess != nil && sess.User() != ""

	if principal, ok := rbac.PrincipalFromContext(ctx); ok && (!signedIn || principal.SessionID != sess.ID) {
		h.logoutToken(ctx, principal)
	}
	if signedIn {
		userID, _ := shared.UserIDFromContext(ctx)
		change := h.service.Logout(rbac.NewSessionHolder(sess))
		h.endSession(ctx, sess.ID)
		h.sessionManager.Destroy(sess)
		h.notify(ctx, jobs.RoleChangedPayload{
			UserID:    userID,
			SessionID: sess.ID,
			From:      string(change.From),
			To:        string(change.To),
			Reason:    "logout",
			At:        change.At,
		})
	}
	httpx.JSON(w, http.StatusOK, logoutResponse{Role: rbac.DefaultRole})
}

func (h *Handler) logoutToken(ctx context.Context, principal rbac.Principal) {
	change := h.service.Logout(rbac.NewHolderWith(principal.Role))
	if principal.SessionID == "" {
		return
	}
	h.endSession(ctx, principal.SessionID)
	if err := h.sessionManager.Delete(ctx, principal.SessionID); err != nil {
		h.logger.Warn("delete token session", slog.Any("error", err))
	}
	userID, _ := strconv.ParseInt(principal.Subject, 10, 64)
	h.notify(ctx, jobs.RoleChangedPayload{
		UserID:    userID,
		SessionID: principal.SessionID,
		From:      string(change.From),
		To:        string(change.To),
		Reason:    "logout",
		At:        change.At,
	})
}

// endSession revokes tokens bound to the login session and drops its record.
func (h *Handler) endSession(ctx context.Context, id string) {
	if err := h.tokens.Revoke(ctx, id); err != nil {
		h.logger.Error("revoke session tokens", slog.Any("error", err))
	}
	if err := h.service.RemoveSession(ctx, h.sessionManager.Fingerprint(id)); err != nil {
		h.logger.Warn("remove session", slog.Any("error", err))
	}
}

func (h *Handler) notify(ctx context.Context, payload jobs.RoleChangedPayload) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.EnqueueRoleChanged(ctx, payload); err != nil {
		h.logger.Warn("enqueue role change", slog.Any("error", err))
	}
}
