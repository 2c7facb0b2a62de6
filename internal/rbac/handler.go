package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hrconnect/hrconnect/internal/platform/httpx"
	"github.com/hrconnect/hrconnect/internal/shared"
)

// Handler exposes the current role, permission checks, and rule management.
type Handler struct {
	logger  *slog.Logger
	service *Service
	policy  *ReloadingPolicy
	rbac    Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, policy *ReloadingPolicy, rbac Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, policy: policy, rbac: rbac}
}

// MountRoutes registers RBAC routes. The caller is expected to have installed
// Middleware.ResolveRole upstream.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me/role", h.currentRole)
	r.Get("/roles", h.listRoles)
	r.Get("/permissions/check", h.checkPermission)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRulesRead))
		r.Get("/rules", h.listRules)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRulesWrite))
		r.Put("/rules/{role}", h.replaceRules)
	})
}

type roleResponse struct {
	Role  Role   `json:"role"`
	Label string `json:"label"`
}

type checkResponse struct {
	Resource string `json:"resource"`
	Action   Action `json:"action"`
	Allowed  bool   `json:"allowed"`
}

type replaceRulesRequest struct {
	Rules []Rule `json:"rules"`
}

func (h *Handler) currentRole(w http.ResponseWriter, r *http.Request) {
	role := HolderFromContext(r.Context()).Current()
	httpx.JSON(w, http.StatusOK, roleResponse{Role: role, Label: role.Label()})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles := Roles()
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleResponse{Role: role, Label: role.Label()})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	action, err := ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		httpx.RespondError(w, errors.Join(httpx.ErrValidation, err))
		return
	}
	q := NewQuery(r.URL.Query().Get("resource"), action)
	allowed := h.rbac.check(h.rbac.Evaluator(r), q)
	httpx.JSON(w, http.StatusOK, checkResponse{Resource: q.Resource, Action: q.Action, Allowed: allowed})
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	var rules []Rule
	if h.service == nil {
		rules = h.policy.Table().Rules()
	} else {
		var err error
		rules, err = h.service.ListRules(r.Context())
		if err != nil {
			h.logger.Error("list rules", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}
	if rules == nil {
		rules = []Rule{}
	}
	httpx.JSON(w, http.StatusOK, rules)
}

func (h *Handler) replaceRules(w http.ResponseWriter, r *http.Request) {
	role, err := ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.RespondError(w, errors.Join(httpx.ErrNotFound, err))
		return
	}
	var req replaceRulesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, errors.Join(httpx.ErrValidation, err))
		return
	}
	if h.service == nil {
		httpx.RespondError(w, errors.Join(httpx.ErrForbidden, errors.New("rules are read-only")))
		return
	}
	if err := h.service.ReplaceRules(r.Context(), role, req.Rules); err != nil {
		if errors.Is(err, ErrInvalidRule) || errors.Is(err, ErrUnknownRole) {
			httpx.RespondError(w, errors.Join(httpx.ErrValidation, err))
			return
		}
		h.logger.Error("replace rules", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	table, err := h.service.Policy(r.Context())
	if err != nil {
		h.logger.Warn("reload policy after replace", slog.Any("error", err))
	} else {
		h.policy.Swap(table)
	}
	w.WriteHeader(http.StatusNoContent)
}
