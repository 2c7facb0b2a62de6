package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hrconnect/hrconnect/internal/shared"
)

// TokenVerifier checks a bearer token and returns the principal it vouches for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Principal, error)
}

// DecisionObserver records permission decisions made at the HTTP edge.
type DecisionObserver interface {
	ObservePermission(resource, action string, allowed bool)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Policy   Policy
	Tokens   TokenVerifier
	Logger   *slog.Logger
	Observer DecisionObserver
}

// ResolveRole attaches the request's RoleHolder to the context. A valid bearer
// token wins over the session; otherwise the session holds the role.
func (m Middleware) ResolveRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var holder RoleHolder
		if token := BearerToken(r); token != "" && m.Tokens != nil {
			principal, err := m.Tokens.VerifyToken(ctx, token)
			if err != nil {
				m.logWarn("rbac bearer token rejected", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			holder = NewHolderWith(principal.Role)
			ctx = ContextWithPrincipal(ctx, principal)
		} else if sess := shared.SessionFromContext(r.Context()); sess != nil {
			holder = NewSessionHolder(sess)
		} else {
			holder = NewHolder()
		}
		next.ServeHTTP(w, r.WithContext(ContextWithHolder(ctx, holder)))
	})
}

// Evaluator returns an evaluator bound to the request's role.
func (m Middleware) Evaluator(r *http.Request) Evaluator {
	return NewEvaluator(HolderFromContext(r.Context()), m.Policy)
}

// RequireAny ensures the current role holds at least one of the permissions.
// Permissions are written "resource.action", e.g. "rules.read".
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	queries := parsePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(queries) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			eval := m.Evaluator(r)
			for _, q := range queries {
				if m.check(eval, q) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the current role holds every permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	queries := parsePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			eval := m.Evaluator(r)
			for _, q := range queries {
				if !m.check(eval, q) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) check(eval Evaluator, q Query) bool {
	allowed := eval.Check(q)
	if m.Observer != nil {
		m.Observer.ObservePermission(m.observedResource(q.Resource), string(q.Action), allowed)
	}
	return allowed
}

// OtherResource labels observations for resources the service does not know.
const OtherResource = "other"

type resourceIndex interface {
	HasResource(resource string) bool
}

// observedResource keeps metric labels to core resources and those named by
// the loaded rule table.
func (m Middleware) observedResource(resource string) string {
	for _, known := range shared.CoreResources() {
		if resource == known {
			return resource
		}
	}
	if idx, ok := m.Policy.(resourceIndex); ok && resource != WildcardResource && idx.HasResource(resource) {
		return resource
	}
	return OtherResource
}

func (m Middleware) logWarn(msg string, attrs ...any) {
	if m.Logger != nil {
		m.Logger.Warn(msg, attrs...)
	}
}

// ParsePermission splits "resource.action". The action is the segment after
// the last dot so resources may themselves contain dots.
func ParsePermission(perm string) (Query, error) {
	perm = strings.TrimSpace(strings.ToLower(perm))
	idx := strings.LastIndex(perm, ".")
	if idx <= 0 || idx == len(perm)-1 {
		return Query{}, ErrInvalidRule
	}
	action, err := ParseAction(perm[idx+1:])
	if err != nil {
		return Query{}, err
	}
	return NewQuery(perm[:idx], action), nil
}

// parsePermissions normalises and de-duplicates permission strings. Malformed
// entries become queries that can never be granted.
func parsePermissions(perms []string) []Query {
	seen := make(map[string]struct{}, len(perms))
	queries := make([]Query, 0, len(perms))
	for _, p := range perms {
		key := strings.TrimSpace(strings.ToLower(p))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		q, err := ParsePermission(key)
		if err != nil {
			q = Query{Resource: key}
		}
		queries = append(queries, q)
	}
	return queries
}

// BearerToken returns the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
