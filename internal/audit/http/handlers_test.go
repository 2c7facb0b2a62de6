package audithttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hrconnect/hrconnect/internal/audit"
	"github.com/hrconnect/hrconnect/internal/rbac"
	"github.com/hrconnect/hrconnect/internal/shared"
)

type stubTimeline struct {
	filters audit.TimelineFilters
	rows    []audit.TimelineRow
}

func (s *stubTimeline) Timeline(_ context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.filters = filters
	return audit.Result{Rows: s.rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}, nil
}

func (s *stubTimeline) Export(_ context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.filters = filters
	return s.rows, nil
}

func newAuditRouter(t *testing.T, svc TimelineService) http.Handler {
	t.Helper()
	table, err := rbac.NewRuleTable([]rbac.Rule{
		{Role: rbac.RoleHRAdmin, Resource: shared.ResourceAudit, Actions: []rbac.Action{rbac.ActionRead}},
	})
	require.NoError(t, err)
	h := NewHandler(nil, svc, rbac.Middleware{Policy: table})
	h.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			role := rbac.Role(req.Header.Get("X-Test-Role"))
			next.ServeHTTP(w, req.WithContext(rbac.ContextWithHolder(req.Context(), rbac.NewHolderWith(role))))
		})
	})
	h.MountRoutes(r)
	return r
}

func get(h http.Handler, target, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("X-Test-Role", role)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTimelineRequiresAuditRead(t *testing.T) {
	router := newAuditRouter(t, &stubTimeline{})
	require.Equal(t, http.StatusForbidden, get(router, "/", "manager").Code)
	require.Equal(t, http.StatusForbidden, get(router, "/export.csv", "employee").Code)
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	svc := &stubTimeline{rows: []audit.TimelineRow{{ActorID: 1, Action: "login"}}}
	router := newAuditRouter(t, svc)

	rr := get(router, "/", "hr_admin")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC), svc.filters.From)
	require.Equal(t, time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC), svc.filters.To)

	var body audit.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
}

func TestTimelineFilters(t *testing.T) {
	svc := &stubTimeline{}
	router := newAuditRouter(t, svc)

	rr := get(router, "/?from=2026-06-01&to=2026-06-10&actor=4&entity=user_role&action=assign&page=2&page_size=5", "hr_admin")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, audit.TimelineFilters{
		From:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC),
		ActorID:  4,
		Entity:   "user_role",
		Action:   "assign",
		Page:     2,
		PageSize: 5,
	}, svc.filters)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router := newAuditRouter(t, &stubTimeline{})
	for _, q := range []string{
		"from=yesterday",
		"to=2026-13-01",
		"from=2026-06-10&to=2026-06-01",
		"from=2026-01-01&to=2026-06-01",
		"actor=abc",
		"page=0",
		"page_size=-1",
	} {
		rr := get(router, "/?"+q, "hr_admin")
		require.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestExportCSV(t *testing.T) {
	svc := &stubTimeline{rows: []audit.TimelineRow{{ActorID: 2, Action: "logout", Entity: "session_role", EntityID: "abc", From: "manager", To: "employee"}}}
	router := newAuditRouter(t, svc)

	rr := get(router, "/export.csv", "hr_admin")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rr.Body.String(), "at,actor_id,action"))
	require.Contains(t, rr.Body.String(), "logout,session_role,abc,manager,employee")
}

func TestRateLimitKeyPrefersBearerSubject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/export.csv", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	key, err := rateLimitKey(req)
	require.NoError(t, err)
	require.Equal(t, "ip:10.0.0.1", key)

	sess := &shared.Session{ID: "s1"}
	sess.SetUser("12")
	key, err = rateLimitKey(req.WithContext(shared.ContextWithSession(req.Context(), sess)))
	require.NoError(t, err)
	require.Equal(t, "user:12", key)

	ctx := rbac.ContextWithPrincipal(req.Context(), rbac.Principal{Subject: "42", Role: rbac.RoleHRAdmin})
	key, err = rateLimitKey(req.WithContext(ctx))
	require.NoError(t, err)
	require.Equal(t, "user:42", key)
}

func TestExportLimitFollowsBearerAcrossAddresses(t *testing.T) {
	table, err := rbac.NewRuleTable([]rbac.Rule{
		{Role: rbac.RoleHRAdmin, Resource: shared.ResourceAudit, Actions: []rbac.Action{rbac.ActionRead}},
	})
	require.NoError(t, err)
	h := NewHandler(nil, &stubTimeline{}, rbac.Middleware{Policy: table})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := rbac.ContextWithHolder(req.Context(), rbac.NewHolderWith(rbac.RoleHRAdmin))
			ctx = rbac.ContextWithPrincipal(ctx, rbac.Principal{Subject: "42", Role: rbac.RoleHRAdmin})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.MountRoutes(r)

	for i := 0; i <= exportRateLimit; i++ {
		req := httptest.NewRequest(http.MethodGet, "/export.csv", nil)
		req.RemoteAddr = fmt.Sprintf("10.0.0.%d:5000", i+1)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if i < exportRateLimit {
			require.Equal(t, http.StatusOK, rr.Code)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rr.Code)
		}
	}
}
