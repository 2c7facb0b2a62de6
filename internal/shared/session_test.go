package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/hrconnect/hrconnect/internal/shared"
)

func newManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, "sid", "session-secret", time.Hour, false), mr
}

func TestSessionLoadStartsNewSession(t *testing.T) {
	sm, mr := newManager(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.True(t, sess.IsNew())
	require.Empty(t, sess.Role())

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rr, sess))
	require.Empty(t, mr.Keys(), "untouched sessions are not stored")
}

func TestSessionRoleRoundTripViaCookieAndHeader(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("7")
	sess.SetRole("manager")
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	require.True(t, mr.Exists(sm.Key(sess.ID)))
	require.Equal(t, sess.ID, rr.Header().Get(shared.SessionHeader))
	require.Equal(t, time.Hour, mr.TTL(sm.Key(sess.ID)))

	byCookie := httptest.NewRequest(http.MethodGet, "/", nil)
	byCookie.AddCookie(&http.Cookie{Name: "sid", Value: sess.ID})
	loaded, err := sm.Load(ctx, byCookie)
	require.NoError(t, err)
	require.Equal(t, "manager", loaded.Role())
	require.Equal(t, "7", loaded.User())
	require.False(t, loaded.IsNew())

	byHeader := httptest.NewRequest(http.MethodGet, "/", nil)
	byHeader.Header.Set(shared.SessionHeader, sess.ID)
	loaded, err = sm.Load(ctx, byHeader)
	require.NoError(t, err)
	require.Equal(t, "manager", loaded.Role())

	uid, ok := shared.UserIDFromContext(shared.ContextWithSession(ctx, loaded))
	require.True(t, ok)
	require.Equal(t, int64(7), uid)
}

func TestSessionRenewDropsPreviousRecord(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetRole("employee")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	oldID := sess.ID

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: oldID})
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sm.Renew(loaded)
	loaded.SetRole("admin")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), loaded))

	require.NotEqual(t, oldID, loaded.ID)
	require.False(t, mr.Exists(sm.Key(oldID)))
	require.True(t, mr.Exists(sm.Key(loaded.ID)))
}

func TestSessionDestroyClearsCookie(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetRole("hr_admin")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))

	sm.Destroy(sess)
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	require.False(t, mr.Exists(sm.Key(sess.ID)))

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}

func TestSessionSetRoleSameValueIsClean(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetRole("")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	require.Empty(t, mr.Keys())
}

func TestUserIDFromContextWithoutSession(t *testing.T) {
	_, ok := shared.UserIDFromContext(context.Background())
	require.False(t, ok)
}

func TestSessionKeyHidesID(t *testing.T) {
	sm, _ := newManager(t)
	key := sm.Key("abc")
	require.NotContains(t, key, "abc")
	require.Equal(t, key, sm.Key("abc"))

	plain := shared.NewSessionManager(nil, "sid", "", time.Hour, false)
	require.Equal(t, "session:abc", plain.Key("abc"))
}

func TestSessionFingerprintAndDelete(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	fp := sm.Fingerprint("abc")
	require.Len(t, fp, 64)
	require.NotContains(t, fp, "abc")
	require.Equal(t, "session:"+fp, sm.Key("abc"))

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("7")
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	require.True(t, mr.Exists(sm.Key(sess.ID)))

	require.NoError(t, sm.Delete(ctx, sess.ID))
	require.False(t, mr.Exists(sm.Key(sess.ID)))
	require.NoError(t, sm.Delete(ctx, "missing"))
}
