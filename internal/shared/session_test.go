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

	"github.com/atrium-ops/atrium/internal/shared"
)

func newSessionManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "test_session", "keysecret", time.Hour, false), mr
}

func commitSession(t *testing.T, sm *shared.SessionManager, sess *shared.Session) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), res, req, sess))
	return res
}

func TestSessionRoundTrip(t *testing.T) {
	sm, _ := newSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.Set("theme", "dark")
	sess.SetUser("42")
	commitSession(t, sm, sess)
	require.NotEmpty(t, sess.ID)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	loaded, err := sm.Load(ctx, again)
	require.NoError(t, err)
	require.Equal(t, "dark", loaded.Get("theme"))
	require.Equal(t, "42", loaded.User())
}

func TestSessionStorageKeyIsNotTheCookieValue(t *testing.T) {
	sm, mr := newSessionManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.Set("seen", "1")
	commitSession(t, sm, sess)

	// The stored key must be an HMAC of the cookie value, never the raw ID,
	// so a keyspace dump cannot be turned into valid cookies.
	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.NotContains(t, keys[0], sess.ID)
}

func TestDestroyRemovesRecordAndExpiresCookie(t *testing.T) {
	sm, mr := newSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("7")
	commitSession(t, sm, sess)
	require.NotEmpty(t, mr.Keys())

	sm.Destroy(sess)
	res := commitSession(t, sm, sess)
	require.Empty(t, mr.Keys())

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	require.Negative(t, cookies[len(cookies)-1].MaxAge)
}

func TestCSRFTokenLifecycle(t *testing.T) {
	sm, _ := newSessionManager(t)
	cm := shared.NewCSRFManager("csrfsecret")
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	token, err := cm.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// EnsureToken is stable for the session's lifetime.
	second, err := cm.EnsureToken(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, token, second)

	require.NoError(t, cm.VerifyToken(ctx, sess, token))
	require.ErrorIs(t, cm.VerifyToken(ctx, sess, "forged"), shared.ErrCSRFTokenMismatch)
	require.ErrorIs(t, cm.VerifyToken(ctx, sess, ""), shared.ErrCSRFTokenMissing)
}
