package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager keeps signed-in sessions in Redis, addressed by an opaque
// cookie value. Storage keys are an HMAC of the cookie value, so a dump of
// the Redis keyspace cannot be replayed as cookies.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session is the per-request view of one stored session. Mutations only mark
// it dirty; nothing reaches Redis until Commit.
type Session struct {
	ID        string
	values    map[string]string
	userID    string
	fresh     bool
	dirty     bool
	destroyed bool
}

type sessionRecord struct {
	Values map[string]string `json:"values"`
	UserID string            `json:"user_id"`
}

// NewSessionManager wires a manager over the given Redis client. The secret
// keys the storage-key HMAC; secure controls the cookie's Secure attribute.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load resolves the request's session cookie to a stored session. A missing
// cookie or an expired record yields a fresh session, never an error.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.freshSession(), nil
		}
		return nil, err
	}

	raw, err := sm.client.Get(ctx, sm.storageKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := sm.freshSession()
			sess.ID = cookie.Value
			return sess, nil
		}
		return nil, err
	}

	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}

	return &Session{
		ID:     cookie.Value,
		values: record.Values,
		userID: record.UserID,
	}, nil
}

// Commit writes the session to Redis and sets the cookie. Destroyed sessions
// are removed from Redis and their cookie expired in the same call.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.storageKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}

	if sess.ID == "" {
		sess.ID = newSessionID()
	}

	if sess.dirty || sess.fresh {
		record, err := json.Marshal(sessionRecord{Values: sess.values, UserID: sess.userID})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.storageKey(sess.ID), record, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
		sess.fresh = false
	}

	http.SetCookie(w, sm.cookie(sess.ID, 0))
	return nil
}

// Destroy marks the session for removal on the next Commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL reports the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName reports the session cookie's name.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Set stores a key-value pair on the session.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get reads a stored value, empty when absent.
func (s *Session) Get(key string) string {
	return s.values[key]
}

// Delete drops a stored value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// SetUser binds the session to a signed-in user.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

// User reports the bound user ID, empty for anonymous sessions.
func (s *Session) User() string {
	return s.userID
}

func (sm *SessionManager) freshSession() *Session {
	return &Session{
		ID:     newSessionID(),
		values: make(map[string]string),
		fresh:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge == 0 {
		c.Expires = time.Now().Add(sm.ttl)
	}
	return c
}

func (sm *SessionManager) storageKey(id string) string {
	if len(sm.secret) == 0 {
		return "sess:" + id
	}
	mac := hmac.New(sha256.New, sm.secret)
	_, _ = mac.Write([]byte(id))
	return "sess:" + hex.EncodeToString(mac.Sum(nil))
}

func newSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
