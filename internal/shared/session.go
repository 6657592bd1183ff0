package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionKeyPrefix namespaces device session records in redis.
const SessionKeyPrefix = "insights:session:"

// SessionManager binds one redis record to each browser through a cookie.
// A record lives for the configured TTL after the last request that touched
// it. Cookie values are "<id>.<hmac>" so IDs cannot be forged or guessed.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
	logger     *slog.Logger
}

// Session is one device's record. The zero value is usable in tests.
type Session struct {
	ID     string
	values map[string]string
	userID string

	retired   string // previous ID after Rotate, deleted on commit
	dirty     bool
	destroyed bool
}

type storedSession struct {
	Values map[string]string `json:"values"`
	UserID string            `json:"user_id"`
}

func NewSessionManager(client *redis.Client, cookieName, secret string, ttl time.Duration, secure bool, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		secret:     []byte(secret),
		ttl:        ttl,
		secure:     secure,
		logger:     logger,
	}
}

// Load returns the request's session. A missing cookie, an expired record or
// a record that no longer decodes all yield an empty session; only redis
// failures are errors.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	switch {
	case errors.Is(err, http.ErrNoCookie):
		return fresh(uuid.NewString()), nil
	case err != nil:
		return nil, err
	}

	id, ok := sm.verify(cookie.Value)
	if !ok {
		sm.logger.Warn("reject session cookie with bad signature", slog.String("remote", r.RemoteAddr))
		return fresh(uuid.NewString()), nil
	}

	raw, err := sm.client.Get(ctx, SessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return fresh(id), nil
	}
	if err != nil {
		return nil, err
	}

	var stored storedSession
	if err := json.Unmarshal(raw, &stored); err != nil {
		sm.logger.Warn("discard undecodable session", slog.String("session_id", id), slog.Any("error", err))
		return fresh(id), nil
	}
	return &Session{ID: id, values: stored.Values, userID: stored.UserID}, nil
}

// Commit writes pending changes and refreshes the cookie. An unchanged
// session only has its expiry pushed out.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.destroyed {
		if err := sm.client.Del(ctx, SessionKeyPrefix+sess.ID).Err(); err != nil {
			return err
		}
		sm.setCookie(w, "", -1)
		return nil
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
		sess.dirty = true
	}
	if sess.retired != "" {
		if err := sm.client.Del(ctx, SessionKeyPrefix+sess.retired).Err(); err != nil {
			return err
		}
		sess.retired = ""
	}

	key := SessionKeyPrefix + sess.ID
	if sess.dirty {
		data, err := json.Marshal(storedSession{Values: sess.values, UserID: sess.userID})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, key, data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	} else if err := sm.client.Expire(ctx, key, sm.ttl).Err(); err != nil {
		return err
	}
	sm.setCookie(w, sm.sign(sess.ID), int(sm.ttl/time.Second))
	return nil
}

// Destroy drops the record and expires the cookie on commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

func (sm *SessionManager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (sm *SessionManager) mac(id string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (sm *SessionManager) sign(id string) string {
	return id + "." + sm.mac(id)
}

func (sm *SessionManager) verify(value string) (string, bool) {
	id, sig, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", false
	}
	return id, hmac.Equal([]byte(sig), []byte(sm.mac(id)))
}

func fresh(id string) *Session {
	return &Session{ID: id, values: map[string]string{}, dirty: true}
}

// Rotate moves the record to a new ID. Call it when the privilege level of
// the device changes so an ID seen before login is useless afterwards.
func (s *Session) Rotate() {
	if s.retired == "" {
		s.retired = s.ID
	}
	s.ID = uuid.NewString()
	s.dirty = true
}

func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	s.dirty = true
}

func (s *Session) Get(key string) string {
	return s.values[key]
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// SetUser records which directory user the device belongs to.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

func (s *Session) User() string {
	return s.userID
}

type deviceSessionKey struct{}

// ContextWithSession attaches the device session to ctx.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, deviceSessionKey{}, sess)
}

// SessionFromContext returns the device session, or nil outside the
// session middleware.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(deviceSessionKey{}).(*Session)
	return sess
}
