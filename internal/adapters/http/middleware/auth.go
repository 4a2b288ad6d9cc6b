package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"slices"
	"sync"
	"time"

	domainAccount "coursebook/internal/domain/account"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const accountContextKey contextKey = "account"

// DefaultSessionTTL is how long a session stays valid after login.
const DefaultSessionTTL = 24 * time.Hour

// Session represents an authenticated session.
// CustomerID is set for customer accounts linked to a customer record.
type Session struct {
	AccountID  string
	Email      string
	Role       string
	CustomerID string
	CreatedAt  time.Time
}

// CanManage reports whether the session may use the admin API.
func (s Session) CanManage() bool {
	return domainAccount.CanManageCourses(s.Role)
}

// SessionStore is an in-memory session store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates an in-memory session store.
// A ttl <= 0 selects DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock replaces time.Now for session timestamps and expiry.
func (ss *SessionStore) SetClock(now func() time.Time) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.now = now
}

// TTL returns the session lifetime.
func (ss *SessionStore) TTL() time.Duration {
	return ss.ttl
}

// Create stores a new session and returns its token.
// PRE: sess.AccountID and sess.Role are non-empty
// POST: Session is stored under a fresh random token
func (ss *SessionStore) Create(sess Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	sess.CreatedAt = ss.now()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[token] = sess
	return token, nil
}

// Get retrieves a session by token.
// POST: Returns the session if present and not expired
func (ss *SessionStore) Get(token string) (Session, bool) {
	ss.mu.RLock()
	session, ok := ss.sessions[token]
	ss.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if ss.now().Sub(session.CreatedAt) > ss.ttl {
		ss.Delete(token)
		return Session{}, false
	}
	return session, true
}

// Delete removes a session by token.
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// DeleteAccount removes every session of an account.
// POST: Returns the number of sessions removed
func (ss *SessionStore) DeleteAccount(accountID string) int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	n := 0
	for token, s := range ss.sessions {
		if s.AccountID == accountID {
			delete(ss.sessions, token)
			n++
		}
	}
	return n
}

// Sweep drops expired sessions and returns how many were removed.
func (ss *SessionStore) Sweep() int {
	now := ss.now()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	n := 0
	for token, s := range ss.sessions {
		if now.Sub(s.CreatedAt) > ss.ttl {
			delete(ss.sessions, token)
			n++
		}
	}
	return n
}

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "coursebook_session"

// Auth returns middleware that puts the cookie's session into the request context.
// It does NOT block unauthenticated requests; use RequireAuth or RequireRole for that.
func Auth(sessions *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err == nil && cookie.Value != "" {
				if session, ok := sessions.Get(cookie.Value); ok {
					r = r.WithContext(ContextWithSession(r.Context(), session))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth blocks requests without a session with 401 auth.required.
func RequireAuth(deny DenyFunc) func(http.Handler) http.Handler {
	deny = orDefault(deny)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := GetSessionFromContext(r.Context()); !ok {
				deny(w, r, http.StatusUnauthorized, "auth.required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole blocks requests without a session (401) or without one of
// the given roles (403 auth.forbidden).
func RequireRole(deny DenyFunc, roles ...string) func(http.Handler) http.Handler {
	deny = orDefault(deny)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := GetSessionFromContext(r.Context())
			if !ok {
				deny(w, r, http.StatusUnauthorized, "auth.required")
				return
			}
			if !slices.Contains(roles, session.Role) {
				deny(w, r, http.StatusForbidden, "auth.forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(accountContextKey).(Session)
	return session, ok
}

// ContextWithSession returns a context carrying sess.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, accountContextKey, sess)
}

// SetSessionCookie sets the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
