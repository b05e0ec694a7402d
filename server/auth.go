package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// sessionCookie is the dashboard session cookie name.
const sessionCookie = "zimage_session"

// DefaultSessionTTL bounds how long a login stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SessionAuth protects dashboard routes with a single shared password
// and cookie sessions. The password is bcrypt-hashed at construction
// so the plaintext never lives in memory longer than needed.
type SessionAuth struct {
	mu           sync.Mutex
	passwordHash []byte
	sessions     map[string]time.Time // token -> expiry
	ttl          time.Duration
}

// NewSessionAuth hashes the password and returns the auth provider.
func NewSessionAuth(password string) (*SessionAuth, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &SessionAuth{
		passwordHash: hash,
		sessions:     make(map[string]time.Time),
		ttl:          DefaultSessionTTL,
	}, nil
}

// Middleware rejects requests without a valid session cookie.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.validRequest(r) {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MiddlewareFunc is Middleware for http.HandlerFunc.
func (a *SessionAuth) MiddlewareFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.Middleware(next).ServeHTTP(w, r)
	}
}

// LoginHandler accepts POST {"password": "..."} and sets the session
// cookie on success.
func (a *SessionAuth) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
			return
		}

		var body struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(body.Password)); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid password")
			return
		}

		token := a.createSession()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(a.ttl),
		})

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// LogoutHandler invalidates the current session.
func (a *SessionAuth) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			a.mu.Lock()
			delete(a.sessions, cookie.Value)
			a.mu.Unlock()
		}

		http.SetCookie(w, &http.Cookie{
			Name:    sessionCookie,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
		})

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (a *SessionAuth) createSession() string {
	token := uuid.NewString()

	a.mu.Lock()
	a.sessions[token] = time.Now().Add(a.ttl)
	a.pruneLocked()
	a.mu.Unlock()

	return token
}

func (a *SessionAuth) validRequest(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, ok := a.sessions[cookie.Value]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(a.sessions, cookie.Value)
		return false
	}
	return true
}

// pruneLocked drops expired sessions. Caller holds a.mu.
func (a *SessionAuth) pruneLocked() {
	now := time.Now()
	for token, expiry := range a.sessions {
		if now.After(expiry) {
			delete(a.sessions, token)
		}
	}
}
