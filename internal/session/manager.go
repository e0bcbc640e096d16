package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"

	"openvote/dashboard/internal/apperr"
	"openvote/dashboard/internal/auth"
	"openvote/dashboard/internal/rbac"
)

// Session is the authenticated identity. ExpiresAt comes from the credential
// payload and is not independently verified.
type Session struct {
	Token     string
	UserID    string
	Username  string
	Role      rbac.Role
	ExpiresAt time.Time
}

// Valid reports whether the session is usable at now. An expired session is
// the same as no session.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// Authenticator exchanges username and password for a credential.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type storedBlob struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Manager is the only writer of the current session.
type Manager struct {
	storage Storage
	authn   Authenticator
	now     func() time.Time

	mu       sync.Mutex
	current  *Session
	onLogout []func()
}

func NewManager(storage Storage, authn Authenticator) *Manager {
	return &Manager{storage: storage, authn: authn, now: time.Now}
}

func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// OnLogout registers fn to run after every logout, including forced ones.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

// Restore loads a previously stored credential. Absent, malformed and expired
// blobs yield no session; the last two are deleted from storage.
func (m *Manager) Restore(ctx context.Context) (Session, bool) {
	raw, ok, err := m.storage.Get(ctx, StorageKey)
	if err != nil {
		log.WithError(err).Warn("session: read stored credential")
		return Session{}, false
	}
	if !ok {
		return Session{}, false
	}

	var blob storedBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		m.discard(ctx, "malformed blob")
		return Session{}, false
	}
	claims, err := auth.DecodeAt(blob.Token, m.clock())
	if err != nil {
		reason := "malformed credential"
		if errors.Is(err, auth.ErrExpiredToken) {
			reason = "expired credential"
		}
		m.discard(ctx, reason)
		return Session{}, false
	}

	sess := newSession(blob.Token, claims, blob.Username)
	m.mu.Lock()
	m.current = &sess
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"user":        sess.Username,
		"role":        sess.Role,
		"fingerprint": auth.Fingerprint(sess.Token),
	}).Info("session: restored")
	return sess, true
}

// Login delegates to the authenticator and stores the resulting credential.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, apperr.Validation("MISSING_CREDENTIALS", "username and password are required")
	}

	token, err := m.authn.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthentication) {
			return Session{}, err
		}
		reason := "login failed"
		if de, ok := apperr.As(err); ok && de.Message != "" {
			reason = de.Message
		}
		return Session{}, apperr.Wrap(apperr.ErrAuthentication, "LOGIN_FAILED", reason, err)
	}

	now := m.clock()
	claims, err := auth.DecodeAt(token, now)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.ErrAuthentication, "BAD_CREDENTIAL", "the server returned an unusable credential", err)
	}

	sess := newSession(token, claims, username)
	payload, err := json.Marshal(storedBlob{Token: token, Username: sess.Username})
	if err != nil {
		return Session{}, apperr.Wrap(apperr.ErrAuthentication, "SESSION_STORAGE", "could not keep the session", err)
	}
	if err := m.storage.Set(ctx, StorageKey, string(payload), sess.ExpiresAt.Sub(now)); err != nil {
		return Session{}, apperr.Wrap(apperr.ErrAuthentication, "SESSION_STORAGE", "could not keep the session", err)
	}

	m.mu.Lock()
	m.current = &sess
	m.mu.Unlock()

	log.WithFields(log.Fields{
		"user":        sess.Username,
		"role":        sess.Role,
		"fingerprint": auth.Fingerprint(token),
	}).Info("session: logged in")
	return sess, nil
}

// Logout clears the stored credential and notifies dependents. It is safe to
// call without a session.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	hadSession := m.current != nil
	m.current = nil
	listeners := append([]func(){}, m.onLogout...)
	m.mu.Unlock()

	if err := m.storage.Delete(ctx, StorageKey); err != nil {
		log.WithError(err).Warn("session: delete stored credential")
	}
	if hadSession {
		log.Info("session: logged out")
	}
	for _, fn := range listeners {
		fn()
	}
}

// Current returns the live session. Detecting expiry here logs the user out.
func (m *Manager) Current(ctx context.Context) (Session, bool) {
	m.mu.Lock()
	cur := m.current
	now := m.now()
	m.mu.Unlock()

	if cur == nil {
		return Session{}, false
	}
	if !cur.Valid(now) {
		log.WithField("user", cur.Username).Info("session: expired")
		m.Logout(ctx)
		return Session{}, false
	}
	return *cur, true
}

// Token is the bearer credential for outgoing calls, empty without a session.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || !m.current.Valid(m.now()) {
		return ""
	}
	return m.current.Token
}

func (m *Manager) clock() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now()
}

func (m *Manager) discard(ctx context.Context, reason string) {
	log.WithField("reason", reason).Info("session: discarding stored credential")
	if err := m.storage.Delete(ctx, StorageKey); err != nil {
		log.WithError(err).Warn("session: delete stored credential")
	}
}

func newSession(token string, claims auth.Claims, fallbackUsername string) Session {
	username := claims.Username
	if username == "" {
		username = fallbackUsername
	}
	return Session{
		Token:     token,
		UserID:    claims.Subject,
		Username:  username,
		Role:      rbac.Normalize(claims.Role),
		ExpiresAt: claims.Expiry(),
	}
}
