package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// anonymousSubject keys per-session state when the token carries no subject.
const anonymousSubject = "default"

// Snapshot is a read-only view of the session.
type Snapshot struct {
	LoggedIn  bool       `json:"logged_in"`
	Subject   string     `json:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	LoginPath string     `json:"login_path"`
}

// State holds the bearer token handed over by the external login flow. Login
// and Logout are the only writers.
type State struct {
	mu        sync.RWMutex
	token     string
	info      auth.TokenInfo
	leeway    time.Duration
	loginPath string
	now       func() time.Time
}

// New returns a logged-out session.
func New(leeway time.Duration, loginPath string) *State {
	if strings.TrimSpace(loginPath) == "" {
		loginPath = "/login"
	}
	return &State{leeway: leeway, loginPath: loginPath, now: time.Now}
}

// Login installs token as the current bearer token.
func (s *State) Login(token string) (Snapshot, error) {
	token = strings.TrimSpace(token)
	info, err := auth.InspectToken(token, s.now(), s.leeway)
	switch {
	case errors.Is(err, auth.ErrTokenRequired):
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	case errors.Is(err, auth.ErrTokenExpired):
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token has expired").
			WithDetails(map[string]string{"redirect": s.loginPath})
	case err != nil:
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token rejected")
	}

	s.mu.Lock()
	s.token = token
	s.info = info
	s.mu.Unlock()
	return s.Snapshot(), nil
}

// Logout forgets the current token.
func (s *State) Logout() {
	s.mu.Lock()
	s.token = ""
	s.info = auth.TokenInfo{}
	s.mu.Unlock()
}

// Token returns the bearer token, or "" when logged out or expired.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.info.Expired(s.now(), s.leeway) {
		return ""
	}
	return s.token
}

// Subject identifies the logged-in account for keying per-session state.
func (s *State) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info.Subject == "" {
		return anonymousSubject
	}
	return s.info.Subject
}

// LoginPath is where callers should redirect when no token is present.
func (s *State) LoginPath() string {
	return s.loginPath
}

// RequireToken returns the bearer token or an unauthorized error carrying the
// login redirect.
func (s *State) RequireToken() (string, error) {
	token := s.Token()
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "login required").
			WithDetails(map[string]string{"redirect": s.loginPath})
	}
	return token, nil
}

func (s *State) Snapshot() Snapshot {
	token := s.Token()
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{LoggedIn: token != "", LoginPath: s.loginPath}
	if !snap.LoggedIn {
		return snap
	}
	snap.Subject = s.info.Subject
	if !s.info.ExpiresAt.IsZero() {
		exp := s.info.ExpiresAt
		snap.ExpiresAt = &exp
	}
	return snap
}
