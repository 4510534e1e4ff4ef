package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/stream"
	"github.com/wolfeidau/docsign/internal/telemetry"
	"github.com/wolfeidau/docsign/internal/validation"
	"golang.org/x/oauth2"
)

const (
	defaultLoginMessage   = "Login failed"
	defaultRefreshMessage = "Session expired. Please log in again."
)

// Authenticator performs the credential exchanges against the backend.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, error)
}

// Manager owns the access and refresh tokens and the current user.
//
// Invariant: an access token is held if and only if LoggedIn is true, and a
// current user is only held alongside an access token.
type Manager struct {
	store Store
	auth  Authenticator

	mu      sync.RWMutex
	session *Session

	loggedIn    *stream.Value[bool]
	currentUser *stream.Value[*models.User]

	hooksMu  sync.Mutex
	hooks    map[int]func()
	nextHook int
}

// NewManager restores any persisted session from store.
func NewManager(store Store, auth Authenticator) (*Manager, error) {
	sess, err := store.Load()
	if err != nil && !errors.Is(err, ErrNoSession) {
		return nil, err
	}

	if sess.AccessToken() == "" {
		// A user without an access token is stale; drop it but keep the
		// refresh token so the next 401 can still recover.
		if sess != nil {
			sess.User = nil
		}
	}

	m := &Manager{
		store:       store,
		auth:        auth,
		session:     sess,
		loggedIn:    stream.NewValue(sess.AccessToken() != ""),
		currentUser: stream.NewValue(currentUserOf(sess)),
		hooks:       make(map[int]func()),
	}

	log.Debug().Bool("loggedIn", m.loggedIn.Get()).Msg("session manager initialized")

	return m, nil
}

// LoggedIn streams the login state. Subscribers receive the current value
// immediately.
func (m *Manager) LoggedIn() *stream.Value[bool] {
	return m.loggedIn
}

// CurrentUser streams the logged in user, nil when logged out.
func (m *Manager) CurrentUser() *stream.Value[*models.User] {
	return m.currentUser
}

// CurrentUserRole returns the role of the current user, or "" when logged out.
func (m *Manager) CurrentUserRole() models.Role {
	user := m.currentUser.Get()
	if user == nil {
		return ""
	}
	return user.Role
}

// AccessToken returns the current access token.
func (m *Manager) AccessToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tok := m.session.AccessToken()
	return tok, tok != ""
}

// Token returns a copy of the current token, or nil when logged out. Its
// Expiry is taken from the access token's exp claim when present.
func (m *Manager) Token() *oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session.AccessToken() == "" {
		return nil
	}
	tok := *m.session.Token
	return &tok
}

// RefreshTokenValue returns the current refresh token.
func (m *Manager) RefreshTokenValue() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tok := m.session.RefreshToken()
	return tok, tok != ""
}

// OnLogout registers fn to run after every logout. The returned func
// unregisters it.
func (m *Manager) OnLogout(fn func()) func() {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()

	id := m.nextHook
	m.nextHook++
	m.hooks[id] = fn

	return func() {
		m.hooksMu.Lock()
		defer m.hooksMu.Unlock()
		delete(m.hooks, id)
	}
}

// Login exchanges creds for a session and persists it. On failure any
// stored tokens are cleared and an apierr.ErrAuthentication is returned.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	if err := validation.Struct(&creds); err != nil {
		return nil, err
	}

	telemetry.GetMetrics().LoginTotal.Add(ctx, 1)

	resp, err := m.auth.Login(ctx, creds)
	if err != nil {
		log.Error().Err(err).Str("email", creds.Email).Msg("login failed")
		m.clear()
		return nil, apierr.Wrap(apierr.ErrAuthentication, backendMessage(err, defaultLoginMessage), err)
	}

	if resp.AccessToken == "" {
		m.clear()
		return nil, apierr.New(apierr.ErrAuthentication, defaultLoginMessage)
	}

	user := resp.User
	sess := &Session{
		Token: newToken(resp.AccessToken, resp.RefreshToken),
		User:  &user,
	}

	m.mu.Lock()
	m.session = sess
	if err := m.store.Save(sess); err != nil {
		log.Error().Err(err).Msg("failed to persist session")
	}
	m.publishLocked()
	m.mu.Unlock()

	log.Info().Int64("userID", user.ID).Str("role", string(user.Role)).Msg("logged in")

	return &user, nil
}

// RefreshToken exchanges the stored refresh token for a new access token.
// Only the access token is replaced. A missing refresh token or a rejected
// exchange logs out before returning apierr.ErrAuthentication.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	refreshToken, ok := m.RefreshTokenValue()
	if !ok {
		m.Logout()
		return "", apierr.New(apierr.ErrAuthentication, "refresh token not found")
	}

	metrics := telemetry.GetMetrics()
	metrics.RefreshTotal.Add(ctx, 1)

	resp, err := m.auth.Refresh(ctx, refreshToken)
	if err == nil && resp.AccessToken == "" {
		err = apierr.New(apierr.ErrAuthentication, "empty access token in refresh response")
	}
	if err != nil {
		metrics.RefreshErrorsTotal.Add(ctx, 1)
		log.Warn().Err(err).Msg("token refresh failed, logging out")
		m.Logout()
		return "", apierr.Wrap(apierr.ErrAuthentication, backendMessage(err, defaultRefreshMessage), err)
	}

	m.mu.Lock()
	if m.session.RefreshToken() != refreshToken {
		// Logged out (or logged in again) while the exchange was in flight.
		m.mu.Unlock()
		return "", apierr.New(apierr.ErrAuthentication, defaultRefreshMessage)
	}
	sess := m.session.clone()
	sess.Token = newToken(resp.AccessToken, refreshToken)
	m.session = sess
	if err := m.store.Save(sess); err != nil {
		log.Error().Err(err).Msg("failed to persist refreshed token")
	}
	m.publishLocked()
	m.mu.Unlock()

	log.Debug().Msg("access token refreshed")

	return resp.AccessToken, nil
}

// Logout clears every session field and notifies logout hooks. It never
// fails; storage errors are logged.
func (m *Manager) Logout() {
	m.clear()

	m.hooksMu.Lock()
	hooks := make([]func(), 0, len(m.hooks))
	for _, fn := range m.hooks {
		hooks = append(hooks, fn)
	}
	m.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	log.Info().Msg("logged out")
}

func (m *Manager) clear() {
	m.mu.Lock()
	m.session = nil
	if err := m.store.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear session")
	}
	m.publishLocked()
	m.mu.Unlock()
}

// publishLocked derives the streams from m.session. Callers hold m.mu so
// the streams always match the stored token.
func (m *Manager) publishLocked() {
	m.loggedIn.Set(m.session.AccessToken() != "")
	m.currentUser.Set(currentUserOf(m.session))
}

func newToken(access, refresh string) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
	if exp, ok := TokenExpiry(access); ok {
		tok.Expiry = exp
	}
	return tok
}

func currentUserOf(s *Session) *models.User {
	if s == nil || s.AccessToken() == "" {
		return nil
	}
	return s.User
}

func backendMessage(err error, fallback string) string {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" && !errors.Is(err, apierr.ErrNetwork) {
		return apiErr.Message
	}
	return fallback
}
