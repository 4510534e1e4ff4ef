package session

import (
	"errors"
	"sync"

	"github.com/wolfeidau/docsign/internal/models"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned by Store.Load when nothing has been persisted.
var ErrNoSession = errors.New("no session stored")

// Session is the persisted login state.
type Session struct {
	Token *oauth2.Token
	User  *models.User
}

// AccessToken returns the access token or "".
func (s *Session) AccessToken() string {
	if s == nil || s.Token == nil {
		return ""
	}
	return s.Token.AccessToken
}

// RefreshToken returns the refresh token or "".
func (s *Session) RefreshToken() string {
	if s == nil || s.Token == nil {
		return ""
	}
	return s.Token.RefreshToken
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := &Session{}
	if s.Token != nil {
		tok := *s.Token
		c.Token = &tok
	}
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	return c
}

// Store persists a session. Implementations must make Clear remove every
// field at once.
type Store interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// MemoryStore keeps the session in memory. Data is lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil, ErrNoSession
	}
	return m.session.clone(), nil
}

func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = s.clone()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	return nil
}
