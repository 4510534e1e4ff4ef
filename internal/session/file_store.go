package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/docsign/internal/models"
	"golang.org/x/oauth2"
)

const sessionFile = "session.json"

// record is the on-disk layout. The three keys are fixed so other tools can
// read the session.
type record struct {
	Version      int          `json:"version"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	Expiry       time.Time    `json:"expiry,omitempty"`
	CurrentUser  *models.User `json:"current_user,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// FileStore persists the session as a JSON file readable only by the
// current user.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file backed store.
// If baseDir is empty, uses ~/.docsign/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".docsign")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("session store initialized")

	return &FileStore{baseDir: baseDir}, nil
}

// Path returns the session file location.
func (f *FileStore) Path() string {
	return filepath.Join(f.baseDir, sessionFile)
}

func (f *FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	if rec.AccessToken == "" && rec.RefreshToken == "" {
		return nil, ErrNoSession
	}

	return &Session{
		Token: &oauth2.Token{
			AccessToken:  rec.AccessToken,
			RefreshToken: rec.RefreshToken,
			TokenType:    "Bearer",
			Expiry:       rec.Expiry,
		},
		User: rec.CurrentUser,
	}, nil
}

// Save writes the session atomically.
func (f *FileStore) Save(s *Session) error {
	rec := record{
		Version:      1,
		AccessToken:  s.AccessToken(),
		RefreshToken: s.RefreshToken(),
		CurrentUser:  s.User,
		UpdatedAt:    time.Now().UTC(),
	}
	if s.Token != nil {
		rec.Expiry = s.Token.Expiry
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := f.Path()
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Clear removes the session file, dropping every field in one step.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
