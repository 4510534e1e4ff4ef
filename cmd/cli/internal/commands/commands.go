package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/client"
	"github.com/wolfeidau/docsign/internal/config"
	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/session"
)

const timeFormat = "2006-01-02 15:04:05"

type Globals struct {
	Debug      bool
	Version    string
	Server     string
	Config     string
	SessionDir string
	Telemetry  bool

	Stdout io.Writer
	Stdin  io.Reader
}

func (g *Globals) out() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Globals) in() io.Reader {
	if g.Stdin == nil {
		return os.Stdin
	}
	return g.Stdin
}

// LoadConfig reads the config file and applies flag overrides.
func (g *Globals) LoadConfig() (config.Config, error) {
	path := g.Config
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if g.Server != "" {
		cfg.ServerURL = g.Server
	}
	if g.SessionDir != "" {
		cfg.SessionDir = g.SessionDir
	}
	if g.Telemetry {
		cfg.Telemetry.Enabled = true
	}

	return cfg, cfg.Validate()
}

func (g *Globals) clients() (*client.Clients, error) {
	cfg, err := g.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := session.NewFileStore(cfg.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	return client.NewClients(cfg, store)
}

// loggedInClients returns clients for a command that needs a session. A
// session with only a refresh token is accepted; the first request
// refreshes it.
func (g *Globals) loggedInClients() (*client.Clients, error) {
	clients, err := g.clients()
	if err != nil {
		return nil, err
	}

	_, hasAccess := clients.Session.AccessToken()
	_, hasRefresh := clients.Session.RefreshTokenValue()
	if !hasAccess && !hasRefresh {
		return nil, apierr.New(apierr.ErrAuthentication, "Not logged in. Run 'docsign login' first.")
	}

	return clients, nil
}

// requireAdmin rejects non-admin users before any request is made. When
// only a refresh token was restored the role is unknown and the server
// decides.
func requireAdmin(clients *client.Clients) error {
	if clients.Session.CurrentUser().Get() == nil {
		return nil
	}
	if clients.Session.CurrentUserRole() != models.RoleAdmin {
		return apierr.New(apierr.ErrForbidden, "This command requires the admin role.")
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeFormat)
}

// IsAuthError reports whether err means the user must log in again.
func IsAuthError(err error) bool {
	return errors.Is(err, apierr.ErrAuthentication)
}
