package client

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/docsign/internal/api"
	"github.com/wolfeidau/docsign/internal/auth"
	"github.com/wolfeidau/docsign/internal/config"
	"github.com/wolfeidau/docsign/internal/logger"
	"github.com/wolfeidau/docsign/internal/realtime"
	"github.com/wolfeidau/docsign/internal/session"
	"github.com/wolfeidau/docsign/internal/signing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Clients holds the session and every service, sharing one authenticated
// HTTP client.
type Clients struct {
	Session   *session.Manager
	Auth      *api.AuthClient
	Documents *api.Documents
	AuditLogs *api.AuditLogs
	Users     *api.Users
	Sectors   *api.Sectors
	Realtime  *realtime.Client

	// HTTPClient carries the bearer token and refreshes it on 401.
	HTTPClient *http.Client
}

// NewClients wires the services for cfg. The session is restored from store.
func NewClients(cfg config.Config, store session.Store) (*Clients, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := NewCachingTransport(cfg.CacheDir,
		otelhttp.NewTransport(logger.NewRoundTripper(log.Logger, http.DefaultTransport)))

	// Login and refresh go out without the auth transport so a rejected
	// refresh is never itself refreshed.
	authAPI, err := api.New(&http.Client{Transport: base, Timeout: cfg.Timeout}, cfg.ServerURL, cfg.APIBasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}
	authClient := api.NewAuthClient(authAPI)

	manager, err := session.NewManager(store, authClient)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	refresher := auth.NewRefresher(manager, cfg.Timeout)
	httpClient := &http.Client{
		Transport: auth.NewTransportWithRefresher(base, manager, refresher),
		Timeout:   cfg.Timeout,
	}

	apiClient, err := api.New(httpClient, cfg.ServerURL, cfg.APIBasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	rt, err := realtime.New(cfg.ServerURL, cfg.RealtimePath, manager, refresher, realtime.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to create realtime client: %w", err)
	}

	return &Clients{
		Session:    manager,
		Auth:       authClient,
		Documents:  api.NewDocuments(apiClient),
		AuditLogs:  api.NewAuditLogs(apiClient),
		Users:      api.NewUsers(apiClient),
		Sectors:    api.NewSectors(apiClient),
		Realtime:   rt,
		HTTPClient: httpClient,
	}, nil
}

// NewViewer opens a signing session that follows the logged in user.
func (c *Clients) NewViewer() *signing.Viewer {
	v := signing.NewViewer(c.Documents)
	v.Watch(c.Session)
	return v
}
