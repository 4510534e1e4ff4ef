package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/docsign/internal/telemetry"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	refreshKey = "refresh"

	// DefaultRefreshTimeout bounds a single refresh exchange.
	DefaultRefreshTimeout = 30 * time.Second
)

// TokenSource is the session the interceptor authenticates with.
// *session.Manager satisfies it.
type TokenSource interface {
	AccessToken() (string, bool)
	// Token returns the current token with its expiry, or nil when logged out.
	Token() *oauth2.Token
	// RefreshToken mints a new access token. It must log out on failure.
	RefreshToken(ctx context.Context) (string, error)
	Logout()
}

// Refresher ensures at most one refresh runs at a time. Callers that arrive
// while one is in flight wait for its result instead of starting another.
type Refresher struct {
	source  TokenSource
	timeout time.Duration
	group   singleflight.Group
}

// NewRefresher creates a refresher for source. A zero timeout uses
// DefaultRefreshTimeout.
func NewRefresher(source TokenSource, timeout time.Duration) *Refresher {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &Refresher{source: source, timeout: timeout}
}

// Do returns the token produced by the in-flight refresh, starting one if
// none is running. stale is the token the caller was rejected with; if the
// source already holds a different one no exchange is made. The refresh is
// detached from ctx and ctx only bounds how long this caller waits.
func (r *Refresher) Do(ctx context.Context, stale string) (string, error) {
	ch := r.group.DoChan(refreshKey, func() (any, error) {
		if current, ok := r.source.AccessToken(); ok && current != stale {
			return current, nil
		}

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		log.Debug().Msg("refreshing access token")
		return r.source.RefreshToken(refreshCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			telemetry.GetMetrics().RefreshWaitersTotal.Add(ctx, 1)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
