// Package realtime receives server pushed events over a WebSocket.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/telemetry"
)

const (
	// DefaultPath is the WebSocket endpoint on the server.
	DefaultPath = "/ws"

	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultReadTimeout      = 60 * time.Second
	writeTimeout            = 10 * time.Second
)

// TokenSource provides the access token used to authenticate the dial.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Refresher obtains a new access token after the server rejected stale.
// *auth.Refresher satisfies it, so realtime shares the HTTP refresh flight.
type Refresher interface {
	Do(ctx context.Context, stale string) (string, error)
}

// Event is one decoded server message. Exactly one of Notification and
// Document is set for known event names.
type Event struct {
	Name         string
	Notification *models.Notification
	Document     *models.DocumentEvent
	Data         json.RawMessage
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Options tunes a Client. Zero values use defaults.
type Options struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

// Client maintains a WebSocket connection and reconnects with exponential
// backoff until its context ends.
type Client struct {
	url       *url.URL
	tokens    TokenSource
	refresher Refresher
	dialer    *websocket.Dialer
	opts      Options
}

// New creates a client for serverURL joined with path. refresher may be nil,
// in which case a rejected handshake ends Run.
func New(serverURL, path string, tokens TokenSource, refresher Refresher, opts Options) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	if path == "" {
		path = DefaultPath
	}
	u = u.JoinPath(path)

	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 32 * time.Second
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	return &Client{
		url:       u,
		tokens:    tokens,
		refresher: refresher,
		dialer:    dialer,
		opts:      opts,
	}, nil
}

// Run connects and calls handle for every event until ctx is done or the
// session can no longer authenticate. It returns ctx.Err() on cancellation
// and an apierr.ErrAuthentication error when logged out.
func (c *Client) Run(ctx context.Context, handle func(Event)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialBackoff
	bo.MaxInterval = c.opts.MaxBackoff

	metrics := telemetry.GetMetrics()
	refreshed := false

	for {
		token, ok := c.tokens.AccessToken()
		if !ok {
			return apierr.New(apierr.ErrAuthentication, "not logged in")
		}

		conn, err := c.dial(ctx, token)
		switch {
		case err == nil:
			refreshed = false
			bo.Reset()
			err = c.serve(ctx, conn, handle)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug().Err(err).Msg("realtime connection lost")
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, apierr.ErrAuthentication):
			if c.refresher == nil || refreshed {
				return err
			}
			refreshed = true
			if _, err := c.refresher.Do(ctx, token); err != nil {
				return err
			}
			// Redial straight away with the new token.
			continue
		default:
			log.Debug().Err(err).Msg("realtime dial failed")
		}

		wait := bo.NextBackOff()
		metrics.RealtimeReconnectsTotal.Add(ctx, 1)
		log.Debug().Dur("wait", wait).Msg("realtime reconnecting")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Events runs the client in a goroutine and delivers events on the returned
// channel, which is closed when Run returns. The error, if any, is sent on
// errc.
func (c *Client) Events(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		errc <- c.Run(ctx, func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})
		close(errc)
	}()

	return events, errc
}

func (c *Client) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	u := *c.url
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized {
				return nil, apierr.Wrap(apierr.ErrAuthentication, "realtime handshake rejected", err)
			}
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	log.Debug().Str("url", c.url.String()).Msg("realtime connected")

	return conn, nil
}

// serve reads from conn until it fails or ctx ends, keeping it alive with
// pings.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, handle func(Event)) error {
	var (
		wg   sync.WaitGroup
		done = make(chan struct{})
	)
	defer func() {
		close(done)
		wg.Wait()
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					log.Debug().Err(err).Msg("realtime ping failed")
					_ = conn.Close()
					return
				}
			case <-ctx.Done():
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
				_ = conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))

		ev, err := decode(data)
		if err != nil {
			log.Warn().Err(err).Msg("ignoring malformed realtime message")
			continue
		}

		telemetry.GetMetrics().RealtimeEventsTotal.Add(ctx, 1)
		handle(ev)
	}
}

func decode(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	if f.Event == "" {
		return Event{}, errors.New("frame has no event name")
	}

	ev := Event{Name: f.Event, Data: f.Data}
	switch f.Event {
	case models.EventNotification:
		var n models.Notification
		if err := json.Unmarshal(f.Data, &n); err != nil {
			return Event{}, fmt.Errorf("failed to decode notification: %w", err)
		}
		ev.Notification = &n
	case models.EventDocumentUpdate:
		var d models.DocumentEvent
		if err := json.Unmarshal(f.Data, &d); err != nil {
			return Event{}, fmt.Errorf("failed to decode document update: %w", err)
		}
		ev.Document = &d
	}

	return ev, nil
}
