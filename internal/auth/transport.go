package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/telemetry"
)

const (
	// RequestIDHeader correlates client and server logs.
	RequestIDHeader = "X-Request-ID"

	loginPath   = "/auth/login"
	refreshPath = "/auth/refresh"
)

var _ http.RoundTripper = (*Transport)(nil)

// Transport adds bearer credentials to every request and recovers from an
// expired access token by refreshing it once and re-issuing the request.
// Concurrent 401s share a single refresh.
type Transport struct {
	base      http.RoundTripper
	source    TokenSource
	refresher *Refresher
}

// NewTransport wraps base. If base is nil, http.DefaultTransport is used.
func NewTransport(base http.RoundTripper, source TokenSource) *Transport {
	return NewTransportWithRefresher(base, source, NewRefresher(source, 0))
}

// NewTransportWithRefresher is NewTransport with an explicit refresher, so
// several transports can share one.
func NewTransportWithRefresher(base http.RoundTripper, source TokenSource, refresher *Refresher) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:      base,
		source:    source,
		refresher: refresher,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	sentToken, err := t.token(req)
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	resp, err := t.base.RoundTrip(authorize(req, sentToken))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if isAuthEndpoint(req) {
		// A 401 from login or refresh is final; recovering would loop.
		log.Debug().Str("path", req.URL.Path).Msg("unauthorized on auth endpoint, logging out")
		t.source.Logout()
		return resp, nil
	}

	if !replayable(req) {
		log.Debug().Str("path", req.URL.Path).Msg("unauthorized request body cannot be replayed")
		return resp, nil
	}

	token, err := t.recover(req, sentToken)
	if err != nil {
		drain(resp)
		return nil, err
	}

	retry, err := rewind(req)
	if err != nil {
		drain(resp)
		return nil, err
	}
	drain(resp)

	telemetry.GetMetrics().RetriesTotal.Add(req.Context(), 1)
	log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("retrying request with refreshed token")

	return t.base.RoundTrip(authorize(retry, token))
}

// token returns the access token to send. A token already past its expiry
// is refreshed first instead of spending a request on a certain 401.
func (t *Transport) token(req *http.Request) (string, error) {
	tok := t.source.Token()
	if tok == nil || tok.AccessToken == "" {
		return "", nil
	}
	if tok.Valid() || isAuthEndpoint(req) {
		return tok.AccessToken, nil
	}

	log.Debug().Time("expiry", tok.Expiry).Str("path", req.URL.Path).Msg("access token expired, refreshing before send")
	return t.refresher.Do(req.Context(), tok.AccessToken)
}

// recover returns a token to retry with. If another request already
// refreshed since this one was sent, the newer token is reused. If the
// session ended since then, no new refresh is attempted.
func (t *Transport) recover(req *http.Request, sentToken string) (string, error) {
	current, ok := t.source.AccessToken()
	switch {
	case ok && current != sentToken:
		return current, nil
	case !ok && sentToken != "":
		return "", apierr.New(apierr.ErrAuthentication, "Session expired. Please log in again.")
	}
	return t.refresher.Do(req.Context(), sentToken)
}

// authorize returns a copy of req carrying token and a request id.
func authorize(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	} else {
		r.Header.Del("Authorization")
	}
	if r.Header.Get(RequestIDHeader) == "" {
		r.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return r
}

func isAuthEndpoint(req *http.Request) bool {
	path := strings.TrimSuffix(req.URL.Path, "/")
	return strings.HasSuffix(path, loginPath) || strings.HasSuffix(path, refreshPath)
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

// rewind returns a copy of req with a fresh body.
func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}

func drain(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}
