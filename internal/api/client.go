package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/docsign/internal/apierr"
)

// DefaultBasePath is the path prefix of the REST API on the server.
const DefaultBasePath = "/api"

// Client issues JSON requests against the REST API. Authentication is the
// responsibility of the http.Client's transport.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// New creates a client rooted at serverURL joined with basePath.
func New(httpClient *http.Client, serverURL, basePath string) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server URL must be absolute: %q", serverURL)
	}

	u = u.JoinPath(basePath)
	u.Path = strings.TrimSuffix(u.Path, "/")

	return &Client{httpClient: httpClient, baseURL: u}, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// doJSON sends in (if non-nil) as JSON and decodes the response into out
// (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		// bytes.Reader lets the request be replayed after a token refresh.
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.Wrap(apierr.ErrServer, "invalid response from server", err)
	}

	return nil
}

// do executes req and maps transport failures and non-2xx statuses to
// apierr errors. On success the caller owns the body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("request failed")
		return nil, apierr.FromTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := apierr.FromResponse(resp)
		log.Debug().Int("status", resp.StatusCode).Str("method", req.Method).Str("url", req.URL.String()).Str("message", apiErr.Message).Msg("request rejected")
		return nil, apiErr
	}

	return resp, nil
}

func idPath(resource string, id int64, rest ...string) string {
	parts := append([]string{resource, fmt.Sprint(id)}, rest...)
	return strings.Join(parts, "/")
}
