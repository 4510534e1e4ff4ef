package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/config"
	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/session"
)

// backend issues access tokens a1, a2, ... and only accepts the latest.
type backend struct {
	mu            sync.Mutex
	access        string
	issued        int
	refreshes     atomic.Int32
	rejectRefresh bool
}

func (b *backend) rotate() string {
	b.issued++
	b.access = "a" + string(rune('0'+b.issued))
	return b.access
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		tok := b.rotate()
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"access_token":"` + tok + `","refresh_token":"r1","user":{"id":7,"name":"Ana","email":"ana@example.com","role":"user"}}`))
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshes.Add(1)
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.rejectRefresh {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid refresh token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"` + b.rotate() + `"}`))
	})
	mux.HandleFunc("GET /api/documents", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		ok := r.Header.Get("Authorization") == "Bearer "+b.access
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"originalFilename":"a.pdf","status":"SIGNING","ownerId":7,"signatories":[]}]`))
	})
	return mux
}

func newTestClients(t *testing.T, b *backend) *Clients {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.ServerURL = srv.URL
	cfg.Timeout = 5 * time.Second

	clients, err := NewClients(cfg, session.NewMemoryStore())
	require.NoError(t, err)
	return clients
}

func TestClients_LoginAndRefresh(t *testing.T) {
	b := &backend{}
	clients := newTestClients(t, b)
	ctx := context.Background()

	user, err := clients.Session.Login(ctx, models.Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)

	docs, err := clients.Documents.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// The server expires the token; concurrent calls share one refresh.
	b.mu.Lock()
	b.rotate()
	b.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := clients.Documents.List(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), b.refreshes.Load())
	assert.True(t, clients.Session.LoggedIn().Get())
}

func TestClients_RefreshFailureLogsOut(t *testing.T) {
	b := &backend{rejectRefresh: true}
	clients := newTestClients(t, b)
	ctx := context.Background()

	_, err := clients.Session.Login(ctx, models.Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	var logouts atomic.Int32
	clients.Session.OnLogout(func() { logouts.Add(1) })

	b.mu.Lock()
	b.rotate()
	b.mu.Unlock()

	_, err = clients.Documents.List(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrAuthentication)
	assert.Equal(t, int32(1), logouts.Load())
	assert.False(t, clients.Session.LoggedIn().Get())
	assert.Nil(t, clients.Session.CurrentUser().Get())
}

func TestClients_NewViewerFollowsSession(t *testing.T) {
	b := &backend{}
	clients := newTestClients(t, b)

	v := clients.NewViewer()
	defer v.Close()
	assert.Nil(t, v.State().CurrentUser)

	_, err := clients.Session.Login(context.Background(), models.Credentials{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		u := v.State().CurrentUser
		return u != nil && u.ID == 7
	}, time.Second, 5*time.Millisecond)
}

func TestNewClients_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ServerURL = "not a url"
	_, err := NewClients(cfg, session.NewMemoryStore())
	assert.Error(t, err)
}
