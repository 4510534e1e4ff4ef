package api

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.Client(), srv.URL, DefaultBasePath)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	c, err := New(nil, "https://sign.example.com/", "/api/")
	require.NoError(t, err)
	assert.Equal(t, "https://sign.example.com/api", c.BaseURL().String())
	assert.Equal(t, "https://sign.example.com/api/documents/3/sign", c.endpoint(idPath(documentsPath, 3, "sign"), nil))

	_, err = New(nil, "localhost:3000", "/api")
	assert.Error(t, err)
}

func TestAuthClient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var creds models.Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			if creds.Password != "secret1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","user":{"id":7,"name":"Ana","email":"ana@example.com","role":"admin"}}`))
		case "/api/auth/refresh":
			var req models.RefreshRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "r1", req.RefreshToken)
			_, _ = w.Write([]byte(`{"access_token":"a2"}`))
		default:
			http.NotFound(w, r)
		}
	})
	auth := NewAuthClient(c)
	ctx := context.Background()

	t.Run("login", func(t *testing.T) {
		resp, err := auth.Login(ctx, models.Credentials{Email: "ana@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, "a1", resp.AccessToken)
		assert.Equal(t, "r1", resp.RefreshToken)
		assert.Equal(t, models.RoleAdmin, resp.User.Role)
	})

	t.Run("login rejected", func(t *testing.T) {
		_, err := auth.Login(ctx, models.Credentials{Email: "ana@example.com", Password: "wrong12"})
		require.Error(t, err)
		assert.ErrorIs(t, err, apierr.ErrAuthentication)
		assert.Equal(t, "Invalid credentials", apierr.UserMessage(err))
	})

	t.Run("refresh", func(t *testing.T) {
		resp, err := auth.Refresh(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "a2", resp.AccessToken)
	})
}

func TestDocuments_GetAndList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/api/documents":
			_, _ = w.Write([]byte(`[{"id":1,"originalFilename":"a.pdf","status":"DRAFT","ownerId":2,"signatories":[]}]`))
		case "/api/documents/5":
			_, _ = w.Write([]byte(`{"id":5,"originalFilename":"b.pdf","status":"SIGNING","ownerId":2,
				"signatories":[{"id":10,"userId":7,"order":1,"status":"PENDING"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Document not found"}`))
		}
	})
	docs := NewDocuments(c)
	ctx := context.Background()

	list, err := docs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a.pdf", list[0].OriginalFilename)

	doc, err := docs.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusSigning, doc.Status)
	require.Len(t, doc.Signatories, 1)
	assert.Equal(t, int64(7), doc.Signatories[0].UserID)

	_, err = docs.Get(ctx, 99)
	assert.ErrorIs(t, err, apierr.ErrNotFound)
}

func TestDocuments_DropsNullEntries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/documents":
			_, _ = w.Write([]byte(`[null,{"id":1,"status":"SIGNING","signatories":[null,{"userId":7,"order":1,"status":"PENDING"}]}]`))
		default:
			_, _ = w.Write([]byte(`{"id":5,"status":"SIGNING","signatories":[null,{"userId":7,"order":1,"status":"PENDING"}]}`))
		}
	})
	docs := NewDocuments(c)
	ctx := context.Background()

	list, err := docs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Signatories, 1)
	assert.Equal(t, int64(7), list[0].Signatories[0].UserID)

	doc, err := docs.Get(ctx, 5)
	require.NoError(t, err)
	require.Len(t, doc.Signatories, 1)
	assert.Equal(t, int64(7), doc.Signatories[0].UserID)
}

func TestDocuments_Upload(t *testing.T) {
	var gotMeta models.UploadMetadata
	var gotFile []byte
	var gotName string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/documents/upload", r.URL.Path)
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mediaType)

		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			data, _ := io.ReadAll(part)
			switch part.FormName() {
			case "file":
				gotName = part.FileName()
				gotFile = data
			case "metadata":
				require.NoError(t, json.Unmarshal(data, &gotMeta))
			}
		}
		_, _ = w.Write([]byte(`{"id":9,"originalFilename":"contract.pdf","status":"SIGNING","ownerId":1,"signatories":[]}`))
	})
	docs := NewDocuments(c)
	ctx := context.Background()

	meta := models.UploadMetadata{
		Title:       "Contract",
		Signatories: []models.SignatoryInput{{UserID: 7, Order: 1}, {UserID: 9, Order: 2}},
	}

	t.Run("sends file and metadata", func(t *testing.T) {
		doc, err := docs.Upload(ctx, "/tmp/contract.pdf", strings.NewReader("%PDF-1.7 body"), meta)
		require.NoError(t, err)
		assert.Equal(t, int64(9), doc.ID)
		assert.Equal(t, "contract.pdf", gotName)
		assert.Equal(t, "%PDF-1.7 body", string(gotFile))
		assert.Equal(t, meta, gotMeta)
	})

	t.Run("rejects non pdf", func(t *testing.T) {
		_, err := docs.Upload(ctx, "notes.txt", strings.NewReader("hello"), meta)
		assert.ErrorIs(t, err, apierr.ErrValidation)
	})

	t.Run("rejects missing title", func(t *testing.T) {
		_, err := docs.Upload(ctx, "a.pdf", strings.NewReader("%PDF-1.4"), models.UploadMetadata{})
		assert.ErrorIs(t, err, apierr.ErrValidation)
	})
}

func TestDocuments_DownloadAndSign(t *testing.T) {
	var gotSig models.SignatureData
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/documents/5/download":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7"))
		case "/api/documents/5/sign":
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSig))
			_, _ = w.Write([]byte(`{"id":10,"userId":7,"order":2,"status":"SIGNED"}`))
		case "/api/documents/6/sign":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"It is not your turn to sign"}`))
		}
	})
	docs := NewDocuments(c)
	ctx := context.Background()

	pdf, err := docs.Download(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))

	sig := models.SignatureData{UserID: 7, SignatureImage: "aGk=", PositionPage: 1, PositionX: 10, PositionY: 20}
	signatory, err := docs.Sign(ctx, 5, sig)
	require.NoError(t, err)
	assert.Equal(t, models.SignatoryStatusSigned, signatory.Status)
	assert.Equal(t, int64(7), gotSig.UserID)
	assert.Equal(t, 1, gotSig.PositionPage)

	_, err = docs.Sign(ctx, 6, sig)
	assert.ErrorIs(t, err, apierr.ErrConflict)
	assert.Equal(t, "It is not your turn to sign", apierr.UserMessage(err))
}

func TestDocuments_UpdateAndDelete(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodPatch {
			var update map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&update))
			assert.Equal(t, map[string]any{"status": "CANCELLED"}, update)
			_, _ = w.Write([]byte(`{"id":5,"status":"CANCELLED","signatories":[]}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	docs := NewDocuments(c)

	status := models.DocumentStatusCancelled
	doc, err := docs.Update(context.Background(), 5, models.DocumentUpdate{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusCancelled, doc.Status)

	require.NoError(t, docs.Delete(context.Background(), 5))
	assert.Equal(t, []string{http.MethodPatch, http.MethodDelete}, methods)
}

func TestAuditLogs_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/audit-logs", r.URL.Path)
		assert.Equal(t, "Document", r.URL.Query().Get("entityType"))
		assert.Equal(t, "5", r.URL.Query().Get("entityId"))
		_, _ = w.Write([]byte(`[{"id":1,"timestamp":"2024-05-01T10:00:00Z","userId":7,"action":"SIGN","entityType":"Document","entityId":5,"details":{"order":2}}]`))
	})

	logs, err := NewAuditLogs(c).List(context.Background(), models.EntityTypeDocument, 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "SIGN", logs[0].Action)
	assert.JSONEq(t, `{"order":2}`, string(logs[0].Details))
}

func TestUsersAndSectors(t *testing.T) {
	var created map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/users":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			_, _ = w.Write([]byte(`{"id":3,"name":"Bia","email":"bia@example.com","role":"user"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/users":
			_, _ = w.Write([]byte(`[{"id":3,"name":"Bia","email":"bia@example.com","role":"user","sector":{"id":2,"name":"Finance"}}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/sectors":
			_, _ = w.Write([]byte(`{"id":2,"name":"Finance"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/sectors/2":
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	users := NewUsers(c)
	sectors := NewSectors(c)

	t.Run("create user defaults role", func(t *testing.T) {
		user, err := users.Create(ctx, models.UserInput{Name: "Bia", Email: "bia@example.com", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), user.ID)
		assert.Equal(t, "user", created["role"])
		assert.NotContains(t, created, "sectorId")
	})

	t.Run("create user requires password", func(t *testing.T) {
		_, err := users.Create(ctx, models.UserInput{Name: "Bia", Email: "bia@example.com"})
		assert.ErrorIs(t, err, apierr.ErrValidation)
	})

	t.Run("list users", func(t *testing.T) {
		list, err := users.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		id, ok := list[0].EffectiveSectorID()
		assert.True(t, ok)
		assert.Equal(t, int64(2), id)
	})

	t.Run("sector create and forbidden delete", func(t *testing.T) {
		sector, err := sectors.Create(ctx, models.SectorInput{Name: "Finance"})
		require.NoError(t, err)
		assert.Equal(t, "Finance", sector.Name)

		_, err = sectors.Create(ctx, models.SectorInput{})
		assert.ErrorIs(t, err, apierr.ErrValidation)

		err = sectors.Delete(ctx, 2)
		assert.ErrorIs(t, err, apierr.ErrForbidden)
	})
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(nil, url, DefaultBasePath)
	require.NoError(t, err)

	_, err = NewDocuments(c).List(context.Background())
	assert.ErrorIs(t, err, apierr.ErrNetwork)
}
