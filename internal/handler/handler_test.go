package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/auth"
	"github.com/sakif/petcommunity/internal/handler"
	"github.com/sakif/petcommunity/internal/repository/sqlite"
	"github.com/sakif/petcommunity/internal/service"
	"github.com/sakif/petcommunity/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	db       *sqlite.DB
	auth     *service.AuthService
	listings *service.ListingService
	tokens   *auth.TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-123456", time.Hour)
	require.NoError(t, err)

	logger := testLogger()
	return &fixture{
		db:       db,
		auth:     service.NewAuthService(db.Users(), tokens, auth.NewPasswordServiceForTest(4), logger),
		listings: service.NewListingService(db.Listings(), db.Users(), logger),
		tokens:   tokens,
	}
}

// withURLParams attaches chi route params the way the router would.
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{apperror.ValidationFailed("title", "title is required"), http.StatusBadRequest, "validation_error"},
		{apperror.Unauthorized("login required"), http.StatusUnauthorized, "unauthorized"},
		{apperror.Forbidden("not yours"), http.StatusForbidden, "forbidden"},
		{apperror.NotFound("board", "1"), http.StatusNotFound, "not_found"},
		{apperror.Conflict("user", "mina"), http.StatusConflict, "conflict"},
		{fmt.Errorf("service: %w", apperror.NotFound("board", "1")), http.StatusNotFound, "not_found"},
		{errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, code := handler.StatusFor(tt.err)
		assert.Equal(t, tt.wantStatus, status, tt.err.Error())
		assert.Equal(t, tt.wantCode, code, tt.err.Error())
	}
}

func TestAuthHandler_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	h := handler.NewAuthHandler(f.auth, nil, time.Hour, testLogger())

	t.Run("register", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"username":"mina","password":"secret1","nickname":"Mina"}`))
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		var res service.AuthResult
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "Mina", res.User.Nickname)
		assert.NotEmpty(t, res.Token)
		assert.NotContains(t, rr.Body.String(), "$2a$", "the hash never leaves the server")
	})

	t.Run("validation error carries the field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
			strings.NewReader(`{"username":"x","password":"secret1"}`))
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, "validation_error", body.Error)
		assert.Equal(t, "username", body.Field)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{nope`))
		rr := httptest.NewRecorder()
		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid JSON body", decodeError(t, rr).Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"username":"mina","password":"nope-nope"}`))
		rr := httptest.NewRecorder()
		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "unauthorized", decodeError(t, rr).Error)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	h := handler.NewAuthHandler(nil, nil, time.Hour, testLogger())

	rr := httptest.NewRecorder()
	h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.TokenCookie, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}

type fakeGitHub struct {
	user *auth.GitHubUser
	err  error
}

func (f *fakeGitHub) AuthURL(state string) string {
	return "https://github.example/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeGitHub) Exchange(context.Context, string) (*auth.GitHubUser, error) {
	return f.user, f.err
}

func TestAuthHandler_GitHub(t *testing.T) {
	f := newFixture(t)
	gh := &fakeGitHub{user: &auth.GitHubUser{ID: 77, Login: "octocat", Name: "Octo"}}
	h := handler.NewAuthHandler(f.auth, gh, time.Hour, testLogger())

	t.Run("login sets state cookie and redirects", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

		assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Contains(t, rr.Header().Get("Location"), "state="+cookies[0].Value)
	})

	t.Run("callback rejects state mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=c&state=evil", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "good"})
		rr := httptest.NewRecorder()
		h.HandleGitHubCallback(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("callback signs in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=c&state=good", nil)
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "good"})
		rr := httptest.NewRecorder()
		h.HandleGitHubCallback(rr, req)

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		var token string
		for _, c := range rr.Result().Cookies() {
			if c.Name == auth.TokenCookie {
				token = c.Value
			}
		}
		require.NotEmpty(t, token)
		userID, err := f.tokens.Validate(token)
		require.NoError(t, err)
		assert.Positive(t, userID)
	})

	t.Run("disabled provider is a 404", func(t *testing.T) {
		disabled := handler.NewAuthHandler(f.auth, nil, time.Hour, testLogger())
		rr := httptest.NewRecorder()
		disabled.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestListingHandler(t *testing.T) {
	f := newFixture(t)
	h := handler.NewListingHandler(f.listings, testLogger())

	owner, err := f.auth.Register(context.Background(), "owner", "secret1", "Owner")
	require.NoError(t, err)
	ctx := auth.WithUserID(context.Background(), owner.User.ID)

	t.Run("create", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/reviews",
			strings.NewReader(`{"title":"Chew toy","category":"toys","rating":4}`)).WithContext(ctx)
		rr := httptest.NewRecorder()
		h.HandleCreate(rr, withURLParams(req, map[string]string{"kind": "reviews"}))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), `"ownerName":"Owner"`)
	})

	t.Run("unknown kind", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/forum", nil)
		h.HandleList(rr, withURLParams(req, map[string]string{"kind": "forum"}))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/reviews/abc", nil)
		h.HandleGet(rr, withURLParams(req, map[string]string{"kind": "reviews", "id": "abc"}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "id", decodeError(t, rr).Field)
	})

	t.Run("delete without body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/reviews/1", nil).WithContext(ctx)
		h.HandleDelete(rr, withURLParams(req, map[string]string{"kind": "reviews", "id": "1"}))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func multipartImage(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestUploadHandler(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	t.Run("stores a png", func(t *testing.T) {
		store := storage.NewMemoryStore("/uploads/")
		h := handler.NewUploadHandler(store, 1024, testLogger())

		body, ct := multipartImage(t, "image", "bori.png", png)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.HandleUpload(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var res handler.UploadResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		stored, ok := store.Get(res.URL)
		require.True(t, ok)
		assert.Equal(t, png, stored)
	})

	t.Run("rejects non-images", func(t *testing.T) {
		h := handler.NewUploadHandler(storage.NewMemoryStore("/uploads/"), 1024, testLogger())

		body, ct := multipartImage(t, "image", "notes.txt", []byte("just some text"))
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.HandleUpload(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects oversized files", func(t *testing.T) {
		h := handler.NewUploadHandler(storage.NewMemoryStore("/uploads/"), 16, testLogger())

		body, ct := multipartImage(t, "image", "big.png", png)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.HandleUpload(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr).Message, "16 bytes")
	})

	t.Run("missing field", func(t *testing.T) {
		h := handler.NewUploadHandler(storage.NewMemoryStore("/uploads/"), 1024, testLogger())

		body, ct := multipartImage(t, "photo", "bori.png", png)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.HandleUpload(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "image", decodeError(t, rr).Field)
	})
}

func TestHealthHandler(t *testing.T) {
	f := newFixture(t)
	h := handler.NewHealthHandler(f.db, testLogger())

	rr := httptest.NewRecorder()
	h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","schemaVersion":2}`, rr.Body.String())
}
