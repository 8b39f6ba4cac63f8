// Package api is the HTTP client for the petcommunity backend.
//
// Every response is normalized before it leaves this package: listings come
// back as model.Listing whatever field names the server used, and every
// failure comes back as an *apperror.AppError so callers can branch with
// errors.Is on the same sentinels the server uses.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/model"
)

// DefaultTimeout bounds a single request when none is configured.
const DefaultTimeout = 10 * time.Second

// TokenSource returns the bearer token for the current session, or "" when
// nobody is logged in. It is called once per request.
type TokenSource func() string

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	token   TokenSource
	owners  OwnerResolver
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. Tests pass the
// httptest server's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithOwnerResolver sets the lookup used for legacy listings that identify
// their owner by username only.
func WithOwnerResolver(r OwnerResolver) Option {
	return func(c *Client) { c.owners = r }
}

// New creates a Client for baseURL. A zero timeout means DefaultTimeout and
// a nil token source sends no Authorization header.
func New(baseURL string, timeout time.Duration, token TokenSource, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if token == nil {
		token = func() string { return "" }
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: timeout,
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Nickname string `json:"nickname,omitempty"`
}

// Register creates an account and returns the new user with a token.
func (c *Client) Register(ctx context.Context, username, password, nickname string) (*AuthResult, error) {
	var out AuthResult
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/register",
		credentials{Username: username, Password: password, Nickname: nickname}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a user record and token.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login",
		credentials{Username: username, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout tells the server to drop its session cookie. Bearer tokens are
// stateless, so the client session must still be cleared locally.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List fetches the whole collection for kind in server order.
func (c *Client) List(ctx context.Context, kind model.Kind) ([]model.Listing, error) {
	var wire []wireListing
	if err := c.doJSON(ctx, http.MethodGet, "/api/"+kind.Path(), nil, &wire); err != nil {
		return nil, err
	}
	out := make([]model.Listing, 0, len(wire))
	for i := range wire {
		out = append(out, wire[i].normalize(kind, c.owners))
	}
	return out, nil
}

// Get fetches one listing. A missing listing is apperror.ErrNotFound.
func (c *Client) Get(ctx context.Context, kind model.Kind, id int64) (*model.Listing, error) {
	return c.listing(ctx, http.MethodGet, itemPath(kind, id), nil, kind)
}

// Create publishes a new listing owned by the token's user.
func (c *Client) Create(ctx context.Context, kind model.Kind, in model.ListingInput) (*model.Listing, error) {
	return c.listing(ctx, http.MethodPost, "/api/"+kind.Path(), in, kind)
}

// Update replaces the mutable fields of a listing.
func (c *Client) Update(ctx context.Context, kind model.Kind, id int64, in model.ListingInput) (*model.Listing, error) {
	return c.listing(ctx, http.MethodPut, itemPath(kind, id), in, kind)
}

// SetStatus changes an adoption listing's status.
func (c *Client) SetStatus(ctx context.Context, id int64, status string) (*model.Listing, error) {
	body := map[string]string{"status": status}
	return c.listing(ctx, http.MethodPatch, itemPath(model.KindAdoption, id)+"/status", body, model.KindAdoption)
}

// Delete removes a listing. userID is sent for server-side re-verification.
func (c *Client) Delete(ctx context.Context, kind model.Kind, id, userID int64) error {
	body := map[string]int64{"userId": userID}
	return c.doJSON(ctx, http.MethodDelete, itemPath(kind, id), body, nil)
}

// Upload sends an image as multipart field "image" and returns its URL.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("api: building upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("api: reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("api: building upload: %w", err)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/uploads", mw.FormDataContentType(), &buf, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func itemPath(kind model.Kind, id int64) string {
	return "/api/" + kind.Path() + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) listing(ctx context.Context, method, path string, body any, kind model.Kind) (*model.Listing, error) {
	var wire wireListing
	if err := c.doJSON(ctx, method, path, body, &wire); err != nil {
		return nil, err
	}
	l := wire.normalize(kind, c.owners)
	return &l, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	if body == nil {
		return c.do(ctx, method, path, "", nil, out)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api: encoding request: %w", err)
	}
	return c.do(ctx, method, path, "application/json", bytes.NewReader(b), out)
}

// do performs one request under the client timeout. Any failure is returned
// as an *apperror.AppError.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: building request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.Transport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Transport(fmt.Errorf("decoding %s %s: %w", method, path, err))
	}
	return nil
}

// errorBody mirrors the server's error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

var codeSentinels = map[string]error{
	"validation_error": apperror.ErrValidation,
	"unauthorized":     apperror.ErrUnauthorized,
	"forbidden":        apperror.ErrForbidden,
	"not_found":        apperror.ErrNotFound,
	"conflict":         apperror.ErrConflict,
}

// decodeError turns a non-2xx response into an AppError.
//
// A 404 is always ErrNotFound so the detail view can offer "back to list"
// even when a proxy answered. Any other response without a structured body
// is a transport failure.
func decodeError(resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	structured := json.Unmarshal(raw, &body) == nil && body.Error != ""

	if structured {
		if sentinel, ok := codeSentinels[body.Error]; ok {
			return &apperror.AppError{Err: sentinel, Message: body.Message, Field: body.Field}
		}
	}
	if resp.StatusCode == http.StatusNotFound {
		msg := body.Message
		if msg == "" {
			msg = "not found"
		}
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: msg}
	}

	cause := fmt.Errorf("unexpected status %d", resp.StatusCode)
	if structured && body.Message != "" {
		cause = errors.New(body.Message)
	}
	return apperror.Transport(cause)
}
