package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/healthchat/internal/common"
)

// HTTPClient talks to the HealthChat REST API and opens chat sessions.
// An expired access token is refreshed once per call, transparently.
type HTTPClient struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration

	mu     sync.RWMutex
	tokens TokenPair
}

func NewHTTPClient(serverURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	return &HTTPClient{base: u, http: &http.Client{}, timeout: timeout}, nil
}

func (c *HTTPClient) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.AccessToken
}

func (c *HTTPClient) setTokens(t TokenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = t
}

// LoggedIn reports whether the client holds an access token.
func (c *HTTPClient) LoggedIn() bool { return c.accessToken() != "" }

// Logout forgets the tokens.
func (c *HTTPClient) Logout() { c.setTokens(TokenPair{}) }

func (c *HTTPClient) endpoint(path string) string {
	return c.base.String() + path
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	auth        bool
}

func (c *HTTPClient) send(ctx context.Context, r request) (*http.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.endpoint(r.path), bytes.NewReader(r.body))
	if err != nil {
		return nil, err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.auth {
		req.Header.Set("Authorization", common.BearerPrefix+c.accessToken())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	// Read the body before the timeout context goes away.
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// do performs r and decodes a JSON answer into out. On a 401 for an
// authenticated call it refreshes the tokens and retries once.
func (c *HTTPClient) do(ctx context.Context, r request, out any) error {
	if r.auth && !c.LoggedIn() {
		return ErrNotLoggedIn
	}

	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && r.auth {
		if rerr := c.Refresh(ctx); rerr == nil {
			resp, err = c.send(ctx, r)
			if err != nil {
				return err
			}
		}
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func jsonRequest(method, path string, in any, auth bool) (request, error) {
	r := request{method: method, path: path, auth: auth}
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return r, err
		}
		r.body = b
		r.contentType = "application/json"
	}
	return r, nil
}

// Register creates an account. It does not log in.
func (c *HTTPClient) Register(ctx context.Context, email, name string, password []byte) (*User, error) {
	r, err := jsonRequest(http.MethodPost, "/auth/register", map[string]string{
		"email": email, "name": name, "password": string(password),
	}, false)
	if err != nil {
		return nil, err
	}
	var u User
	if err := c.do(ctx, r, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates and keeps the issued tokens for later calls.
func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) (*User, error) {
	r, err := jsonRequest(http.MethodPost, "/auth/login", map[string]string{
		"email": email, "password": string(password),
	}, false)
	if err != nil {
		return nil, err
	}
	var resp struct {
		TokenPair
		User User `json:"user"`
	}
	if err := c.do(ctx, r, &resp); err != nil {
		return nil, err
	}
	c.setTokens(resp.TokenPair)
	return &resp.User, nil
}

// Refresh trades the refresh token for a new pair.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	c.mu.RLock()
	rt := c.tokens.RefreshToken
	c.mu.RUnlock()
	if rt == "" {
		return ErrNotLoggedIn
	}

	r, err := jsonRequest(http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": rt}, false)
	if err != nil {
		return err
	}
	var pair TokenPair
	if err := c.do(ctx, r, &pair); err != nil {
		return err
	}
	c.setTokens(pair)
	return nil
}

func (c *HTTPClient) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.do(ctx, request{method: http.MethodGet, path: "/conversations", auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	var in any
	if title != "" {
		in = map[string]string{"title": title}
	}
	r, err := jsonRequest(http.MethodPost, "/conversations", in, true)
	if err != nil {
		return nil, err
	}
	var conv Conversation
	if err := c.do(ctx, r, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Messages returns a conversation's history, oldest first.
func (c *HTTPClient) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, request{method: http.MethodGet, path: path, auth: true}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Upload sends a spreadsheet so later questions are answered with its data.
func (c *HTTPClient) Upload(ctx context.Context, path string) (*UploadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	r := request{
		method:      http.MethodPost,
		path:        "/upload",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
		auth:        true,
	}
	var res UploadResult
	if err := c.do(ctx, r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
