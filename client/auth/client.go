// Package auth is the client for the identity endpoints of the task
// service: sign-up, sign-in, sign-out and the startup session probe.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Session is the authenticated identity context. All data operations
// are gated on one existing.
type Session struct {
	UserID string
	Email  string
	Token  string
}

type Client struct {
	baseURL string
	http    *http.Client

	mu       sync.Mutex
	session  *Session
	handlers []func(*Session)
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// OnChange registers a handler invoked on every sign-in/sign-out
// transition, with the new session (nil when signed out).
func (c *Client) OnChange(handler func(*Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Token returns the credential of the active session, or "".
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body, err := c.post(ctx, "/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		UserID string `json:"user_id"`
		Email  string `json:"user_email"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}

	session := &Session{UserID: out.UserID, Email: out.Email, Token: out.Token}
	c.setSession(session)
	return session, nil
}

// SignUp registers a new account. It does not sign the user in; the
// caller signs in with the same credentials afterwards.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	_, err := c.post(ctx, "/register", map[string]string{
		"email":    email,
		"password": password,
	})
	return err
}

// SignOut discards the local session. The token simply stops being
// used; there is no server-side invalidation endpoint.
func (c *Client) SignOut() {
	c.setSession(nil)
}

// CurrentSession validates the stored token against the service and
// returns the identity it belongs to. Used once at startup to seed
// session state.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	token := c.Token()
	if token == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/session", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// token expired or revoked
		c.setSession(nil)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session probe failed: status %d", resp.StatusCode)
	}

	var out struct {
		UserID string `json:"user_id"`
		Email  string `json:"user_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding session response: %w", err)
	}
	return &Session{UserID: out.UserID, Email: out.Email, Token: token}, nil
}

func (c *Client) setSession(session *Session) {
	c.mu.Lock()
	c.session = session
	handlers := make([]func(*Session), len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(session)
	}
}

func (c *Client) post(ctx context.Context, path string, payload map[string]string) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var remote struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &remote)
		if remote.Error == "" {
			remote.Error = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s", remote.Error)
	}
	return body, nil
}
