package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chepyr/go-task-sync/shared/models"
)

// Client talks to the /tasks endpoints of the task service.
// The token function is queried per request so the client always
// sends whatever credential the current session holds.
type Client struct {
	baseURL string
	token   func() string
	http    *http.Client
}

func NewClient(baseURL string, token func() string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// List returns the caller's tasks, newest first (ordering is done by
// the store; the client never re-sorts).
func (c *Client) List(ctx context.Context) ([]models.Task, error) {
	body, err := c.do(ctx, http.MethodGet, "/tasks", nil)
	if err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := json.Unmarshal(body, &tasks); err != nil {
		return nil, fmt.Errorf("%w: decoding task list: %v", ErrUnknown, err)
	}
	return tasks, nil
}

// Create inserts a new task. The owner field is advisory metadata;
// the store derives ownership from the access token.
func (c *Client) Create(ctx context.Context, title, description, owner string) (models.Task, error) {
	payload := map[string]string{
		"title":       title,
		"description": description,
		"user_id":     owner,
	}
	body, err := c.do(ctx, http.MethodPost, "/tasks", payload)
	if err != nil {
		return models.Task{}, err
	}

	var tasks []models.Task
	if err := json.Unmarshal(body, &tasks); err != nil {
		return models.Task{}, fmt.Errorf("%w: decoding created task: %v", ErrUnknown, err)
	}
	if len(tasks) == 0 {
		return models.Task{}, fmt.Errorf("%w: store returned no created task", ErrUnknown)
	}
	return tasks[0], nil
}

func (c *Client) Update(ctx context.Context, id, title, description string) error {
	payload := map[string]string{
		"title":       title,
		"description": description,
	}
	_, err := c.do(ctx, http.MethodPut, "/tasks/"+id, payload)
	return err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/tasks/"+id, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding request: %v", ErrUnknown, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnknown, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrStoreUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, classifyStatus(resp.StatusCode, body)
}

// map store responses onto the client error taxonomy
func classifyStatus(status int, body []byte) error {
	var remote struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &remote)
	if remote.Error == "" {
		remote.Error = http.StatusText(status)
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrValidationRejected, remote.Error)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthenticated, remote.Error)
	case status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, remote.Error)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, remote.Error)
	case status >= 500:
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, remote.Error)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnknown, status, remote.Error)
	}
}
