// Package integration contains clients for systems outside this process.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valter-silva-au/preqstation-mcp/internal/observability"
	"github.com/valter-silva-au/preqstation-mcp/pkg/models"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 8 << 20

// APIError is returned for any non-2xx response. The upstream body is
// deliberately dropped so server internals never reach MCP callers.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("PREQSTATION API request failed with status %d.", e.StatusCode)
}

// PreqClient talks to the PREQSTATION task API over HTTP with a bearer token.
type PreqClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewPreqClient creates a client for baseURL, which must already be
// normalized (no trailing slash).
func NewPreqClient(baseURL, token string, timeout time.Duration) *PreqClient {
	return &PreqClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListTasks calls GET /api/tasks with the non-empty filters of query.
func (c *PreqClient) ListTasks(ctx context.Context, query models.TaskQuery) ([]models.Task, error) {
	params := url.Values{}
	if query.Status != "" {
		params.Set("status", string(query.Status))
	}
	if query.Label != "" {
		params.Set("label", query.Label)
	}
	if query.Engine != "" {
		params.Set("engine", string(query.Engine))
	}

	path := "/api/tasks"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding task list: %w", err)
	}
	if body.Tasks == nil {
		body.Tasks = []models.Task{}
	}
	return body.Tasks, nil
}

// GetTask calls GET /api/tasks/{id}.
func (c *PreqClient) GetTask(ctx context.Context, taskID string) (*models.TaskEnvelope, error) {
	data, err := c.do(ctx, http.MethodGet, taskPath(taskID), nil)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(data)
}

// CreateTask calls POST /api/tasks.
func (c *PreqClient) CreateTask(ctx context.Context, task models.NewTask) (*models.TaskEnvelope, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/tasks", task)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(data)
}

// UpdateTask calls PATCH /api/tasks/{id} with only the fields set in patch.
func (c *PreqClient) UpdateTask(ctx context.Context, taskID string, patch models.TaskPatch) (*models.TaskEnvelope, error) {
	data, err := c.do(ctx, http.MethodPatch, taskPath(taskID), patch)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(data)
}

func taskPath(taskID string) string {
	return "/api/tasks/" + url.PathEscape(strings.TrimSpace(taskID))
}

// do sends one request and returns the response body. Bodies that are empty
// or not valid JSON are returned as "{}".
func (c *PreqClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response of %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return []byte("{}"), nil
	}
	return data, nil
}

// decodeEnvelope extracts the task object from a single-task response. The
// API wraps it as {"task": {...}}; a bare task object is accepted too. A
// body that is not an object yields an envelope without a task, but a task
// object that cannot be decoded is an error.
func decodeEnvelope(data []byte) (*models.TaskEnvelope, error) {
	env := &models.TaskEnvelope{Raw: json.RawMessage(data)}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return env, nil
	}

	if inner, ok := wrapper["task"]; ok && isJSONObject(inner) {
		env.TaskRaw = inner
	} else if _, ok := wrapper["id"]; ok {
		env.TaskRaw = json.RawMessage(data)
	}

	if env.TaskRaw != nil {
		var task models.Task
		if err := json.Unmarshal(env.TaskRaw, &task); err != nil {
			return nil, fmt.Errorf("decoding task: %w", err)
		}
		env.Task = &task
	}
	return env, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
