// Package apiclient is the typed HTTP client the bot front-end uses to talk
// to the backend API on behalf of a Telegram user.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/todobot/internal/api"
	"github.com/edgard/todobot/internal/notify"
	"github.com/edgard/todobot/internal/resilience"
)

var (
	// ErrNotFound matches API errors with status 404.
	ErrNotFound = errors.New("not found")
	// ErrConflict matches API errors with status 409.
	ErrConflict = errors.New("conflict")
	// ErrBadRequest matches API errors with status 400.
	ErrBadRequest = errors.New("bad request")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// Is lets callers test the status class with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// Client calls the backend API. It is safe for concurrent use.
//
// Every request goes through a circuit breaker that opens after repeated
// transport failures or 5xx responses. GET requests are retried on those
// errors too.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
}

// Option customizes a Client.
type Option func(*Client)

// WithRetry replaces the retry policy of GET requests.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		cfg.Retryable = isUnavailable
		c.retry = cfg
	}
}

// WithCircuitBreaker replaces the circuit breaker settings.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *Client) {
		cfg.IsFailure = isUnavailable
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

// New creates a client for the API rooted at baseURL, e.g.
// http://localhost:8000/api/v1.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retry := resilience.DefaultRetryConfig()
	retry.Retryable = isUnavailable
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:      "backend-api",
			IsFailure: isUnavailable,
		})
	}
	return c
}

// isUnavailable reports whether err means the backend could not serve the
// request, as opposed to rejecting it.
func isUnavailable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	IsCompleted *bool
	CategoryID  string
}

// ListTasks returns the user's tasks, newest first.
func (c *Client) ListTasks(ctx context.Context, telegramID int64, filter TaskFilter) ([]api.TaskListItem, error) {
	q := url.Values{}
	if filter.IsCompleted != nil {
		q.Set("is_completed", strconv.FormatBool(*filter.IsCompleted))
	}
	if filter.CategoryID != "" {
		q.Set("category", filter.CategoryID)
	}
	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var tasks []api.TaskListItem
	err := c.do(ctx, telegramID, http.MethodGet, path, nil, &tasks)
	return tasks, err
}

// GetTask returns one task in full.
func (c *Client) GetTask(ctx context.Context, telegramID int64, id string) (*api.TaskResponse, error) {
	var task api.TaskResponse
	if err := c.do(ctx, telegramID, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, telegramID int64, req api.CreateTaskRequest) (*api.TaskResponse, error) {
	var task api.TaskResponse
	if err := c.do(ctx, telegramID, http.MethodPost, "/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, telegramID int64, id string) (*api.TaskResponse, error) {
	var task api.TaskResponse
	if err := c.do(ctx, telegramID, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/complete", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UncompleteTask reopens a task.
func (c *Client) UncompleteTask(ctx context.Context, telegramID int64, id string) (*api.TaskResponse, error) {
	var task api.TaskResponse
	if err := c.do(ctx, telegramID, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/uncomplete", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, telegramID int64, id string) error {
	return c.do(ctx, telegramID, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

// NotifyTask asks the backend to send the task's reminder now. Outcomes
// other than sent are returned alongside an *APIError. Delivery failures
// come back as 5xx, so this call bypasses the circuit breaker.
func (c *Client) NotifyTask(ctx context.Context, telegramID int64, id string) (*notify.Outcome, error) {
	var outcome notify.Outcome
	err := c.roundTrip(ctx, telegramID, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/notify", nil, &outcome)
	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) && outcome.Status != "" {
		return &outcome, err
	}
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// ListCategories returns the user's categories ordered by name.
func (c *Client) ListCategories(ctx context.Context, telegramID int64) ([]api.CategoryResponse, error) {
	var categories []api.CategoryResponse
	err := c.do(ctx, telegramID, http.MethodGet, "/categories", nil, &categories)
	return categories, err
}

// CreateCategory creates a category. A duplicate name yields ErrConflict.
func (c *Client) CreateCategory(ctx context.Context, telegramID int64, name string) (*api.CategoryResponse, error) {
	var category api.CategoryResponse
	if err := c.do(ctx, telegramID, http.MethodPost, "/categories", api.CategoryRequest{Name: name}, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// do performs a request as telegramID through the circuit breaker, retrying
// GETs while the backend is unavailable.
func (c *Client) do(ctx context.Context, telegramID int64, method, path string, in, out any) error {
	attempt := func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.roundTrip(ctx, telegramID, method, path, in, out)
		})
	}
	if method != http.MethodGet {
		return attempt(ctx)
	}
	return resilience.WithRetry(ctx, attempt, c.retry)
}

// roundTrip performs one request. A non-2xx response becomes an *APIError;
// its body is still decoded into out when it is JSON.
func (c *Client) roundTrip(ctx context.Context, telegramID int64, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(api.TelegramIDHeader, strconv.FormatInt(telegramID, 10))
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody api.ErrorResponse
		if json.Unmarshal(raw, &errBody) == nil {
			apiErr.Message = errBody.Error
			apiErr.TraceID = errBody.TraceID
		}
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
