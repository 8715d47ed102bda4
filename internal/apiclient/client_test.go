package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/todobot/internal/api"
	"github.com/edgard/todobot/internal/database/databasetest"
	"github.com/edgard/todobot/internal/logger"
	"github.com/edgard/todobot/internal/notify"
	"github.com/edgard/todobot/internal/resilience"
)

type stubNotifier struct{ outcome notify.Outcome }

func (s stubNotifier) NotifyTask(context.Context, string) notify.Outcome { return s.outcome }

func newTestClient(t *testing.T, outcome notify.Outcome) *Client {
	t.Helper()
	router := api.NewRouter(api.Deps{
		Logger:   logger.Discard(),
		Store:    databasetest.NewTestStore(t),
		Notifier: stubNotifier{outcome: outcome},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/v1/", 5*time.Second)
}

func TestClientTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, notify.Outcome{Status: notify.OutcomeSent, Message: "ok"})
	const user int64 = 42

	category, err := client.CreateCategory(ctx, user, "Bills")
	require.NoError(t, err)

	_, err = client.CreateCategory(ctx, user, "Bills")
	assert.ErrorIs(t, err, ErrConflict)

	due := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	created, err := client.CreateTask(ctx, user, api.CreateTaskRequest{
		Title:    "Pay rent",
		Category: &category.ID,
		DueDate:  &due,
	})
	require.NoError(t, err)
	require.NotNil(t, created.Category)
	assert.Equal(t, "Bills", created.Category.Name)

	tasks, err := client.ListTasks(ctx, user, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)

	completed, err := client.CompleteTask(ctx, user, created.ID)
	require.NoError(t, err)
	assert.True(t, completed.IsCompleted)

	open := false
	tasks, err = client.ListTasks(ctx, user, TaskFilter{IsCompleted: &open})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	reopened, err := client.UncompleteTask(ctx, user, created.ID)
	require.NoError(t, err)
	assert.False(t, reopened.IsCompleted)

	outcome, err := client.NotifyTask(ctx, user, created.ID)
	require.NoError(t, err)
	assert.Equal(t, notify.OutcomeSent, outcome.Status)

	_, err = client.GetTask(ctx, 7, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, client.DeleteTask(ctx, user, created.ID))
	_, err = client.GetTask(ctx, user, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	categories, err := client.ListCategories(ctx, user)
	require.NoError(t, err)
	require.Len(t, categories, 1)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, notify.Outcome{Status: notify.OutcomeNotConfigured, Message: "Bot token not configured"})

	_, err := client.CreateTask(ctx, 1, api.CreateTaskRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "title is required", apiErr.Message)
	assert.NotEmpty(t, apiErr.TraceID)
	assert.ErrorIs(t, err, ErrBadRequest)

	task, err := client.CreateTask(ctx, 1, api.CreateTaskRequest{Title: "x"})
	require.NoError(t, err)

	outcome, err := client.NotifyTask(ctx, 1, task.ID)
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, notify.OutcomeNotConfigured, outcome.Status)
}

func TestClientRetriesAndTripsOnUnavailableBackend(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"maintenance","trace_id":"t"}`))
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, 5*time.Second,
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialInterval: time.Millisecond}),
		WithCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 3, OpenTimeout: time.Minute, Logger: logger.Discard()}),
	)
	ctx := context.Background()

	_, err := client.ListTasks(ctx, 1, TaskFilter{})
	assert.ErrorIs(t, err, resilience.ErrExhaustedRetries)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.EqualValues(t, 2, calls.Load())

	_, err = client.CreateCategory(ctx, 1, "Bills")
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load(), "writes are not retried")

	_, err = client.ListCategories(ctx, 1)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	client := newTestClient(t, notify.Outcome{Status: notify.OutcomeSent})
	ctx := context.Background()

	for range 10 {
		_, err := client.GetTask(ctx, 1, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, err := client.ListTasks(ctx, 1, TaskFilter{})
	assert.NoError(t, err)
}
