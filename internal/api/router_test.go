package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/database/databasetest"
	"github.com/edgard/todobot/internal/logger"
	"github.com/edgard/todobot/internal/notify"
)

const (
	alice int64 = 1001
	bob   int64 = 2002
)

type stubNotifier struct {
	outcome notify.Outcome
	ids     []string
}

func (s *stubNotifier) NotifyTask(_ context.Context, id string) notify.Outcome {
	s.ids = append(s.ids, id)
	return s.outcome
}

type testAPI struct {
	t        *testing.T
	handler  http.Handler
	store    database.Store
	notifier *stubNotifier
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := databasetest.NewTestStore(t)
	notifier := &stubNotifier{outcome: notify.Outcome{Status: notify.OutcomeSent, Message: "sent"}}
	return &testAPI{
		t:        t,
		handler:  NewRouter(Deps{Logger: logger.Discard(), Store: store, Notifier: notifier}),
		store:    store,
		notifier: notifier,
	}
}

// do sends a request as tenant (0 means no header) and returns the recorder.
func (a *testAPI) do(method, path string, tenant int64, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenant != 0 {
		req.Header.Set(TelegramIDHeader, strconv.FormatInt(tenant, 10))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testAPI) createTask(tenant int64, body map[string]any) TaskResponse {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/tasks", tenant, body)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[TaskResponse](a.t, rec)
}

func (a *testAPI) createCategory(tenant int64, name string) CategoryResponse {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/categories", tenant, map[string]any{"name": name})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CategoryResponse](a.t, rec)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCreateAndGetTask(t *testing.T) {
	api := newTestAPI(t)
	bills := api.createCategory(alice, "Bills")

	created := api.createTask(alice, map[string]any{
		"title":       "Pay rent",
		"description": "Transfer to landlord",
		"category":    bills.ID,
		"due_date":    "2024-01-05T10:00:00Z",
	})

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, alice, created.TelegramID)
	require.NotNil(t, created.Category)
	assert.Equal(t, CategoryRef{ID: bills.ID, Name: "Bills"}, *created.Category)
	require.NotNil(t, created.DueDate)
	assert.True(t, created.DueDate.Equal(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)))
	assert.False(t, created.NotificationSent)

	rec := api.do(http.MethodGet, "/api/v1/tasks/"+created.ID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[TaskResponse](t, rec)
	assert.Equal(t, created.ID, detail.ID)
	assert.Equal(t, "Transfer to landlord", detail.Description)
}

func TestCreateTaskValidation(t *testing.T) {
	api := newTestAPI(t)
	foreign := api.createCategory(bob, "Secret")

	tests := []struct {
		name    string
		tenant  int64
		body    any
		status  int
		message string
	}{
		{name: "missing tenant", tenant: 0, body: map[string]any{"title": "x"}, status: http.StatusBadRequest, message: "X-Telegram-ID header is required"},
		{name: "missing title", tenant: alice, body: map[string]any{"description": "x"}, status: http.StatusBadRequest, message: "title is required"},
		{name: "blank title", tenant: alice, body: map[string]any{"title": "   "}, status: http.StatusBadRequest},
		{name: "title too long", tenant: alice, body: map[string]any{"title": strings.Repeat("я", 256)}, status: http.StatusBadRequest, message: "title must be at most 255 characters"},
		{name: "foreign category", tenant: alice, body: map[string]any{"title": "x", "category": foreign.ID}, status: http.StatusBadRequest, message: "Category does not belong to this user."},
		{name: "malformed json", tenant: alice, body: "{", status: http.StatusBadRequest},
		{name: "bad due date", tenant: alice, body: map[string]any{"title": "x", "due_date": "tomorrow"}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(http.MethodPost, "/api/v1/tasks", tt.tenant, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			errResp := decode[ErrorResponse](t, rec)
			if tt.message != "" {
				assert.Equal(t, tt.message, errResp.Error)
			}
			assert.NotEmpty(t, errResp.TraceID)
		})
	}
}

func TestTenantIsolation(t *testing.T) {
	api := newTestAPI(t)
	task := api.createTask(alice, map[string]any{"title": "private"})
	path := "/api/v1/tasks/" + task.ID

	for _, tenant := range []int64{0, bob} {
		name := "tenant " + strconv.FormatInt(tenant, 10)
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, path, tenant, nil).Code)
			assert.Equal(t, http.StatusNotFound, api.do(http.MethodPatch, path, tenant, map[string]any{"title": "mine"}).Code)
			assert.Equal(t, http.StatusNotFound, api.do(http.MethodPut, path, tenant, map[string]any{"title": "mine"}).Code)
			assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, path+"/complete", tenant, nil).Code)
			assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, path+"/notify", tenant, nil).Code)
			assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, path, tenant, nil).Code)

			rec := api.do(http.MethodGet, "/api/v1/tasks", tenant, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, decode[[]TaskListItem](t, rec))
		})
	}

	assert.Empty(t, api.notifier.ids)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, path, alice, nil).Code)
}

func TestNonNumericTenantIsAnonymous(t *testing.T) {
	api := newTestAPI(t)
	api.createTask(alice, map[string]any{"title": "private"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set(TelegramIDHeader, "abc")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListTasksFilters(t *testing.T) {
	api := newTestAPI(t)
	home := api.createCategory(alice, "Home")

	first := api.createTask(alice, map[string]any{"title": "first"})
	second := api.createTask(alice, map[string]any{"title": "second", "category": home.ID})
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/tasks/"+first.ID+"/complete", alice, nil).Code)

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{second.ID, first.ID}},
		{query: "?is_completed=true", want: []string{first.ID}},
		{query: "?is_completed=false", want: []string{second.ID}},
		{query: "?is_completed=nonsense", want: []string{second.ID}},
		{query: "?category=" + home.ID, want: []string{second.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := api.do(http.MethodGet, "/api/v1/tasks"+tt.query, alice, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			items := decode[[]TaskListItem](t, rec)
			ids := make([]string, 0, len(items))
			for _, item := range items {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	rec := api.do(http.MethodGet, "/api/v1/tasks?category="+home.ID, alice, nil)
	items := decode[[]TaskListItem](t, rec)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].CategoryName)
	assert.Equal(t, "Home", *items[0].CategoryName)
}

func TestPatchTask(t *testing.T) {
	api := newTestAPI(t)
	home := api.createCategory(alice, "Home")
	task := api.createTask(alice, map[string]any{
		"title":       "Fix tap",
		"description": "kitchen",
		"category":    home.ID,
		"due_date":    "2024-01-05T10:00:00Z",
	})
	path := "/api/v1/tasks/" + task.ID

	rec := api.do(http.MethodPatch, path, alice, `{"title":"Fix kitchen tap"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[TaskResponse](t, rec)
	assert.Equal(t, "Fix kitchen tap", patched.Title)
	assert.Equal(t, "kitchen", patched.Description)
	assert.NotNil(t, patched.Category)
	assert.NotNil(t, patched.DueDate)

	rec = api.do(http.MethodPatch, path, alice, `{"category":null,"due_date":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched = decode[TaskResponse](t, rec)
	assert.Nil(t, patched.Category)
	assert.Nil(t, patched.DueDate)
	assert.Equal(t, "Fix kitchen tap", patched.Title)

	rec = api.do(http.MethodPatch, path, alice, `{"title":null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPatch, path, alice, `{"notification_sent":true,"is_completed":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	patched = decode[TaskResponse](t, rec)
	assert.True(t, patched.IsCompleted)
	assert.False(t, patched.NotificationSent, "notification_sent is read-only")
}

func TestPutTaskKeepsOmittedFields(t *testing.T) {
	api := newTestAPI(t)
	home := api.createCategory(alice, "Home")
	task := api.createTask(alice, map[string]any{
		"title":       "Pay rent",
		"description": "before noon",
		"category":    home.ID,
		"due_date":    "2024-01-05T10:00:00Z",
	})
	path := "/api/v1/tasks/" + task.ID
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, path+"/complete", alice, nil).Code)

	rec := api.do(http.MethodPut, path, alice, map[string]any{"title": "Pay rent!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[TaskResponse](t, rec)
	assert.Equal(t, "Pay rent!", updated.Title)
	assert.Equal(t, "before noon", updated.Description)
	require.NotNil(t, updated.Category)
	assert.Equal(t, home.ID, updated.Category.ID)
	require.NotNil(t, updated.DueDate)
	assert.True(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC).Equal(*updated.DueDate))
	assert.True(t, updated.IsCompleted)

	rec = api.do(http.MethodPut, path, alice, `{"title":"Pay rent","category":null,"due_date":null,"is_completed":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated = decode[TaskResponse](t, rec)
	assert.Nil(t, updated.Category)
	assert.Nil(t, updated.DueDate)
	assert.False(t, updated.IsCompleted)
	assert.Equal(t, "before noon", updated.Description)

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, path, alice, map[string]any{"description": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, path, alice, `{"title":"x","is_completed":null}`).Code)
}

func TestCompleteUncompleteDelete(t *testing.T) {
	api := newTestAPI(t)
	task := api.createTask(alice, map[string]any{"title": "toggle"})
	path := "/api/v1/tasks/" + task.ID

	rec := api.do(http.MethodPost, path+"/complete", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[TaskResponse](t, rec).IsCompleted)

	rec = api.do(http.MethodPost, path+"/uncomplete", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[TaskResponse](t, rec).IsCompleted)

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, path, alice, nil).Code)
}

func TestNotifyTask(t *testing.T) {
	api := newTestAPI(t)
	task := api.createTask(alice, map[string]any{"title": "ping me"})
	path := "/api/v1/tasks/" + task.ID + "/notify"

	tests := []struct {
		outcome notify.Outcome
		status  int
	}{
		{outcome: notify.Outcome{Status: notify.OutcomeSent, Message: "Notification sent for task " + task.ID}, status: http.StatusOK},
		{outcome: notify.Outcome{Status: notify.OutcomeNotConfigured, Message: "Bot token not configured"}, status: http.StatusServiceUnavailable},
		{outcome: notify.Outcome{Status: notify.OutcomeFailed, Message: "Failed: boom"}, status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome.Status), func(t *testing.T) {
			api.notifier.outcome = tt.outcome
			rec := api.do(http.MethodPost, path, alice, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.outcome, decode[notify.Outcome](t, rec))
		})
	}
	assert.Equal(t, []string{task.ID, task.ID, task.ID}, api.notifier.ids)
}

func TestCategories(t *testing.T) {
	api := newTestAPI(t)

	work := api.createCategory(alice, "Work")
	api.createCategory(alice, "Bills")

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/categories", alice, map[string]any{"name": "Work"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("same name for another tenant", func(t *testing.T) {
		api.createCategory(bob, "Work")
	})

	t.Run("name required", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/categories", alice, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("name too long", func(t *testing.T) {
		rec := api.do(http.MethodPost, "/api/v1/categories", alice, map[string]any{"name": strings.Repeat("x", 101)})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing tenant", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/categories", 0, map[string]any{"name": "x"}).Code)
		rec := api.do(http.MethodGet, "/api/v1/categories", 0, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("list ordered by name", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/api/v1/categories", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[[]CategoryResponse](t, rec)
		require.Len(t, list, 2)
		assert.Equal(t, "Bills", list[0].Name)
		assert.Equal(t, "Work", list[1].Name)
	})

	t.Run("rename", func(t *testing.T) {
		rec := api.do(http.MethodPatch, "/api/v1/categories/"+work.ID, alice, map[string]any{"name": "Office"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Office", decode[CategoryResponse](t, rec).Name)

		assert.Equal(t, http.StatusNotFound, api.do(http.MethodPut, "/api/v1/categories/"+work.ID, bob, map[string]any{"name": "Stolen"}).Code)
	})
}

func TestDeleteCategoryKeepsTasks(t *testing.T) {
	api := newTestAPI(t)
	home := api.createCategory(alice, "Home")
	task := api.createTask(alice, map[string]any{"title": "Fix tap", "category": home.ID})

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/api/v1/categories/"+home.ID, bob, nil).Code)
	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/v1/categories/"+home.ID, alice, nil).Code)

	rec := api.do(http.MethodGet, "/api/v1/tasks/"+task.ID, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[TaskResponse](t, rec).Category)
}
