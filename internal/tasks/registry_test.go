package tasks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/todobot/internal/database/databasetest"
	"github.com/edgard/todobot/internal/logger"
	"github.com/edgard/todobot/internal/notify"
)

type stubChecker struct {
	report *notify.RunReport
	err    error
	calls  int
}

func (s *stubChecker) CheckDueTasks(context.Context) (*notify.RunReport, error) {
	s.calls++
	return s.report, s.err
}

func TestRegisterAllTasks(t *testing.T) {
	store := databasetest.NewTestStore(t)
	checker := &stubChecker{report: &notify.RunReport{Status: notify.StatusNoDueTasks, Message: "No due tasks"}}

	registry := RegisterAllTasks(TaskDeps{Logger: logger.Discard(), Store: store, Notifier: checker})

	require.Contains(t, registry, CheckDueTasks)
	require.Contains(t, registry, SQLMaintenance)

	require.NoError(t, registry[CheckDueTasks](context.Background()))
	assert.Equal(t, 1, checker.calls)

	require.NoError(t, registry[SQLMaintenance](context.Background()))
}

func TestCheckDueTasksTaskPropagatesErrors(t *testing.T) {
	var buf bytes.Buffer
	checker := &stubChecker{
		report: &notify.RunReport{Status: notify.StatusNotConfigured, Message: "Bot token not configured"},
		err:    notify.ErrNotConfigured,
	}
	task := newCheckDueTasksTask(TaskDeps{Logger: logger.New(&buf, slog.LevelDebug, true), Notifier: checker})

	err := task(context.Background())
	assert.True(t, errors.Is(err, notify.ErrNotConfigured))
	assert.Contains(t, buf.String(), `"result":"Bot token not configured"`)
	assert.Contains(t, buf.String(), `"status":"not_configured"`)
}

func TestCheckDueTasksTaskWithoutReport(t *testing.T) {
	var buf bytes.Buffer
	checker := &stubChecker{err: errors.New("database is locked")}
	task := newCheckDueTasksTask(TaskDeps{Logger: logger.New(&buf, slog.LevelDebug, true), Notifier: checker})

	err := task(context.Background())
	require.Error(t, err)
	assert.Contains(t, buf.String(), "database is locked")
	assert.NotContains(t, buf.String(), `"result"`)
}

func TestSetupPeriodicTasksIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := databasetest.NewTestStore(t)

	results, err := SetupPeriodicTasks(ctx, store)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Created, res.Name)
	}

	results, err = SetupPeriodicTasks(ctx, store)
	require.NoError(t, err)
	for _, res := range results {
		assert.False(t, res.Created, res.Name)
	}

	rows, err := store.ListPeriodicTasks(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byTask := map[string]time.Duration{}
	for _, row := range rows {
		assert.True(t, row.Enabled)
		byTask[row.Task] = row.Interval()
	}
	assert.Equal(t, time.Minute, byTask[CheckDueTasks])
	assert.Equal(t, 24*time.Hour, byTask[SQLMaintenance])
}
