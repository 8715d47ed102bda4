package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/logger"
)

type fakeSource struct {
	mu        sync.Mutex
	tasks     map[string]*database.Task
	markErr   map[string]error
	marks     []string
	selectErr error
}

func newFakeSource(tasks ...database.Task) *fakeSource {
	src := &fakeSource{tasks: map[string]*database.Task{}, markErr: map[string]error{}}
	for i := range tasks {
		task := tasks[i]
		src.tasks[task.ID] = &task
	}
	return src
}

func (f *fakeSource) SelectDueTasks(_ context.Context, now time.Time) ([]database.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var due []database.Task
	for _, task := range f.tasks {
		if task.DueDate != nil && !task.DueDate.After(now) && !task.IsCompleted && !task.NotificationSent {
			due = append(due, *task)
		}
	}
	return due, nil
}

func (f *fakeSource) GetNotificationTask(_ context.Context, id string) (*database.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeSource) MarkTaskNotified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.markErr[id]; err != nil {
		return err
	}
	task, ok := f.tasks[id]
	if !ok {
		return database.ErrNotFound
	}
	task.NotificationSent = true
	f.marks = append(f.marks, id)
	return nil
}

func (f *fakeSource) notified(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[id].NotificationSent
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeChannel struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]error
	block   bool
	closed  int
	opened  int
}

func (f *fakeChannel) Open(string) (Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return f, nil
}

func (f *fakeChannel) Send(ctx context.Context, chatID int64, text string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

var testNow = time.Date(2024, 1, 5, 10, 5, 0, 0, time.UTC)

func newTestService(src TaskSource, ch ChannelOpener, cfg Config) *Service {
	svc := NewService(logger.Discard(), src, ch, cfg)
	svc.now = func() time.Time { return testNow }
	return svc
}

func dueTask(id string, chatID int64) database.Task {
	due := testNow.Add(-5 * time.Minute)
	return database.Task{ID: id, TelegramID: chatID, Title: "Task " + id, DueDate: &due}
}

func TestCheckDueTasksSendsAndMarks(t *testing.T) {
	bills := "Bills"
	due := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	src := newFakeSource(database.Task{
		ID: "rent", TelegramID: 42, Title: "Pay rent", Description: "Transfer to landlord",
		CategoryName: &bills, DueDate: &due,
	})
	ch := &fakeChannel{}
	svc := newTestService(src, ch, Config{BotToken: "token"})

	report, err := svc.CheckDueTasks(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, "Sent 1 notifications", report.Message)
	require.Len(t, ch.sent, 1)
	assert.Equal(t, int64(42), ch.sent[0].ChatID)
	assert.Equal(t,
		"⏰ <b>Напоминание о задаче!</b>\n\n📌 <b>Pay rent</b>\n📁 Категория: Bills\n📅 Срок: 05.01.2024 10:00\n\n📝 Transfer to landlord",
		ch.sent[0].Text)
	assert.True(t, src.notified("rent"))
	assert.Equal(t, 1, ch.closed)

	report, err = svc.CheckDueTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNoDueTasks, report.Status)
	assert.Equal(t, "No due tasks", report.Message)
	assert.Len(t, ch.sent, 1, "a notified task is never sent again")
	assert.Equal(t, 1, ch.opened, "no channel is opened when nothing is due")
}

func TestCheckDueTasksSkipsIneligible(t *testing.T) {
	future := testNow.Add(time.Hour)
	completed := dueTask("done", 1)
	completed.IsCompleted = true
	notified := dueTask("old", 1)
	notified.NotificationSent = true

	src := newFakeSource(
		completed,
		notified,
		database.Task{ID: "later", TelegramID: 1, Title: "later", DueDate: &future},
		database.Task{ID: "nodate", TelegramID: 1, Title: "no date"},
	)
	ch := &fakeChannel{}
	svc := newTestService(src, ch, Config{BotToken: "token"})

	report, err := svc.CheckDueTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNoDueTasks, report.Status)
	assert.Empty(t, ch.sent)
}

func TestCheckDueTasksPartialFailure(t *testing.T) {
	src := newFakeSource(dueTask("a", 1), dueTask("b", 2), dueTask("c", 3))
	ch := &fakeChannel{failFor: map[int64]error{2: errors.New("Forbidden: bot was blocked by the user")}}
	svc := newTestService(src, ch, Config{BotToken: "token"})

	report, err := svc.CheckDueTasks(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Sent 2 notifications", report.Message)
	assert.Equal(t, 2, report.Sent)
	require.Len(t, report.Results, 3)
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].TaskID)

	assert.True(t, src.notified("a"))
	assert.False(t, src.notified("b"))
	assert.True(t, src.notified("c"))

	ch.failFor = nil
	report, err = svc.CheckDueTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Sent 1 notifications", report.Message)
	assert.True(t, src.notified("b"))
}

func TestCheckDueTasksMarkFailureIsNotCounted(t *testing.T) {
	src := newFakeSource(dueTask("a", 1), dueTask("b", 2))
	src.markErr["a"] = errors.New("database is locked")
	ch := &fakeChannel{}
	svc := newTestService(src, ch, Config{BotToken: "token"})

	report, err := svc.CheckDueTasks(context.Background())
	require.NoError(t, err)

	assert.Len(t, ch.sent, 2)
	assert.Equal(t, "Sent 1 notifications", report.Message)
	assert.False(t, src.notified("a"), "task stays eligible after a failed mark")
}

func TestCheckDueTasksWithoutToken(t *testing.T) {
	src := newFakeSource(dueTask("a", 1))
	ch := &fakeChannel{}
	svc := newTestService(src, ch, Config{})

	report, err := svc.CheckDueTasks(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
	require.NotNil(t, report)
	assert.Equal(t, StatusNotConfigured, report.Status)
	assert.Equal(t, "Bot token not configured", report.Message)
	assert.Zero(t, ch.opened)
	assert.Empty(t, ch.sent)
	assert.Empty(t, src.marks)
}

func TestCheckDueTasksSelectError(t *testing.T) {
	src := newFakeSource()
	src.selectErr = errors.New("disk I/O error")
	svc := newTestService(src, &fakeChannel{}, Config{BotToken: "token"})

	_, err := svc.CheckDueTasks(context.Background())
	assert.ErrorIs(t, err, src.selectErr)
}

func TestCheckDueTasksSendTimeout(t *testing.T) {
	src := newFakeSource(dueTask("slow", 1))
	ch := &fakeChannel{block: true}
	svc := newTestService(src, ch, Config{BotToken: "token", SendTimeout: 20 * time.Millisecond})

	done := make(chan *RunReport, 1)
	go func() {
		report, err := svc.CheckDueTasks(context.Background())
		assert.NoError(t, err)
		done <- report
	}()

	select {
	case report := <-done:
		require.Len(t, report.Failed(), 1)
		assert.ErrorIs(t, report.Failed()[0].Err, context.DeadlineExceeded)
		assert.False(t, src.notified("slow"))
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish after the send timeout")
	}
}

func TestCheckDueTasksCancelled(t *testing.T) {
	src := newFakeSource(dueTask("a", 1), dueTask("b", 2))
	ch := &fakeChannel{}
	svc := newTestService(src, ch, Config{BotToken: "token", RatePerSecond: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.CheckDueTasks(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ch.sent)
	assert.Equal(t, 1, ch.closed)
	assert.Equal(t, "Sent 0 notifications", report.Message)
}

func TestNotifyTask(t *testing.T) {
	future := testNow.Add(48 * time.Hour)

	tests := []struct {
		name       string
		token      string
		failFor    map[int64]error
		id         string
		wantStatus OutcomeStatus
		wantMsg    string
		wantSent   int
		wantMarked bool
	}{
		{
			name:       "sends regardless of due state",
			token:      "token",
			id:         "future",
			wantStatus: OutcomeSent,
			wantMsg:    "Notification sent for task future",
			wantSent:   1,
			wantMarked: true,
		},
		{
			name:       "unknown task",
			token:      "token",
			id:         "missing",
			wantStatus: OutcomeNotFound,
			wantMsg:    "Task missing not found",
		},
		{
			name:       "unknown task is reported before configuration",
			id:         "missing",
			wantStatus: OutcomeNotFound,
			wantMsg:    "Task missing not found",
		},
		{
			name:       "missing token",
			id:         "future",
			wantStatus: OutcomeNotConfigured,
			wantMsg:    "Bot token not configured",
		},
		{
			name:       "delivery failure",
			token:      "token",
			failFor:    map[int64]error{7: errors.New("chat not found")},
			id:         "future",
			wantStatus: OutcomeFailed,
			wantMsg:    "Failed: send: chat not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(database.Task{ID: "future", TelegramID: 7, Title: "Later", DueDate: &future})
			ch := &fakeChannel{failFor: tt.failFor}
			svc := newTestService(src, ch, Config{BotToken: tt.token})

			outcome := svc.NotifyTask(context.Background(), tt.id)

			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.Equal(t, tt.wantMsg, outcome.Message)
			assert.Len(t, ch.sent, tt.wantSent)
			if tt.id == "future" {
				assert.Equal(t, tt.wantMarked, src.notified("future"))
			}
		})
	}
}
