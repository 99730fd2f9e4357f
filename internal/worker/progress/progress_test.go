package progress

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }

func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

// mockExecutor はExecutorのモック実装。実行されたクエリと引数を記録する。
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []any
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestJob_Run_UpdatesActiveEnrollments(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 4}}
	job := NewJob(mock, newTestLogger(&buf))
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("CAT", 2*60*60))
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, want := range []string{"UPDATE enrollments", "status = 'active'", "total_weeks", "604800"} {
		if !strings.Contains(mock.query, want) {
			t.Errorf("query should contain %q:\n%s", want, mock.query)
		}
	}
	if len(mock.args) != 1 {
		t.Fatalf("args = %v, want 1 argument", mock.args)
	}
	got, ok := mock.args[0].(time.Time)
	if !ok {
		t.Fatalf("arg type = %T, want time.Time", mock.args[0])
	}
	if !got.Equal(fixed) || got.Location() != time.UTC {
		t.Errorf("arg = %v, want %v in UTC", got, fixed)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["updated_count"] != float64(4) {
		t.Errorf("updated_count = %v, want 4", entry["updated_count"])
	}
}

func TestJob_Run_ExecError(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{err: errors.New("connection refused")}
	job := NewJob(mock, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should return an error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %v, want wrapped cause", err)
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected an error log, got %s", buf.String())
	}
}

func TestJob_Run_RowsAffectedError(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{err: errors.New("driver does not support")}}
	job := NewJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("Run() should return an error when RowsAffected fails")
	}
}

func TestJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for mock.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Start() should run the job immediately")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	if got := mock.callCount(); got != 1 {
		t.Errorf("calls = %d, want 1 with an hourly interval", got)
	}
}
