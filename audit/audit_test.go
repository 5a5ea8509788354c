package audit

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/siteforge/dbopen"
	"github.com/hazyhaar/siteforge/kit"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbopen.OpenMemory(t)
}

func TestSQLiteLogger_Init(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	defer logger.Close()

	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='audit_log'").Scan(&count)
	if count != 1 {
		t.Fatal("audit_log table not created")
	}
}

func TestSQLiteLogger_Log_Sync(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	defer logger.Close()
	logger.Init()

	ctx := context.Background()
	entry := &Entry{
		Action:     "test_action",
		Parameters: `{"key":"value"}`,
	}
	if err := logger.Log(ctx, entry); err != nil {
		t.Fatal(err)
	}

	// Verify defaults were filled.
	if entry.EntryID == "" {
		t.Fatal("entry_id not generated")
	}
	if entry.Timestamp == 0 {
		t.Fatal("timestamp not set")
	}
	if entry.Status != "success" {
		t.Fatalf("status: got %q, want 'success'", entry.Status)
	}
	if entry.Transport != "http" {
		t.Fatalf("transport: got %q, want 'http'", entry.Transport)
	}

	// Verify in DB.
	var action string
	db.QueryRow("SELECT action FROM audit_log WHERE entry_id = ?", entry.EntryID).Scan(&action)
	if action != "test_action" {
		t.Fatalf("DB action: got %q", action)
	}
}

func TestSQLiteLogger_LogAsync(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	entry := &Entry{Action: "async_test"}
	logger.LogAsync(entry)

	// Close flushes the buffer.
	logger.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action='async_test'").Scan(&count)
	if count != 1 {
		t.Fatalf("async entry count: got %d", count)
	}
}

func TestSQLiteLogger_FillDefaults_Error(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	defer logger.Close()
	logger.Init()

	entry := &Entry{
		Action: "failing_op",
		Error:  "something broke",
	}
	logger.Log(context.Background(), entry)

	if entry.Status != "error" {
		t.Fatalf("status for error entry: got %q", entry.Status)
	}
}

func TestSQLiteLogger_WithIDGenerator(t *testing.T) {
	db := setupTestDB(t)
	counter := 0
	gen := func() string {
		counter++
		return "custom_id"
	}

	logger := NewSQLiteLogger(db, WithIDGenerator(gen))
	defer logger.Close()
	logger.Init()

	entry := &Entry{Action: "custom_gen"}
	logger.Log(context.Background(), entry)

	if entry.EntryID != "custom_id" {
		t.Fatalf("custom ID: got %q", entry.EntryID)
	}
}

func TestMiddleware_Success(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	base := func(ctx context.Context, req any) (any, error) {
		return "result", nil
	}

	mw := Middleware(logger, "test_op")
	endpoint := mw(base)

	ctx := kit.WithActor(context.Background(), "127.0.0.1")
	ctx = kit.WithTransport(ctx, "mcp")
	ctx = kit.WithRequestID(ctx, "req_abc")

	resp, err := endpoint(ctx, map[string]string{"foo": "bar"})
	if err != nil {
		t.Fatal(err)
	}
	if resp != "result" {
		t.Fatalf("response: got %v", resp)
	}

	// Close to flush async entries.
	logger.Close()

	var action, userID, transport, status, requestID, params string
	db.QueryRow("SELECT action, user_id, transport, status, request_id, parameters FROM audit_log WHERE action='test_op'").
		Scan(&action, &userID, &transport, &status, &requestID, &params)
	if action != "test_op" {
		t.Fatalf("action: got %q", action)
	}
	if userID != "127.0.0.1" {
		t.Fatalf("user_id: got %q", userID)
	}
	if transport != "mcp" {
		t.Fatalf("transport: got %q", transport)
	}
	if status != "success" {
		t.Fatalf("status: got %q", status)
	}
	if requestID != "req_abc" {
		t.Fatalf("request_id: got %q", requestID)
	}
	if params != `{"foo":"bar"}` {
		t.Fatalf("parameters: got %q", params)
	}
}

func TestMiddleware_Error(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	errFail := errors.New("endpoint failed")
	base := func(ctx context.Context, req any) (any, error) {
		return nil, errFail
	}

	mw := Middleware(logger, "fail_op")
	endpoint := mw(base)

	_, err := endpoint(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v", err)
	}

	logger.Close()

	var status, errMsg string
	db.QueryRow("SELECT status, error_message FROM audit_log WHERE action='fail_op'").
		Scan(&status, &errMsg)
	if status != "error" {
		t.Fatalf("status: got %q", status)
	}
	if errMsg != "endpoint failed" {
		t.Fatalf("error_message: got %q", errMsg)
	}
}

func TestSQLiteLogger_BatchFlush(t *testing.T) {
	db := setupTestDB(t)
	logger := NewSQLiteLogger(db)
	logger.Init()

	for i := 0; i < 50; i++ {
		logger.LogAsync(&Entry{Action: "batch_test"})
	}

	// Batch threshold is 32, so at least one flush happens before Close.
	time.Sleep(100 * time.Millisecond)
	logger.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action='batch_test'").Scan(&count)
	if count != 50 {
		t.Fatalf("batch count: got %d, want 50", count)
	}
}

func TestSummarize_Truncates(t *testing.T) {
	big := map[string]string{"content": strings.Repeat("a", 3*MaxParameters)}
	got := Summarize(big)
	if !strings.HasSuffix(got, "…") || len(got) != MaxParameters+len("…") {
		t.Fatalf("len = %d", len(got))
	}
	if Summarize(nil) != "" {
		t.Fatal("nil request should summarize to empty string")
	}
}

func TestSummarize_KeepsRunesWhole(t *testing.T) {
	// WHAT: A cut landing inside a multi-byte rune backs off to its start.
	// "é" is two bytes and `{"cc":"` is seven, so byte MaxParameters falls mid-rune.
	got := Summarize(map[string]string{"cc": strings.Repeat("é", MaxParameters)})
	if !utf8.ValidString(got) {
		t.Fatalf("summary is not valid UTF-8: %q", got[len(got)-8:])
	}
	if n := len(strings.TrimSuffix(got, "…")); n != MaxParameters-1 {
		t.Fatalf("kept %d bytes, want %d", n, MaxParameters-1)
	}
}

type secretReq struct{ Name, Body string }

func (r secretReq) AuditSummary() any { return map[string]any{"name": r.Name, "bytes": len(r.Body)} }

func TestSummarize_Summarizer(t *testing.T) {
	got := Summarize(secretReq{Name: "index.html", Body: "<p>private</p>"})
	if strings.Contains(got, "private") {
		t.Fatalf("body leaked into summary: %s", got)
	}
	if got != `{"bytes":14,"name":"index.html"}` {
		t.Fatalf("summary = %s", got)
	}
}

func TestSQLiteLogger_CloseTwice(t *testing.T) {
	logger := NewSQLiteLogger(setupTestDB(t))
	logger.Init()
	logger.Close()
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
}
