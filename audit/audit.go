// CLAUDE:SUMMARY Async SQLite audit trail of siteforge operations, plus a kit.Middleware that records every wrapped endpoint call.
// Package audit records who triggered which operation, through which
// transport, and whether it succeeded. Parameters are stored as truncated JSON
// summaries; requests carrying file contents implement Summarizer so the
// contents themselves stay out of the trail.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/siteforge/dbopen"
	"github.com/hazyhaar/siteforge/idgen"
	"github.com/hazyhaar/siteforge/kit"
)

// Schema is the DDL for the audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id      TEXT PRIMARY KEY,
    timestamp     INTEGER NOT NULL,
    action        TEXT NOT NULL,
    user_id       TEXT NOT NULL DEFAULT '',
    transport     TEXT NOT NULL DEFAULT 'http',
    request_id    TEXT NOT NULL DEFAULT '',
    parameters    TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_audit_action_time ON audit_log(action, timestamp DESC);
`

const insertSQL = `INSERT INTO audit_log
	(entry_id, timestamp, action, user_id, transport, request_id,
	 parameters, status, error_message, duration_ms)
	VALUES (?,?,?,?,?,?,?,?,?,?)`

// MaxParameters caps the stored parameter JSON. Generated files can be large.
const MaxParameters = 2048

const (
	defaultBuffer = 256
	batchSize     = 32
	flushInterval = 2 * time.Second
)

// Entry is one audit record. Timestamp is Unix milliseconds.
type Entry struct {
	EntryID    string
	Timestamp  int64
	Action     string
	UserID     string
	Transport  string
	RequestID  string
	Parameters string
	Status     string // "success" or "error"
	Error      string
	DurationMs int64
}

// Logger is the audit sink used by services and middleware.
type Logger interface {
	Log(ctx context.Context, e *Entry) error
	LogAsync(e *Entry)
	Close() error
}

// SQLiteLogger batches entries into the audit_log table from a single
// background goroutine. Close drains pending entries.
type SQLiteLogger struct {
	db    *sql.DB
	newID idgen.Generator
	ch    chan *Entry
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// Option configures a SQLiteLogger.
type Option func(*SQLiteLogger)

// WithIDGenerator sets the generator for entry IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.newID = gen }
}

// WithBufferSize sets the async queue capacity.
func WithBufferSize(n int) Option {
	return func(l *SQLiteLogger) {
		if n > 0 {
			l.ch = make(chan *Entry, n)
		}
	}
}

// NewSQLiteLogger starts the flush goroutine. Call Init before logging unless
// the schema was applied at open time.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:    db,
		newID: idgen.Audit,
		ch:    make(chan *Entry, defaultBuffer),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// Init creates the audit table.
func (l *SQLiteLogger) Init() error {
	_, err := l.db.Exec(Schema)
	return err
}

// Log inserts an entry synchronously.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	return l.insert(ctx, e)
}

// LogAsync queues an entry. A full queue falls back to a synchronous insert.
func (l *SQLiteLogger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	select {
	case l.ch <- e:
	default:
		slog.Warn("audit: buffer full, sync fallback", "action", e.Action)
		if err := l.insert(context.Background(), e); err != nil {
			slog.Error("audit: sync fallback failed", "error", err, "entry_id", e.EntryID)
		}
	}
}

// Close drains the queue and stops the flush goroutine. Safe to call twice.
func (l *SQLiteLogger) Close() error {
	l.once.Do(func() { close(l.stop) })
	<-l.done
	return nil
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

func (l *SQLiteLogger) insert(ctx context.Context, e *Entry) error {
	_, err := dbopen.Exec(ctx, l.db, insertSQL,
		e.EntryID, e.Timestamp, e.Action, e.UserID, e.Transport, e.RequestID,
		e.Parameters, e.Status, e.Error, e.DurationMs)
	return err
}

func (l *SQLiteLogger) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	batch := make([]*Entry, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			slog.Error("audit: begin tx", "error", err)
			return
		}
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			tx.Rollback()
			slog.Error("audit: prepare", "error", err)
			return
		}
		defer stmt.Close()

		for _, e := range batch {
			if _, err := stmt.ExecContext(ctx,
				e.EntryID, e.Timestamp, e.Action, e.UserID, e.Transport, e.RequestID,
				e.Parameters, e.Status, e.Error, e.DurationMs,
			); err != nil {
				slog.Error("audit: insert", "error", err, "entry_id", e.EntryID)
			}
		}
		if err := tx.Commit(); err != nil {
			slog.Error("audit: commit", "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-l.stop:
			for {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Middleware records one entry per endpoint call: the actor, transport and
// request id from the context, a truncated JSON rendering of the request, the
// outcome and the duration.
func Middleware(logger Logger, action string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			requestID := kit.GetRequestID(ctx)
			if requestID == "" {
				requestID = kit.GetTraceID(ctx)
			}
			e := &Entry{
				Action:     action,
				UserID:     kit.GetActor(ctx),
				Transport:  kit.GetTransport(ctx),
				RequestID:  requestID,
				Parameters: Summarize(req),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				e.Error = err.Error()
			}
			logger.LogAsync(e)
			return resp, err
		}
	}
}

// Summarizer is implemented by requests that should not be stored as-is.
type Summarizer interface {
	AuditSummary() any
}

// Summarize renders v (or its AuditSummary) as JSON truncated to at most
// MaxParameters bytes. The cut never splits a UTF-8 sequence.
func Summarize(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(Summarizer); ok {
		v = s.AuditSummary()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	if len(b) > MaxParameters {
		n := MaxParameters
		for n > 0 && !utf8.RuneStart(b[n]) {
			n--
		}
		return string(b[:n]) + "…"
	}
	return string(b)
}

// Nop discards every entry. Used when no audit database is configured.
type Nop struct{}

func (Nop) Log(context.Context, *Entry) error { return nil }
func (Nop) LogAsync(*Entry)                   {}
func (Nop) Close() error                      { return nil }
