// Package journal records simulation runs in a SQLite database: one row per
// run, the worker lifecycle events of that run and periodic throughput
// samples.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sugawarayuuta/sonnet"
	_ "modernc.org/sqlite" // SQLite driver

	"stardust/internal/engine"
)

// ErrNoRun is returned when recording before StartRun.
var ErrNoRun = errors.New("journal: no active run")

// RunInfo describes a run when it starts.
type RunInfo struct {
	Width   int
	Height  int
	Workers int
	Scene   string
	Seed    int64
	// Config is stored as JSON.
	Config any
}

// Summary is stored when a run finishes.
type Summary struct {
	Ticks    int32                   `json:"ticks"`
	Duration time.Duration           `json:"duration"`
	Tick     engine.CoordinatorStats `json:"coordinator"`
	Pool     engine.PoolStats        `json:"pool"`
}

// Sample is one throughput measurement.
type Sample struct {
	At       time.Time
	Tick     int32
	Advanced uint64
	Dropped  uint64
	Moves    uint64
	Crashes  uint64
}

// Run is a stored run.
type Run struct {
	ID         int64      `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Workers    int        `json:"workers"`
	Scene      string     `json:"scene"`
	Seed       int64      `json:"seed"`
	Summary    *Summary   `json:"summary,omitempty"`
}

// EventRow is a stored worker event.
type EventRow struct {
	At     time.Time      `json:"at"`
	Worker int32          `json:"worker"`
	Kind   string         `json:"kind"`
	Tick   *int32         `json:"tick,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

type pendingEvent struct {
	at     time.Time
	worker int32
	kind   string
	tick   *int32
	detail map[string]any
}

// Journal is a run journal backed by SQLite. HandleEvent buffers in memory;
// Flush writes the buffer.
type Journal struct {
	db  *sql.DB
	now func() time.Time

	mu      sync.Mutex
	run     int64
	pending []pendingEvent
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close flushes pending events and closes the database.
func (j *Journal) Close() error {
	ferr := j.Flush(context.Background())
	if err := j.db.Close(); err != nil {
		return err
	}
	if errors.Is(ferr, ErrNoRun) {
		return nil
	}
	return ferr
}

// StartRun inserts a run row and makes it the target of later records.
func (j *Journal) StartRun(ctx context.Context, info RunInfo) (int64, error) {
	cfg, err := sonnet.Marshal(info.Config)
	if err != nil {
		return 0, fmt.Errorf("failed to encode config: %w", err)
	}
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, width, height, workers, scene, seed, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		formatTime(j.now()), info.Width, info.Height, info.Workers, info.Scene, info.Seed, string(cfg))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	j.mu.Lock()
	j.run = id
	j.mu.Unlock()
	return id, nil
}

// HandleEvent queues a worker event for the active run. It implements
// engine.EventSink and never blocks on the database.
func (j *Journal) HandleEvent(e engine.Event) {
	p := pendingEvent{at: j.now(), worker: e.Worker()}
	switch e := e.(type) {
	case engine.EventReady:
		p.kind = "ready"
	case engine.EventLoadFailed:
		p.kind = "load_failed"
		p.detail = map[string]any{"error": e.Err.Error()}
	case engine.EventCrashed:
		p.kind = "crashed"
		tick := e.Tick
		p.tick = &tick
		p.detail = map[string]any{"reason": e.Reason, "released": e.Released}
	case engine.EventExited:
		p.kind = "exited"
	default:
		return
	}
	j.mu.Lock()
	j.pending = append(j.pending, p)
	j.mu.Unlock()
}

// Flush writes queued events in one transaction.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	run, batch := j.run, j.pending
	if run == 0 {
		j.mu.Unlock()
		if len(batch) == 0 {
			return nil
		}
		return ErrNoRun
	}
	j.pending = nil
	j.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (run_id, at, worker, kind, tick, detail) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range batch {
		var detail sql.NullString
		if p.detail != nil {
			b, err := sonnet.Marshal(p.detail)
			if err != nil {
				return fmt.Errorf("failed to encode event detail: %w", err)
			}
			detail = sql.NullString{String: string(b), Valid: true}
		}
		var tick sql.NullInt32
		if p.tick != nil {
			tick = sql.NullInt32{Int32: *p.tick, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run, formatTime(p.at), p.worker, p.kind, tick, detail); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}
	return tx.Commit()
}

// RecordSample stores a throughput sample for the active run.
func (j *Journal) RecordSample(ctx context.Context, s Sample) error {
	run := j.activeRun()
	if run == 0 {
		return ErrNoRun
	}
	if s.At.IsZero() {
		s.At = j.now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO samples (run_id, at, tick, advanced, dropped, moves, crashes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run, formatTime(s.At), s.Tick, int64(s.Advanced), int64(s.Dropped), int64(s.Moves), int64(s.Crashes))
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// FinishRun flushes pending events and stores the run summary.
func (j *Journal) FinishRun(ctx context.Context, s Summary) error {
	if err := j.Flush(ctx); err != nil {
		return err
	}
	run := j.activeRun()
	if run == 0 {
		return ErrNoRun
	}
	b, err := sonnet.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if _, err := j.db.ExecContext(ctx, `UPDATE runs SET finished_at = ?, summary = ? WHERE id = ?`,
		formatTime(j.now()), string(b), run); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

func (j *Journal) activeRun() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.run
}

// Runs lists the most recent runs first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, width, height, workers, scene, seed, summary
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
			summary  sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Width, &r.Height, &r.Workers, &r.Scene, &r.Seed, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			t := parseTime(finished.String)
			r.FinishedAt = &t
		}
		if summary.Valid {
			var s Summary
			if err := sonnet.Unmarshal([]byte(summary.String), &s); err != nil {
				return nil, fmt.Errorf("failed to decode summary of run %d: %w", r.ID, err)
			}
			r.Summary = &s
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Events returns the events of a run in insertion order, optionally filtered
// by kind.
func (j *Journal) Events(ctx context.Context, runID int64, kind string) ([]EventRow, error) {
	query := `SELECT at, worker, kind, tick, detail FROM events WHERE run_id = ?`
	args := []any{runID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	rows, err := j.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var (
			e      EventRow
			at     string
			tick   sql.NullInt32
			detail sql.NullString
		)
		if err := rows.Scan(&at, &e.Worker, &e.Kind, &tick, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.At = parseTime(at)
		if tick.Valid {
			t := tick.Int32
			e.Tick = &t
		}
		if detail.Valid {
			if err := sonnet.Unmarshal([]byte(detail.String), &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to decode event detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Samples returns the throughput samples of a run ordered by tick.
func (j *Journal) Samples(ctx context.Context, runID int64) ([]Sample, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT at, tick, advanced, dropped, moves, crashes
		FROM samples WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			s                                 Sample
			at                                string
			advanced, dropped, moves, crashes int64
		)
		if err := rows.Scan(&at, &s.Tick, &advanced, &dropped, &moves, &crashes); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.At = parseTime(at)
		s.Advanced, s.Dropped, s.Moves, s.Crashes = uint64(advanced), uint64(dropped), uint64(moves), uint64(crashes)
		out = append(out, s)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
