// Package store exports analysis results to a SQLite database.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bimmerbailey/ctxlens/internal/correlate"
	"github.com/bimmerbailey/ctxlens/internal/event"
	"github.com/bimmerbailey/ctxlens/internal/pipeline"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Store is a SQLite export database. Each analyzed source occupies one run;
// saving the same source again replaces its rows.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening export db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInfo describes one stored run.
type RunInfo struct {
	ID         int64
	Source     string
	TotalLines int
	AnalyzedAt time.Time
}

// SaveRun writes every correlated request and independent event in res under
// one run keyed by res.Path, replacing an earlier run for the same source.
func (s *Store) SaveRun(res *pipeline.Result) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	source := res.Path
	if source == "" {
		source = "-"
	}

	if _, err := tx.Exec("DELETE FROM runs WHERE source = ?", source); err != nil {
		return 0, fmt.Errorf("replacing run: %w", err)
	}

	result, err := tx.Exec(`INSERT INTO runs (source, total_lines, analyzed_at) VALUES (?, ?, ?)`,
		source, res.TotalLines, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := insertRequests(tx, runID, res.Requests); err != nil {
		return 0, err
	}
	if err := insertRejections(tx, runID, res.Rejections); err != nil {
		return 0, err
	}
	if err := insertAdaptive(tx, runID, res.Adaptive); err != nil {
		return 0, err
	}
	if err := insertLocal(tx, runID, res.LocalRejections); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func insertRequests(tx *sql.Tx, runID int64, requests []correlate.Request) error {
	stmt, err := tx.Prepare(`INSERT INTO requests
		(run_id, line_no, timestamp, model, max_tokens, stream, message_count,
		 estimated_input_tokens, bytes_saved_total, whitespace_bytes_saved,
		 thinking_bytes_saved, tool_result_bytes_saved, tool_use_input_bytes_saved,
		 history_turns_removed, history_bytes_saved, has_compression, reduction_ratio,
		 context_usage_percentage, actual_input_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing request insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range requests {
		var usage sql.NullFloat64
		if r.ContextUsagePercentage != nil {
			usage = sql.NullFloat64{Float64: *r.ContextUsagePercentage, Valid: true}
		}
		var actual sql.NullInt64
		if r.ActualInputTokens != nil {
			actual = sql.NullInt64{Int64: int64(*r.ActualInputTokens), Valid: true}
		}

		_, err := stmt.Exec(
			runID, r.LineNo, nullString(r.Timestamp), r.Model, r.MaxTokens, boolInt(r.Stream), r.MessageCount,
			r.EstimatedInputTokens, r.BytesSavedTotal, r.Saved[event.Whitespace],
			r.Saved[event.Thinking], r.Saved[event.ToolResult], r.Saved[event.ToolUseInput],
			r.HistoryTurnsRemoved, r.Saved[event.History], boolInt(r.HasCompression), r.ReductionRatio,
			usage, actual,
		)
		if err != nil {
			return fmt.Errorf("inserting request line %d: %w", r.LineNo, err)
		}
	}
	return nil
}

func insertRejections(tx *sql.Tx, runID int64, events []event.UpstreamRejection) error {
	for _, e := range events {
		_, err := tx.Exec(`INSERT INTO upstream_rejections (run_id, line_no, timestamp, request_body_bytes)
			VALUES (?, ?, ?, ?)`, runID, e.LineNo, nullString(e.Timestamp), e.RequestBodyBytes)
		if err != nil {
			return fmt.Errorf("inserting rejection line %d: %w", e.LineNo, err)
		}
	}
	return nil
}

func insertAdaptive(tx *sql.Tx, runID int64, events []event.AdaptiveReduction) error {
	for _, e := range events {
		_, err := tx.Exec(`INSERT INTO adaptive_reductions
			(run_id, line_no, timestamp, conversation_id, initial_bytes, final_bytes,
			 threshold, iters, additional_history_turns_removed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.LineNo, nullString(e.Timestamp), nullString(e.ConversationID), e.InitialBytes, e.FinalBytes,
			e.Threshold, e.Iterations, e.AdditionalHistoryTurnsRemoved)
		if err != nil {
			return fmt.Errorf("inserting adaptive reduction line %d: %w", e.LineNo, err)
		}
	}
	return nil
}

func insertLocal(tx *sql.Tx, runID int64, events []event.LocalRejection) error {
	for _, e := range events {
		_, err := tx.Exec(`INSERT INTO local_rejections
			(run_id, line_no, timestamp, conversation_id, request_body_bytes,
			 image_bytes, effective_bytes, threshold)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, e.LineNo, nullString(e.Timestamp), nullString(e.ConversationID), e.RequestBodyBytes,
			e.ImageBytes, e.EffectiveBytes, e.Threshold)
		if err != nil {
			return fmt.Errorf("inserting local rejection line %d: %w", e.LineNo, err)
		}
	}
	return nil
}

// Runs lists stored runs ordered by id.
func (s *Store) Runs() ([]RunInfo, error) {
	rows, err := s.db.Query("SELECT run_id, source, total_lines, analyzed_at FROM runs ORDER BY run_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		var at string
		if err := rows.Scan(&r.ID, &r.Source, &r.TotalLines, &at); err != nil {
			return nil, err
		}
		r.AnalyzedAt, _ = time.Parse(time.RFC3339, at)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadRequests reads the requests stored for a run in line order.
func (s *Store) LoadRequests(runID int64) ([]correlate.Request, error) {
	rows, err := s.db.Query(`SELECT
		line_no, timestamp, model, max_tokens, stream, message_count,
		estimated_input_tokens, bytes_saved_total, whitespace_bytes_saved,
		thinking_bytes_saved, tool_result_bytes_saved, tool_use_input_bytes_saved,
		history_turns_removed, history_bytes_saved, has_compression, reduction_ratio,
		context_usage_percentage, actual_input_tokens
		FROM requests WHERE run_id = ? ORDER BY line_no`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var requests []correlate.Request
	for rows.Next() {
		var r correlate.Request
		var ts sql.NullString
		var stream, hasCompression int
		var usage sql.NullFloat64
		var actual sql.NullInt64

		err := rows.Scan(
			&r.LineNo, &ts, &r.Model, &r.MaxTokens, &stream, &r.MessageCount,
			&r.EstimatedInputTokens, &r.BytesSavedTotal, &r.Saved[event.Whitespace],
			&r.Saved[event.Thinking], &r.Saved[event.ToolResult], &r.Saved[event.ToolUseInput],
			&r.HistoryTurnsRemoved, &r.Saved[event.History], &hasCompression, &r.ReductionRatio,
			&usage, &actual,
		)
		if err != nil {
			return nil, err
		}

		r.Timestamp = ts.String
		r.Stream = stream != 0
		r.HasCompression = hasCompression != 0
		if usage.Valid {
			pct := usage.Float64
			r.ContextUsagePercentage = &pct
		}
		if actual.Valid {
			n := int(actual.Int64)
			r.ActualInputTokens = &n
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// CountRows returns the number of rows in each event table for a run.
func (s *Store) CountRows(runID int64) (map[string]int, error) {
	counts := make(map[string]int, 4)
	for _, table := range []string{"requests", "upstream_rejections", "adaptive_reductions", "local_rejections"} {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE run_id = ?", runID).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
