// Package store is the durable side of the pipeline: call records, their
// status checkpoints, transcripts, analyses and action items, backed by
// SQLite. Enum-valued columns are validated here, at the storage boundary.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"call-insights-go/internal/analysis"
	"call-insights-go/internal/transcription"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Status is a call's position in the processing state machine.
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusAnalyzing    Status = "analyzing"
	StatusAnalyzed     Status = "analyzed"
	StatusFailed       Status = "failed"
)

// ParseStatus validates a status value read from or written to storage.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusTranscribing, StatusTranscribed,
		StatusAnalyzing, StatusAnalyzed, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown call status %q", s)
}

// Call is one unit of work: an uploaded, pre-validated audio recording.
type Call struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	FilePath        string    `json:"file_path"`
	FileSize        int64     `json:"file_size"`
	DurationSeconds float64   `json:"duration_seconds"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StoredActionItem is an action item row; completion is managed outside the
// pipeline.
type StoredActionItem struct {
	ID          string    `json:"id"`
	CallID      string    `json:"call_id"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store wraps SQLite access for calls and their pipeline artifacts.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_size INTEGER,
			duration_seconds REAL,
			status TEXT NOT NULL,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS transcripts (
			call_id TEXT PRIMARY KEY,
			raw_text TEXT NOT NULL,
			segments_json TEXT,
			detected_language TEXT,
			word_count INTEGER,
			created_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS call_analyses (
			call_id TEXT PRIMARY KEY,
			performance_score REAL,
			call_reason TEXT,
			call_reason_confidence REAL,
			call_outcome TEXT,
			call_outcome_confidence REAL,
			interest_level TEXT,
			conversion_likelihood REAL,
			overall_confidence REAL,
			missed_opportunity_flag INTEGER,
			payload_json TEXT NOT NULL,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS action_items (
			id TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			category TEXT NOT NULL,
			priority TEXT NOT NULL,
			description TEXT NOT NULL,
			is_completed INTEGER DEFAULT 0,
			created_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_action_items_call ON action_items(call_id);`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			category TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateCall inserts a new call in pending status.
func (s *Store) CreateCall(ctx context.Context, c *Call) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	if _, err := ParseStatus(string(c.Status)); err != nil {
		return err
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls(id, filename, file_path, file_size, duration_seconds, status, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Filename, c.FilePath, c.FileSize, c.DurationSeconds, string(c.Status), c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *Store) GetCall(ctx context.Context, id string) (*Call, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, file_path, file_size, duration_seconds, status, created_at, updated_at
		 FROM calls WHERE id = ?`, id)

	var c Call
	var status string
	err := row.Scan(&c.ID, &c.Filename, &c.FilePath, &c.FileSize, &c.DurationSeconds,
		&status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("call %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.Status, err = ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCalls returns calls newest first, optionally filtered by status.
func (s *Store) ListCalls(ctx context.Context, status string, limit, offset int) ([]Call, error) {
	query := `SELECT id, filename, file_path, file_size, duration_seconds, status, created_at, updated_at
		FROM calls`
	args := []any{}
	if status != "" {
		if _, err := ParseStatus(status); err != nil {
			return nil, err
		}
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		var c Call
		var st string
		if err := rows.Scan(&c.ID, &c.Filename, &c.FilePath, &c.FileSize, &c.DurationSeconds,
			&st, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if c.Status, err = ParseStatus(st); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CommitStatus durably records a status checkpoint for a call.
func (s *Store) CommitStatus(ctx context.Context, id string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE calls SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("call %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveTranscript upserts the transcript for a call; reprocessing overwrites.
func (s *Store) SaveTranscript(ctx context.Context, callID string, t *transcription.Transcript) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcripts(call_id, raw_text, segments_json, detected_language, word_count, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET
			raw_text = excluded.raw_text,
			segments_json = excluded.segments_json,
			detected_language = excluded.detected_language,
			word_count = excluded.word_count,
			created_at = excluded.created_at`,
		callID, t.Text, string(segments), t.DetectedLanguage, t.WordCount, time.Now().UTC())
	return err
}

// GetTranscript returns the transcript for a call, or ErrNotFound.
func (s *Store) GetTranscript(ctx context.Context, callID string) (*transcription.Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT raw_text, segments_json, detected_language, word_count
		 FROM transcripts WHERE call_id = ?`, callID)

	var t transcription.Transcript
	var segments string
	err := row.Scan(&t.Text, &segments, &t.DetectedLanguage, &t.WordCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript for call %s: %w", callID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if segments != "" {
		if err := json.Unmarshal([]byte(segments), &t.Segments); err != nil {
			return nil, fmt.Errorf("decode transcript segments: %w", err)
		}
	}
	t.Validate()
	return &t, nil
}

// SaveAnalysis stores the merged record and replaces the call's action items
// in a single transaction. Category and priority values are rejected here if
// they fall outside the closed sets.
func (s *Store) SaveAnalysis(ctx context.Context, callID string, res *analysis.Result) error {
	for _, it := range res.ActionItems {
		if _, err := analysis.ParseCategory(string(it.Category)); err != nil {
			return err
		}
		if _, err := analysis.ParsePriority(string(it.Priority)); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO call_analyses(call_id, performance_score, call_reason, call_reason_confidence,
			call_outcome, call_outcome_confidence, interest_level, conversion_likelihood,
			overall_confidence, missed_opportunity_flag, payload_json, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET
			performance_score = excluded.performance_score,
			call_reason = excluded.call_reason,
			call_reason_confidence = excluded.call_reason_confidence,
			call_outcome = excluded.call_outcome,
			call_outcome_confidence = excluded.call_outcome_confidence,
			interest_level = excluded.interest_level,
			conversion_likelihood = excluded.conversion_likelihood,
			overall_confidence = excluded.overall_confidence,
			missed_opportunity_flag = excluded.missed_opportunity_flag,
			payload_json = excluded.payload_json,
			updated_at = excluded.updated_at`,
		callID, res.PerformanceScore, string(res.CallReason), res.CallReasonConfidence,
		string(res.CallOutcome), res.CallOutcomeConfidence, string(res.InterestLevel),
		res.ConversionLikelihood, res.OverallConfidence, res.MissedOpportunityFlag,
		string(payload), now, now)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM action_items WHERE call_id = ?`, callID); err != nil {
		return err
	}
	for _, it := range res.ActionItems {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO action_items(id, call_id, category, priority, description, is_completed, created_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), callID, string(it.Category), string(it.Priority),
			it.Description, it.IsCompleted, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetAnalysis returns the full merged record for a call, or ErrNotFound.
func (s *Store) GetAnalysis(ctx context.Context, callID string) (*analysis.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM call_analyses WHERE call_id = ?`, callID)

	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis for call %s: %w", callID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var res analysis.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("decode analysis payload: %w", err)
	}
	return &res, nil
}

// ActionItems lists a call's action items, oldest first.
func (s *Store) ActionItems(ctx context.Context, callID string) ([]StoredActionItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, call_id, category, priority, description, is_completed, created_at
		 FROM action_items WHERE call_id = ? ORDER BY created_at, id`, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredActionItem
	for rows.Next() {
		var it StoredActionItem
		if err := rows.Scan(&it.ID, &it.CallID, &it.Category, &it.Priority,
			&it.Description, &it.IsCompleted, &it.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ActionItemCount returns how many action items a call has.
func (s *Store) ActionItemCount(ctx context.Context, callID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM action_items WHERE call_id = ?`, callID).Scan(&n)
	return n, err
}

// ProductNames returns the catalog names fed to the product sub-analysis.
func (s *Store) ProductNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// SeedProducts inserts catalog entries, ignoring names already present.
func (s *Store) SeedProducts(ctx context.Context, names []string) error {
	for _, n := range names {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO products(id, name) VALUES(?, ?) ON CONFLICT(name) DO NOTHING`,
			uuid.New().String(), n)
		if err != nil {
			return err
		}
	}
	return nil
}
