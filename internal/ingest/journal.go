package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Outcome records what the processor did with an alert
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// JournalEntry is one processed-alert audit record
type JournalEntry struct {
	ID          int64           `json:"id"`
	AlertID     string          `json:"alert_id"`
	Source      string          `json:"source"`
	Outcome     Outcome         `json:"outcome"`
	IncidentID  string          `json:"incident_id,omitempty"`
	Error       string          `json:"error,omitempty"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// Journal is the local audit trail of every alert the processor saw
type Journal interface {
	// Record appends a processed-alert entry
	Record(ctx context.Context, entry *JournalEntry) error

	// List retrieves the most recent entries, newest first
	List(ctx context.Context, limit int) ([]*JournalEntry, error)

	// CountByOutcome returns the number of entries with the given outcome
	CountByOutcome(ctx context.Context, outcome Outcome) (int, error)

	// DeleteBefore removes entries older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) error
}

// SQLiteJournal implements Journal using SQLite
type SQLiteJournal struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteJournal opens (or creates) the journal database at dbPath
func NewSQLiteJournal(logger *zap.Logger, dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	journal := &SQLiteJournal{logger: logger, db: db}
	if err := journal.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return journal, nil
}

func (j *SQLiteJournal) initialize() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS ingest_journal (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_id TEXT NOT NULL,
			source TEXT NOT NULL,
			outcome TEXT NOT NULL,
			incident_id TEXT,
			error TEXT,
			raw_payload TEXT,
			processed_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ingest_journal_alert_id ON ingest_journal(alert_id);
		CREATE INDEX IF NOT EXISTS idx_ingest_journal_outcome ON ingest_journal(outcome);
		CREATE INDEX IF NOT EXISTS idx_ingest_journal_processed_at ON ingest_journal(processed_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize journal database: %w", err)
	}
	return nil
}

// Record implements Journal.Record
func (j *SQLiteJournal) Record(ctx context.Context, entry *JournalEntry) error {
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now().UTC()
	}

	var payloadStr string
	if len(entry.RawPayload) > 0 {
		payloadStr = string(entry.RawPayload)
	}

	result, err := j.db.ExecContext(ctx, `
		INSERT INTO ingest_journal (
			alert_id, source, outcome, incident_id, error, raw_payload, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.AlertID,
		entry.Source,
		entry.Outcome,
		sql.NullString{String: entry.IncidentID, Valid: entry.IncidentID != ""},
		sql.NullString{String: entry.Error, Valid: entry.Error != ""},
		sql.NullString{String: payloadStr, Valid: payloadStr != ""},
		entry.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// List implements Journal.List
func (j *SQLiteJournal) List(ctx context.Context, limit int) ([]*JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, alert_id, source, outcome, incident_id, error, raw_payload, processed_at
		FROM ingest_journal
		ORDER BY processed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []*JournalEntry
	for rows.Next() {
		entry := &JournalEntry{}
		var incidentID, errorStr, payload sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.AlertID,
			&entry.Source,
			&entry.Outcome,
			&incidentID,
			&errorStr,
			&payload,
			&entry.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}

		if incidentID.Valid {
			entry.IncidentID = incidentID.String
		}
		if errorStr.Valid {
			entry.Error = errorStr.String
		}
		if payload.Valid && payload.String != "" {
			entry.RawPayload = json.RawMessage(payload.String)
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

// CountByOutcome implements Journal.CountByOutcome
func (j *SQLiteJournal) CountByOutcome(ctx context.Context, outcome Outcome) (int, error) {
	var count int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ingest_journal WHERE outcome = ?`, outcome).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return count, nil
}

// DeleteBefore implements Journal.DeleteBefore
func (j *SQLiteJournal) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := j.db.ExecContext(ctx,
		`DELETE FROM ingest_journal WHERE processed_at < ?`, before)
	if err != nil {
		return fmt.Errorf("failed to delete journal entries: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	j.logger.Info("Deleted old journal entries",
		zap.Time("before", before),
		zap.Int64("deleted", affected))
	return nil
}

// Close closes the journal database
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
