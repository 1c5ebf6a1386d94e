package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/model"
)

// IncidentFilter narrows ListIncidents results. Zero values mean "any".
type IncidentFilter struct {
	ProvinceCode       string
	Source             model.IncidentSource
	AlertLevel         model.AlertLevel
	VerificationStatus model.VerificationStatus
	IncludeArchived    bool
	Limit              int
}

// IncidentStore persists incidents and answers the dedup and archiving
// queries the pipeline needs
type IncidentStore interface {
	// InsertIncident stores a new incident and returns its id
	InsertIncident(ctx context.Context, incident *model.Incident) (string, error)

	// GetIncident retrieves an incident by id, nil if absent
	GetIncident(ctx context.Context, id string) (*model.Incident, error)

	// ListIncidents retrieves incidents matching the filter, newest first
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]*model.Incident, error)

	// FindRecentIncidentByTitle returns an unarchived incident created
	// after since whose title contains titleFragment, case-insensitive.
	// Returns nil when no match exists.
	FindRecentIncidentByTitle(ctx context.Context, titleFragment string, since time.Time) (*model.Incident, error)

	// UpdateVerification sets the verification status of an incident
	UpdateVerification(ctx context.Context, id string, status model.VerificationStatus) error

	// FindArchiveCandidates returns ids of unarchived rows in table older
	// than cutoff, optionally restricted by an extra predicate fragment
	FindArchiveCandidates(ctx context.Context, table, ageColumn string, cutoff time.Time, extraPredicate string) ([]string, error)

	// BulkArchive marks the given rows archived with a reason and the
	// acting user, returning the number of rows updated
	BulkArchive(ctx context.Context, table string, ids []string, reason, actorID string) (int64, error)
}

// PostgresStore implements IncidentStore on PostgreSQL
type PostgresStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewPostgresStore opens a connection pool against databaseURL
func NewPostgresStore(logger *zap.Logger, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{logger: logger, db: db}, nil
}

// archivableTables lists every table the bulk-archive path may touch.
// Table names are interpolated into SQL, so anything outside this set
// is rejected.
var archivableTables = map[string]bool{
	"incidents":                 true,
	"weather_alerts":            true,
	"immigration_announcements": true,
	"security_alerts":           true,
}

// RunMigrations creates the schema if it does not exist
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS incidents (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			province_code TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			alert_level TEXT NOT NULL,
			source TEXT NOT NULL,
			verification_status TEXT NOT NULL DEFAULT 'unverified',
			confidence_score DOUBLE PRECISION NOT NULL,
			raw_payload JSONB,
			geographic_scope TEXT,
			severity_numeric INTEGER NOT NULL DEFAULT 1,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at TIMESTAMPTZ,
			archive_reason TEXT,
			archived_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_province ON incidents(province_code)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_archived ON incidents(archived)`,
		`CREATE TABLE IF NOT EXISTS weather_alerts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL,
			severity TEXT,
			expires TIMESTAMPTZ,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at TIMESTAMPTZ,
			archive_reason TEXT,
			archived_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS immigration_announcements (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL,
			category TEXT,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at TIMESTAMPTZ,
			archive_reason TEXT,
			archived_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS security_alerts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL,
			category TEXT,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at TIMESTAMPTZ,
			archive_reason TEXT,
			archived_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	s.logger.Info("Database migrations completed")
	return nil
}

// InsertIncident implements IncidentStore.InsertIncident
func (s *PostgresStore) InsertIncident(ctx context.Context, incident *model.Incident) (string, error) {
	if incident.ID == "" {
		incident.ID = uuid.New().String()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents (
			id, title, description, province_code, timestamp, alert_level,
			source, verification_status, confidence_score, raw_payload,
			geographic_scope, severity_numeric, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		incident.ID,
		incident.Title,
		incident.Description,
		incident.ProvinceCode,
		incident.Timestamp,
		incident.AlertLevel,
		incident.Source,
		incident.VerificationStatus,
		incident.ConfidenceScore,
		nullableJSON(incident.RawPayload),
		sql.NullString{String: incident.GeographicScope, Valid: incident.GeographicScope != ""},
		incident.SeverityNumeric,
		incident.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert incident: %w", err)
	}
	return incident.ID, nil
}

const incidentColumns = `
	id, title, description, province_code, timestamp, alert_level,
	source, verification_status, confidence_score, raw_payload,
	geographic_scope, severity_numeric, archived, archived_at,
	archive_reason, created_at`

// GetIncident implements IncidentStore.GetIncident
func (s *PostgresStore) GetIncident(ctx context.Context, id string) (*model.Incident, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)

	incident, err := scanIncident(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

// ListIncidents implements IncidentStore.ListIncidents
func (s *PostgresStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]*model.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
	args := make([]interface{}, 0)

	if !filter.IncludeArchived {
		query += ` AND archived = FALSE`
	}
	if filter.ProvinceCode != "" {
		args = append(args, filter.ProvinceCode)
		query += fmt.Sprintf(" AND province_code = $%d", len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if filter.AlertLevel != "" {
		args = append(args, filter.AlertLevel)
		query += fmt.Sprintf(" AND alert_level = $%d", len(args))
	}
	if filter.VerificationStatus != "" {
		args = append(args, filter.VerificationStatus)
		query += fmt.Sprintf(" AND verification_status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*model.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return incidents, nil
}

// FindRecentIncidentByTitle implements IncidentStore.FindRecentIncidentByTitle
func (s *PostgresStore) FindRecentIncidentByTitle(ctx context.Context, titleFragment string, since time.Time) (*model.Incident, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+incidentColumns+`
		FROM incidents
		WHERE archived = FALSE
		  AND created_at > $1
		  AND POSITION(LOWER($2) IN LOWER(title)) > 0
		ORDER BY created_at DESC
		LIMIT 1`,
		since, titleFragment)

	incident, err := scanIncident(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query recent incidents: %w", err)
	}
	return incident, nil
}

// UpdateVerification implements IncidentStore.UpdateVerification
func (s *PostgresStore) UpdateVerification(ctx context.Context, id string, status model.VerificationStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET verification_status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update verification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("incident not found: %s", id)
	}
	return nil
}

// FindArchiveCandidates implements IncidentStore.FindArchiveCandidates.
// extraPredicate comes from the compiled-in archiving rule table, never
// from user input.
func (s *PostgresStore) FindArchiveCandidates(ctx context.Context, table, ageColumn string, cutoff time.Time, extraPredicate string) ([]string, error) {
	if !archivableTables[table] {
		return nil, fmt.Errorf("table not archivable: %s", table)
	}

	query := fmt.Sprintf(
		`SELECT id FROM %s WHERE archived = FALSE AND %s < $1`, table, ageColumn)
	if extraPredicate != "" {
		query += " AND " + extraPredicate
	}

	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan candidate id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return ids, nil
}

// BulkArchive implements IncidentStore.BulkArchive
func (s *PostgresStore) BulkArchive(ctx context.Context, table string, ids []string, reason, actorID string) (int64, error) {
	if !archivableTables[table] {
		return 0, fmt.Errorf("table not archivable: %s", table)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			archived = TRUE,
			archived_at = NOW(),
			archive_reason = $1,
			archived_by = $2
		WHERE id = ANY($3) AND archived = FALSE`, table)

	result, err := s.db.ExecContext(ctx, query, reason, actorID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to bulk archive: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Bulk archived rows",
		zap.String("table", table),
		zap.Int64("archived", affected),
		zap.String("actor", actorID))

	return affected, nil
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanIncident(row scannable) (*model.Incident, error) {
	var incident model.Incident
	var rawPayload, geoScope, archiveReason sql.NullString
	var archivedAt sql.NullTime

	err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.ProvinceCode,
		&incident.Timestamp,
		&incident.AlertLevel,
		&incident.Source,
		&incident.VerificationStatus,
		&incident.ConfidenceScore,
		&rawPayload,
		&geoScope,
		&incident.SeverityNumeric,
		&incident.Archived,
		&archivedAt,
		&archiveReason,
		&incident.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rawPayload.Valid && rawPayload.String != "" {
		incident.RawPayload = []byte(rawPayload.String)
	}
	if geoScope.Valid {
		incident.GeographicScope = geoScope.String
	}
	if archivedAt.Valid {
		incident.ArchivedAt = &archivedAt.Time
	}
	if archiveReason.Valid {
		incident.ArchiveReason = archiveReason.String
	}

	return &incident, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
