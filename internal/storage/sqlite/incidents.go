package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/skywatch/pkg/logger"
)

// IncidentRecord is one archived emergency incident.
type IncidentRecord struct {
	ID            string    `json:"id"`
	Callsign      string    `json:"callsign"`
	State         string    `json:"state"`
	UrgencyLevel  string    `json:"urgency_level"`
	EmergencyType string    `json:"emergency_type"`
	Confidence    float64   `json:"confidence"`
	Summary       string    `json:"summary"`
	CallID        string    `json:"call_id,omitempty"`
	CallError     string    `json:"call_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IncidentStorage handles storage of incident records
type IncidentStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewIncidentStorage creates a new SQLite incident storage
func NewIncidentStorage(db *sql.DB, log *logger.Logger) (*IncidentStorage, error) {
	storage := &IncidentStorage{
		db:     db,
		logger: log.Named("sqlite-incidents"),
	}

	if err := storage.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize incident storage: %w", err)
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *IncidentStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			callsign TEXT NOT NULL,
			state TEXT NOT NULL,
			urgency_level TEXT,
			emergency_type TEXT,
			confidence REAL,
			summary TEXT,
			call_id TEXT,
			call_error TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create incidents table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_incidents_callsign ON incidents(callsign)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_state ON incidents(state)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at)`,
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create incident index: %w", err)
		}
	}

	return nil
}

// UpsertIncident inserts or refreshes an incident snapshot.
func (s *IncidentStorage) UpsertIncident(record *IncidentRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO incidents
		(id, callsign, state, urgency_level, emergency_type, confidence, summary, call_id, call_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			urgency_level = excluded.urgency_level,
			emergency_type = excluded.emergency_type,
			confidence = excluded.confidence,
			summary = excluded.summary,
			call_id = excluded.call_id,
			call_error = excluded.call_error,
			updated_at = excluded.updated_at`,
		record.ID,
		record.Callsign,
		record.State,
		record.UrgencyLevel,
		record.EmergencyType,
		record.Confidence,
		record.Summary,
		record.CallID,
		record.CallError,
		record.CreatedAt.Format(time.RFC3339),
		record.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert incident: %w", err)
	}
	return nil
}

// GetIncidentsByCallsign returns incidents for a specific callsign
func (s *IncidentStorage) GetIncidentsByCallsign(callsign string, limit int) ([]*IncidentRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, callsign, state, urgency_level, emergency_type, confidence, summary, call_id, call_error, created_at, updated_at
		FROM incidents
		WHERE callsign = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		callsign, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents by callsign: %w", err)
	}
	defer rows.Close()

	return s.scanIncidentRows(rows)
}

// GetRecentIncidents returns recent incidents across all aircraft
func (s *IncidentStorage) GetRecentIncidents(limit int) ([]*IncidentRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, callsign, state, urgency_level, emergency_type, confidence, summary, call_id, call_error, created_at, updated_at
		FROM incidents
		ORDER BY created_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent incidents: %w", err)
	}
	defer rows.Close()

	return s.scanIncidentRows(rows)
}

// scanIncidentRows scans database rows into IncidentRecord structs
func (s *IncidentStorage) scanIncidentRows(rows *sql.Rows) ([]*IncidentRecord, error) {
	var records []*IncidentRecord
	for rows.Next() {
		var record IncidentRecord
		var urgency, emergencyType, summary, callID, callError sql.NullString
		var confidence sql.NullFloat64
		var createdAt, updatedAt string

		if err := rows.Scan(
			&record.ID,
			&record.Callsign,
			&record.State,
			&urgency,
			&emergencyType,
			&confidence,
			&summary,
			&callID,
			&callError,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}

		record.UrgencyLevel = urgency.String
		record.EmergencyType = emergencyType.String
		record.Confidence = confidence.Float64
		record.Summary = summary.String
		record.CallID = callID.String
		record.CallError = callError.String

		var err error
		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			s.logger.Warn("Invalid incident created_at", logger.String("value", createdAt))
		}
		record.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			s.logger.Warn("Invalid incident updated_at", logger.String("value", updatedAt))
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incident rows: %w", err)
	}

	return records, nil
}
