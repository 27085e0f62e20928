package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/skywatch/pkg/logger"
)

// TranscriptRecord is one archived transmission transcript.
type TranscriptRecord struct {
	ID         int64     `json:"id"`
	SequenceID int64     `json:"sequence_id"`
	Callsign   string    `json:"callsign"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}

// TranscriptStorage handles storage of transcript records
type TranscriptStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTranscriptStorage creates a new SQLite transcript storage
func NewTranscriptStorage(db *sql.DB, log *logger.Logger) (*TranscriptStorage, error) {
	storage := &TranscriptStorage{
		db:     db,
		logger: log.Named("sqlite-transcripts"),
	}

	if err := storage.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize transcript storage: %w", err)
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *TranscriptStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sequence_id INTEGER NOT NULL,
			callsign TEXT NOT NULL,
			text TEXT NOT NULL,
			confidence REAL NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcripts table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_transcripts_callsign ON transcripts(callsign)`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_timestamp ON transcripts(timestamp)`,
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create transcript index: %w", err)
		}
	}

	return nil
}

// StoreTranscript stores a transcript record
func (s *TranscriptStorage) StoreTranscript(record *TranscriptRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO transcripts
		(sequence_id, callsign, text, confidence, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.SequenceID,
		record.Callsign,
		record.Text,
		record.Confidence,
		record.Timestamp.Format(time.RFC3339),
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transcript: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetTranscriptsByCallsign returns transcripts for a specific callsign
func (s *TranscriptStorage) GetTranscriptsByCallsign(callsign string, limit int) ([]*TranscriptRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, sequence_id, callsign, text, confidence, timestamp, created_at
		FROM transcripts
		WHERE callsign = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		callsign, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts by callsign: %w", err)
	}
	defer rows.Close()

	return s.scanTranscriptRows(rows)
}

// GetRecentTranscripts returns recent transcripts across all aircraft
func (s *TranscriptStorage) GetRecentTranscripts(limit int) ([]*TranscriptRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, sequence_id, callsign, text, confidence, timestamp, created_at
		FROM transcripts
		ORDER BY timestamp DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transcripts: %w", err)
	}
	defer rows.Close()

	return s.scanTranscriptRows(rows)
}

// PruneBefore deletes transcripts older than cutoff and returns the
// number removed.
func (s *TranscriptStorage) PruneBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM transcripts WHERE timestamp < ?`,
		cutoff.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune transcripts: %w", err)
	}
	return result.RowsAffected()
}

// scanTranscriptRows scans database rows into TranscriptRecord structs
func (s *TranscriptStorage) scanTranscriptRows(rows *sql.Rows) ([]*TranscriptRecord, error) {
	var records []*TranscriptRecord
	for rows.Next() {
		var record TranscriptRecord
		var timestamp, createdAt string

		if err := rows.Scan(
			&record.ID,
			&record.SequenceID,
			&record.Callsign,
			&record.Text,
			&record.Confidence,
			&timestamp,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}

		var err error
		record.Timestamp, err = time.Parse(time.RFC3339, timestamp)
		if err != nil {
			s.logger.Warn("Invalid transcript timestamp", logger.String("value", timestamp))
		}
		record.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			s.logger.Warn("Invalid transcript created_at", logger.String("value", createdAt))
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcript rows: %w", err)
	}

	return records, nil
}
