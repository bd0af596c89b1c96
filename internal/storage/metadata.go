package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SessionRecord is one finished processing session.
type SessionRecord struct {
	SessionID   string    `json:"session_id"`
	ChatID      int64     `json:"chat_id"`
	SourceType  string    `json:"source_type"`
	Title       string    `json:"title"`
	Outcome     string    `json:"outcome"` // completed, no_speech, failed
	FailedStage string    `json:"failed_stage,omitempty"`
	WordCount   int       `json:"word_count"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	ArchiveURL  string    `json:"archive_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session outcome constants
const (
	OutcomeCompleted = "completed"
	OutcomeNoSpeech  = "no_speech"
	OutcomeFailed    = "failed"
)

// MetadataDB persists session metadata and transcript text in SQLite.
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB opens (and if needed initializes) the database at dbPath.
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL UNIQUE,
		chat_id INTEGER NOT NULL,
		source_type TEXT NOT NULL,
		title TEXT NOT NULL,
		outcome TEXT NOT NULL,
		failed_stage TEXT NOT NULL DEFAULT '',
		word_count INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		archive_url TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_chat_id ON sessions(chat_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveSession records one finished session along with its transcript text.
func (mdb *MetadataDB) SaveSession(rec SessionRecord, transcript string) error {
	query := `
	INSERT INTO sessions (session_id, chat_id, source_type, title, outcome,
		failed_stage, word_count, elapsed_ms, archive_url, transcript, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := mdb.db.Exec(query,
		rec.SessionID, rec.ChatID, rec.SourceType, rec.Title, rec.Outcome,
		rec.FailedStage, rec.WordCount, rec.ElapsedMS, rec.ArchiveURL,
		transcript, createdAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession retrieves one session's metadata.
func (mdb *MetadataDB) GetSession(sessionID string) (SessionRecord, error) {
	query := `
	SELECT session_id, chat_id, source_type, title, outcome, failed_stage,
		word_count, elapsed_ms, archive_url, created_at
	FROM sessions WHERE session_id = ?
	`

	var rec SessionRecord
	err := mdb.db.QueryRow(query, sessionID).Scan(
		&rec.SessionID, &rec.ChatID, &rec.SourceType, &rec.Title,
		&rec.Outcome, &rec.FailedStage, &rec.WordCount, &rec.ElapsedMS,
		&rec.ArchiveURL, &rec.CreatedAt)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}

// TranscriptText returns the stored transcript text for one session.
func (mdb *MetadataDB) TranscriptText(sessionID string) (string, error) {
	var text string
	err := mdb.db.QueryRow(`SELECT transcript FROM sessions WHERE session_id = ?`, sessionID).Scan(&text)
	if err != nil {
		return "", fmt.Errorf("get transcript text: %w", err)
	}
	return text, nil
}

// ListSessions returns the most recent sessions, newest first.
func (mdb *MetadataDB) ListSessions(limit int) ([]SessionRecord, error) {
	query := `
	SELECT session_id, chat_id, source_type, title, outcome, failed_stage,
		word_count, elapsed_ms, archive_url, created_at
	FROM sessions ORDER BY created_at DESC LIMIT ?
	`

	rows, err := mdb.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(
			&rec.SessionID, &rec.ChatID, &rec.SourceType, &rec.Title,
			&rec.Outcome, &rec.FailedStage, &rec.WordCount, &rec.ElapsedMS,
			&rec.ArchiveURL, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
