package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQL database connection
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database
func Open(path string) (*DB, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn: conn,
		path: path,
	}

	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate creates or updates the database schema
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver TEXT NOT NULL,
		vendor TEXT,
		brand TEXT,
		kind TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		taken_at DATETIME NOT NULL,
		tjmax INTEGER,
		package_temp INTEGER,
		ratio INTEGER,
		frequency_mhz INTEGER,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time);
	CREATE INDEX IF NOT EXISTS idx_samples_session_id ON samples(session_id);
	CREATE INDEX IF NOT EXISTS idx_samples_taken_at ON samples(taken_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// CreateSession starts a new sampling session
func (db *DB) CreateSession(driver, vendor, brand, kind string) (*Session, error) {
	now := time.Now()
	s := &Session{
		Driver:    driver,
		Vendor:    vendor,
		Brand:     brand,
		Kind:      kind,
		StartTime: now,
		CreatedAt: now,
	}

	result, err := db.conn.Exec(
		`INSERT INTO sessions (driver, vendor, brand, kind, start_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.Driver, s.Vendor, s.Brand, s.Kind, s.StartTime, s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	s.ID = id
	return s, nil
}

// FinishSession marks a session as ended, recording cause if it is non-nil
func (db *DB) FinishSession(id int64, cause error) error {
	var msg sql.NullString
	if cause != nil {
		msg = sql.NullString{String: cause.Error(), Valid: true}
	}

	result, err := db.conn.Exec(
		`UPDATE sessions SET end_time = ?, error = ? WHERE id = ?`,
		time.Now(), msg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return nil
}

const sessionColumns = `s.id, s.driver, s.vendor, s.brand, s.kind, s.start_time, s.end_time,
	(SELECT COUNT(*) FROM samples WHERE session_id = s.id), s.error, s.created_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	s := &Session{}
	var vendor, brand, msg sql.NullString
	var end sql.NullTime
	err := row.Scan(
		&s.ID, &s.Driver, &vendor, &brand, &s.Kind, &s.StartTime, &end,
		&s.Samples, &msg, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Vendor = vendor.String
	s.Brand = brand.String
	s.Error = msg.String
	if end.Valid {
		t := end.Time
		s.EndTime = &t
	}
	return s, nil
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(id int64) (*Session, error) {
	row := db.conn.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListSessions retrieves sessions based on filters, newest first
func (db *DB) ListSessions(filter SessionFilter) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions s WHERE 1=1`
	args := []interface{}{}

	if filter.Driver != "" {
		query += " AND s.driver = ?"
		args = append(args, filter.Driver)
	}

	if filter.StartTime != nil {
		query += " AND s.start_time >= ?"
		args = append(args, filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND s.start_time <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY s.start_time DESC, s.id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// CreateSample stores one set of readings for a session
func (db *DB) CreateSample(sample *Sample) error {
	if sample.TakenAt.IsZero() {
		sample.TakenAt = time.Now()
	}

	result, err := db.conn.Exec(
		`INSERT INTO samples (session_id, taken_at, tjmax, package_temp, ratio, frequency_mhz)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sample.SessionID, sample.TakenAt, sample.TjMax, sample.PackageTemp,
		sample.Ratio, sample.FrequencyMHz,
	)
	if err != nil {
		return fmt.Errorf("failed to create sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	sample.ID = id
	return nil
}

// ListSamples retrieves samples based on filters, newest first
func (db *DB) ListSamples(filter SampleFilter) ([]*Sample, error) {
	query := `SELECT id, session_id, taken_at, tjmax, package_temp, ratio, frequency_mhz
	          FROM samples WHERE 1=1`
	args := []interface{}{}

	if filter.SessionID != nil {
		query += " AND session_id = ?"
		args = append(args, *filter.SessionID)
	}

	if filter.Since != nil {
		query += " AND taken_at >= ?"
		args = append(args, *filter.Since)
	}

	query += " ORDER BY taken_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []*Sample
	for rows.Next() {
		s := &Sample{}
		err := rows.Scan(
			&s.ID, &s.SessionID, &s.TakenAt, &s.TjMax,
			&s.PackageTemp, &s.Ratio, &s.FrequencyMHz,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}
