// Package sqlitestore is a modernc.org/sqlite-backed implementation of
// store.Store, grounded on flowpbx-flowpbx's internal/database package
// (WAL mode, busy_timeout, single-writer connection) but narrowed to the
// three tables this engine's interface actually needs (spec.md §6).
package sqlitestore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/whispertalk/sipbridge/internal/store"
)

// Store wraps a sql.DB connection opened against the engine's --db path.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite file at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sip_lines (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			password TEXT NOT NULL,
			server_host TEXT NOT NULL,
			server_port INTEGER NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS callers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			number TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS calls (
			numeric_id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL UNIQUE,
			caller_id INTEGER NOT NULL REFERENCES callers(id),
			line_id INTEGER NOT NULL REFERENCES sip_lines(id),
			number TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT (datetime('now')),
			ended_at DATETIME
		);
	`)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetAllSIPLines() ([]store.Line, error) {
	rows, err := s.db.Query(`SELECT id, username, password, server_host, server_port, display_name, enabled, status FROM sip_lines`)
	if err != nil {
		return nil, fmt.Errorf("query sip_lines: %w", err)
	}
	defer rows.Close()

	var lines []store.Line
	for rows.Next() {
		var l store.Line
		var enabled int
		if err := rows.Scan(&l.ID, &l.Username, &l.Password, &l.ServerHost, &l.ServerPort, &l.DisplayName, &enabled, &l.Status); err != nil {
			return nil, fmt.Errorf("scan sip_lines row: %w", err)
		}
		l.Enabled = enabled != 0
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *Store) UpdateSIPLineStatus(lineID int, status string) error {
	_, err := s.db.Exec(`UPDATE sip_lines SET status = ? WHERE id = ?`, status, lineID)
	if err != nil {
		return fmt.Errorf("update sip_lines status: %w", err)
	}
	return nil
}

func (s *Store) GetOrCreateCaller(number string) (int, error) {
	var id int
	err := s.db.QueryRow(`SELECT id FROM callers WHERE number = ?`, number).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("query caller: %w", err)
	}

	res, err := s.db.Exec(`INSERT INTO callers (number) VALUES (?)`, number)
	if err != nil {
		return 0, fmt.Errorf("insert caller: %w", err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("caller last insert id: %w", err)
	}
	return int(last), nil
}

func (s *Store) CreateCall(callID string, callerID, lineID int, number string) (int, error) {
	res, err := s.db.Exec(
		`INSERT INTO calls (call_id, caller_id, line_id, number) VALUES (?, ?, ?, ?)`,
		callID, callerID, lineID, number,
	)
	if err != nil {
		return 0, fmt.Errorf("insert call: %w", err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("call last insert id: %w", err)
	}
	return int(last), nil
}

func (s *Store) GetCall(callID string) (int, bool, error) {
	var numericID int
	err := s.db.QueryRow(`SELECT numeric_id FROM calls WHERE call_id = ?`, callID).Scan(&numericID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query call: %w", err)
	}
	return numericID, true, nil
}

func (s *Store) EndCall(callID string, endedAt time.Time) error {
	_, err := s.db.Exec(`UPDATE calls SET ended_at = ? WHERE call_id = ?`, endedAt, callID)
	if err != nil {
		return fmt.Errorf("end call: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
