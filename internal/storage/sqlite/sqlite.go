package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the database file inside the data directory
const FileName = "buddylist.db"

type DB struct {
	db *sql.DB
}

func New(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, FileName)

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &DB{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS pounces (
			id TEXT PRIMARY KEY,
			protocol TEXT NOT NULL,
			account TEXT NOT NULL,
			who TEXT NOT NULL,
			events INTEGER NOT NULL,
			actions_json TEXT,
			save INTEGER NOT NULL DEFAULT 0,
			created INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pounces_account ON pounces(protocol, account)`,

		`CREATE TABLE IF NOT EXISTS system_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			protocol TEXT NOT NULL,
			account TEXT NOT NULL,
			who TEXT NOT NULL,
			event TEXT NOT NULL,
			message TEXT,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_system_log_account ON system_log(protocol, account)`,
		`CREATE INDEX IF NOT EXISTS idx_system_log_timestamp ON system_log(timestamp)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	// Databases created before pounces carried a note lack the column.
	if _, err := d.db.Exec(`ALTER TABLE pounces ADD COLUMN note TEXT`); err != nil {
		if !strings.Contains(strings.ToLower(err.Error()), "duplicate column name") {
			return fmt.Errorf("failed to ensure note column: %w", err)
		}
	}

	return nil
}

type Pounce struct {
	ID       string
	Protocol string
	Account  string
	Who      string
	Events   int
	Actions  map[string]string
	Save     bool
	Note     string
	Created  time.Time
}

func (d *DB) SavePounce(p Pounce) error {
	actions, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode pounce actions: %w", err)
	}
	_, err = d.db.Exec(`
		INSERT OR REPLACE INTO pounces (id, protocol, account, who, events, actions_json, save, note, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Protocol, p.Account, p.Who, p.Events, string(actions), p.Save, p.Note, p.Created.Unix())
	return err
}

func (d *DB) GetPounces(protocol, account string) ([]Pounce, error) {
	return d.queryPounces(`
		SELECT id, protocol, account, who, events, actions_json, save, note, created
		FROM pounces
		WHERE protocol = ? AND account = ?
		ORDER BY created, id
	`, protocol, account)
}

func (d *DB) GetAllPounces() ([]Pounce, error) {
	return d.queryPounces(`
		SELECT id, protocol, account, who, events, actions_json, save, note, created
		FROM pounces
		ORDER BY created, id
	`)
}

func (d *DB) queryPounces(query string, args ...any) ([]Pounce, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pounces []Pounce
	for rows.Next() {
		var p Pounce
		var created int64
		var actions, note sql.NullString

		if err := rows.Scan(&p.ID, &p.Protocol, &p.Account, &p.Who, &p.Events, &actions, &p.Save, &note, &created); err != nil {
			return nil, err
		}

		if actions.Valid && actions.String != "" {
			if err := json.Unmarshal([]byte(actions.String), &p.Actions); err != nil {
				return nil, fmt.Errorf("failed to decode actions of pounce %s: %w", p.ID, err)
			}
		}
		if note.Valid {
			p.Note = note.String
		}
		p.Created = time.Unix(created, 0)
		pounces = append(pounces, p)
	}
	return pounces, rows.Err()
}

func (d *DB) DeletePounce(id string) error {
	_, err := d.db.Exec("DELETE FROM pounces WHERE id = ?", id)
	return err
}

func (d *DB) DeletePouncesByAccount(protocol, account string) error {
	_, err := d.db.Exec("DELETE FROM pounces WHERE protocol = ? AND account = ?", protocol, account)
	return err
}

type LogEntry struct {
	ID        int64
	Protocol  string
	Account   string
	Who       string
	Event     string
	Message   string
	Timestamp time.Time
}

func (d *DB) AppendLog(e LogEntry) error {
	_, err := d.db.Exec(`
		INSERT INTO system_log (protocol, account, who, event, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Protocol, e.Account, e.Who, e.Event, e.Message, e.Timestamp.Unix())
	return err
}

// GetLog returns the newest limit entries of an account, oldest first
func (d *DB) GetLog(protocol, account string, limit int) ([]LogEntry, error) {
	rows, err := d.db.Query(`
		SELECT id, protocol, account, who, event, message, timestamp
		FROM system_log
		WHERE protocol = ? AND account = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, protocol, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var ts int64
		var message sql.NullString

		if err := rows.Scan(&e.ID, &e.Protocol, &e.Account, &e.Who, &e.Event, &message, &ts); err != nil {
			return nil, err
		}
		if message.Valid {
			e.Message = message.String
		}
		e.Timestamp = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (d *DB) DeleteLog(protocol, account string) error {
	_, err := d.db.Exec("DELETE FROM system_log WHERE protocol = ? AND account = ?", protocol, account)
	return err
}
