package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PlayerRow represents an account in the database
type PlayerRow struct {
	ID        string
	Username  string
	PassHash  string
	IsGuest   bool
	CreatedAt time.Time
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		is_guest INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS player_kv (
		player_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (player_id, key)
	);

	CREATE TABLE IF NOT EXISTS qr_codes (
		code TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		reward INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS qr_redemptions (
		code TEXT NOT NULL REFERENCES qr_codes(code),
		scope TEXT NOT NULL,
		player_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (code, scope)
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_players_username ON players(username);
	CREATE INDEX IF NOT EXISTS idx_analytics_type ON analytics_events(event_type, created_at);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// CreatePlayer creates a new account (returns player ID)
func (db *DB) CreatePlayer(username, passHash string) (string, error) {
	id := GenerateUUID()
	_, err := db.conn.Exec(
		"INSERT INTO players (id, username, pass_hash) VALUES (?, ?, ?)",
		id, username, passHash,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateGuest creates a guest player (no password)
func (db *DB) CreateGuest(username string) (string, error) {
	id := GenerateUUID()
	_, err := db.conn.Exec(
		"INSERT INTO players (id, username, is_guest) VALUES (?, ?, 1)",
		id, username,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetPlayerByUsername returns a player by username
func (db *DB) GetPlayerByUsername(username string) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, is_guest, created_at FROM players WHERE username = ?",
		username,
	)
	p := &PlayerRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.IsGuest, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetPlayerByID returns a player by ID
func (db *DB) GetPlayerByID(id string) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, is_guest, created_at FROM players WHERE id = ?",
		id,
	)
	p := &PlayerRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.IsGuest, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// CountPlayers returns the number of registered and guest players
func (db *DB) CountPlayers() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players").Scan(&count)
	return count, err
}

// GetSetting returns a server setting, "" if unset
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil && err != sql.ErrNoRows {
		log.Printf("settings: read %s: %v", key, err)
	}
	return value
}

// SetSetting stores a server setting
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Get implements KVStore
func (db *DB) Get(ctx context.Context, playerID, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx,
		"SELECT value FROM player_kv WHERE player_id = ? AND key = ?",
		playerID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeyNotFound
	}
	return value, err
}

// Set implements KVStore
func (db *DB) Set(ctx context.Context, playerID, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO player_kv (player_id, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(player_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		playerID, key, value,
	)
	return err
}

// LeaderboardEntry represents one row in a per-game leaderboard
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

// GetLeaderboard returns the best high scores for a game, read from the
// persisted profile records.
func (db *DB) GetLeaderboard(gameID string, limit int) ([]LeaderboardEntry, error) {
	rows, err := db.conn.Query(`
		SELECT username, score FROM (
			SELECT COALESCE(json_extract(kv.value, '$.username'), p.username) AS username,
				json_extract(kv.value, '$.highScores."' || ? || '"') AS score
			FROM player_kv kv JOIN players p ON p.id = kv.player_id
			WHERE kv.key = ? AND json_valid(kv.value)
		)
		WHERE score IS NOT NULL
		ORDER BY score DESC LIMIT ?`,
		gameID, ProfileKey, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Score); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}
