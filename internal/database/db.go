package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// DB wraps the database connection.
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new database connection in WAL mode with foreign keys on.
func New(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Begin starts a new transaction.
func (db *DB) Begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

// BeginTx starts a new transaction bound to ctx, so a caller's cancellation
// or deadline aborts in-flight statements instead of leaking a held lock.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return db.conn.BeginTx(ctx, opts)
}

// Exec executes a query without returning rows.
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// Migrate creates every table the dispatch core needs if it does not already
// exist. There is no separate migration framework (see design notes); the
// schema is additive and idempotent so it is safe to run on every startup.
func (db *DB) Migrate() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS drivers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		vehicle_type TEXT NOT NULL DEFAULT '',
		vehicle_capacity_kg REAL NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		experience_days INTEGER NOT NULL DEFAULT 0,
		total_deliveries INTEGER NOT NULL DEFAULT 0,
		successful_deliveries INTEGER NOT NULL DEFAULT 0,
		failed_deliveries INTEGER NOT NULL DEFAULT 0,
		avg_delivery_time_minutes REAL NOT NULL DEFAULT 0,
		last_latitude REAL NOT NULL DEFAULT 0,
		last_longitude REAL NOT NULL DEFAULT 0,
		push_token TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tracking_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		weight_kg REAL NOT NULL DEFAULT 0,
		fragile INTEGER NOT NULL DEFAULT 0,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		floor INTEGER NOT NULL DEFAULT 0,
		window_start_hour INTEGER,
		window_end_hour INTEGER,
		priority INTEGER NOT NULL DEFAULT 0,
		distance_from_hub_km REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver_id INTEGER NOT NULL REFERENCES drivers(id),
		package_id INTEGER NOT NULL REFERENCES packages(id),
		operational_date TEXT NOT NULL,
		predicted_difficulty REAL NOT NULL DEFAULT 0,
		actual_difficulty REAL,
		accepted INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		explanation TEXT NOT NULL DEFAULT '',
		assigned_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		accepted_at DATETIME,
		started_at DATETIME,
		completed_at DATETIME,
		UNIQUE(package_id, operational_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_driver_date ON assignments(driver_id, operational_date)`,
	`CREATE TABLE IF NOT EXISTS deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assignment_id INTEGER NOT NULL UNIQUE REFERENCES assignments(id),
		actual_difficulty REAL NOT NULL DEFAULT 0,
		duration_minutes REAL NOT NULL DEFAULT 0,
		successful INTEGER NOT NULL DEFAULT 1,
		notes TEXT NOT NULL DEFAULT '',
		completed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS health_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver_id INTEGER NOT NULL REFERENCES drivers(id),
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		heart_rate REAL NOT NULL DEFAULT 0,
		fatigue_level REAL NOT NULL DEFAULT 0,
		hours_worked REAL NOT NULL DEFAULT 0,
		hours_since_last_break REAL NOT NULL DEFAULT 0,
		delivered INTEGER NOT NULL DEFAULT 0,
		remaining INTEGER NOT NULL DEFAULT 0,
		distance_km REAL NOT NULL DEFAULT 0,
		avg_difficulty REAL NOT NULL DEFAULT 0,
		predicted_risk_score REAL NOT NULL DEFAULT 0,
		severity TEXT NOT NULL DEFAULT 'low',
		recommended_break_minutes INTEGER,
		recommended_break_urgency TEXT,
		recommended_break_reason TEXT,
		recommended_break_timing TEXT,
		alert_dispatched_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_health_events_driver_recorded ON health_events(driver_id, recorded_at DESC)`,
	`CREATE TABLE IF NOT EXISTS swaps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		proposer_driver_id INTEGER NOT NULL REFERENCES drivers(id),
		acceptor_driver_id INTEGER NOT NULL REFERENCES drivers(id),
		offered_assignment_id INTEGER NOT NULL REFERENCES assignments(id),
		requested_assignment_id INTEGER NOT NULL REFERENCES assignments(id),
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT NOT NULL DEFAULT '',
		compatibility_score REAL NOT NULL DEFAULT 0,
		distance_saved_km REAL NOT NULL DEFAULT 0,
		proposed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		responded_at DATETIME,
		completed_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS insurance_payouts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver_id INTEGER NOT NULL REFERENCES drivers(id),
		window_start DATETIME NOT NULL,
		window_end DATETIME NOT NULL,
		driver_rate REAL NOT NULL,
		population_mean REAL NOT NULL,
		population_std REAL NOT NULL,
		z_score REAL NOT NULL,
		excess_failures REAL NOT NULL,
		payout_amount REAL NOT NULL,
		eligible INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		approved INTEGER NOT NULL DEFAULT 0,
		paid INTEGER NOT NULL DEFAULT 0,
		computed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS gps_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver_id INTEGER NOT NULL REFERENCES drivers(id),
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gps_logs_driver_recorded ON gps_logs(driver_id, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learning_exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operational_date TEXT NOT NULL,
		assignment_id INTEGER NOT NULL,
		package_id INTEGER NOT NULL,
		driver_id INTEGER NOT NULL,
		predicted_difficulty REAL NOT NULL,
		actual_difficulty REAL NOT NULL,
		exported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}
