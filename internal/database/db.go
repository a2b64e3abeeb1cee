package database

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour of the sink
type Dialect int

const (
	SQLite Dialect = iota
	ClickHouse
)

func (d Dialect) String() string {
	if d == ClickHouse {
		return "clickhouse"
	}
	return "sqlite"
}

// LocalTable is the table used by the sqlite sink
const LocalTable = "pinger"

// DB wraps sql.DB with the measurement write path
type DB struct {
	*sql.DB
	dialect Dialect
	table   string

	now        func() time.Time
	vacuumMu   sync.Mutex
	lastVacuum time.Time
}

// New wraps an open connection pool
func New(db *sql.DB, dialect Dialect, table string) *DB {
	return &DB{DB: db, dialect: dialect, table: table, now: time.Now}
}

// OpenSQLite opens a local sqlite database file
func OpenSQLite(path, table string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("database open failed: %w", err)
	}

	// Enable WAL mode for better concurrent access
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA synchronous=NORMAL")

	return New(db, SQLite, table), nil
}

// OpenClickHouse creates a connection pool for a ClickHouse server. No
// connection is made until first use.
func OpenClickHouse(opts *clickhouse.Options, table string) *DB {
	return New(clickhouse.OpenDB(opts), ClickHouse, table)
}

// ClickHouseOptions builds client options from a server URL. http and https
// select the HTTP interface; clickhouse and tcp the native protocol.
func ClickHouseOptions(rawURL, username, password, database string, insecureSkipVerify bool) (*clickhouse.Options, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ClickHouse URL: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid ClickHouse URL %q: missing host", rawURL)
	}

	opts := &clickhouse.Options{
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	}

	port := u.Port()
	switch u.Scheme {
	case "http":
		opts.Protocol = clickhouse.HTTP
		if port == "" {
			port = "8123"
		}
	case "https":
		opts.Protocol = clickhouse.HTTP
		opts.TLS = &tls.Config{InsecureSkipVerify: insecureSkipVerify}
		if port == "" {
			port = "8443"
		}
	case "clickhouse", "tcp":
		opts.Protocol = clickhouse.Native
		if port == "" {
			port = "9000"
		}
	default:
		return nil, fmt.Errorf("unsupported ClickHouse URL scheme %q", u.Scheme)
	}

	opts.Addr = []string{net.JoinHostPort(u.Hostname(), port)}
	return opts, nil
}

// Dialect returns the SQL flavour of the sink
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Ping verifies the sink is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// InitSchema creates the measurement table. ClickHouse tables are managed by
// the operator, see Schema.
func (db *DB) InitSchema(ctx context.Context) error {
	if db.dialect != SQLite {
		return nil
	}
	if _, err := db.ExecContext(ctx, Schema(SQLite, db.table)); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

// Schema returns the DDL for the measurement table
func Schema(dialect Dialect, table string) string {
	if dialect == ClickHouse {
		return fmt.Sprintf(clickHouseSchema, table)
	}
	return fmt.Sprintf(sqliteSchema, table, table, table)
}

const sqliteSchema = `
    CREATE TABLE IF NOT EXISTS %s (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        host_name TEXT NOT NULL,
        host_country TEXT NOT NULL DEFAULT '',
        host_state TEXT NOT NULL DEFAULT '',
        host_city TEXT NOT NULL DEFAULT '',
        host_network TEXT NOT NULL DEFAULT '',
        target_name TEXT NOT NULL,
        target_ip TEXT NOT NULL,
        target_country TEXT NOT NULL DEFAULT '',
        target_state TEXT NOT NULL DEFAULT '',
        target_city TEXT NOT NULL DEFAULT '',
        target_network TEXT NOT NULL DEFAULT '',
        avg_ms REAL,
        max_ms REAL,
        min_ms REAL,
        loss_percent REAL NOT NULL,
        time DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_%s_time ON %s(time);
    `

const clickHouseSchema = `CREATE TABLE IF NOT EXISTS %s (
    host_name LowCardinality(String),
    host_country LowCardinality(String),
    host_state LowCardinality(String),
    host_city LowCardinality(String),
    host_network LowCardinality(String),
    target_name LowCardinality(String),
    target_ip String,
    target_country LowCardinality(String),
    target_state LowCardinality(String),
    target_city LowCardinality(String),
    target_network LowCardinality(String),
    avg_ms Nullable(Float64),
    max_ms Nullable(Float64),
    min_ms Nullable(Float64),
    loss_percent Float64,
    time DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (host_name, target_ip, time)
`
