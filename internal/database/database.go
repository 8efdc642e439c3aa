package database

import (
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect names the SQL flavour behind a DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DB is a connection pool plus the dialect its queries must be written for.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens the ledger database for driver ("sqlite" or "postgres") and runs
// migrations. For sqlite, dsn is a file path or ":memory:".
func Open(driver, dsn string) (*DB, error) {
	switch Dialect(driver) {
	case SQLite:
		return openSQLite(dsn)
	case Postgres:
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(path string) (*DB, error) {
	// Writers are serialised on a single connection and every transaction
	// takes the write lock up front.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{DB: sqlDB, Dialect: SQLite}
	if err := db.prepare(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func openPostgres(url string) (*DB, error) {
	sqlDB, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{DB: sqlDB, Dialect: Postgres}
	if err := db.prepare(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) prepare() error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	if err := db.runMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (db *DB) runMigrations() error {
	goose.SetBaseFS(migrations)

	gooseDialect := "sqlite3"
	if db.Dialect == Postgres {
		gooseDialect = "postgres"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations/"+string(db.Dialect)); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
func (db *DB) Rebind(query string) string {
	if db.Dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// LockClause returns the row locking suffix for reads that precede a write in
// the same transaction. SQLite locks the whole database on BEGIN IMMEDIATE.
func (db *DB) LockClause() string {
	if db.Dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}
