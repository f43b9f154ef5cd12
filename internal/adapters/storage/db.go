package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect names the SQL engine behind a connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// TimeLayout is the fixed-width UTC layout used for every stored timestamp.
// Lexical order equals chronological order on both engines.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// ErrDuplicate is returned by stores when a unique column already holds the value.
var ErrDuplicate = errors.New("duplicate value")

// DialectFor picks the engine from a DATABASE_URL value.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects to the database named by dsn and applies engine settings.
// PRE: dsn is a postgres:// URL or a SQLite path
// POST: Returns a pinged *sql.DB and its dialect
func Open(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	dialect := DialectFor(dsn)
	driver := "sqlite"
	if dialect == DialectPostgres {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, dialect, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if dsn != ":memory:" {
			if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
				db.Close()
				return nil, dialect, fmt.Errorf("failed to enable WAL mode: %w", err)
			}
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, dialect, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, dialect, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, dialect, nil
}

// migration is one forward-only schema step.
type migration struct {
	version    int
	name       string
	statements []string
}

// migrations is the ordered schema history. Statements must run unchanged
// on SQLite and Postgres: TEXT timestamps, INTEGER booleans.
var migrations = []migration{
	{
		version: 1,
		name:    "baseline",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS account (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS subscriber (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				verified INTEGER NOT NULL DEFAULT 0,
				subscribed INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS newsletter (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				content TEXT NOT NULL,
				scheduled_for TEXT,
				template TEXT NOT NULL DEFAULT 'DEFAULT',
				status TEXT NOT NULL,
				sent_at TEXT,
				author_id TEXT NOT NULL REFERENCES account(id),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS analytics (
				id TEXT PRIMARY KEY,
				newsletter_id TEXT NOT NULL UNIQUE REFERENCES newsletter(id),
				opens INTEGER NOT NULL DEFAULT 0,
				clicks INTEGER NOT NULL DEFAULT 0,
				bounces INTEGER NOT NULL DEFAULT 0,
				unsubscribes INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS category (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				slug TEXT NOT NULL UNIQUE,
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS post (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				content TEXT NOT NULL DEFAULT '',
				slug TEXT NOT NULL UNIQUE,
				published INTEGER NOT NULL DEFAULT 0,
				author_id TEXT NOT NULL REFERENCES account(id),
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS post_category (
				post_id TEXT NOT NULL REFERENCES post(id),
				category_id TEXT NOT NULL REFERENCES category(id),
				PRIMARY KEY (post_id, category_id)
			)`,
		},
	},
	{
		version: 2,
		name:    "read path indexes",
		statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_subscriber_eligible ON subscriber (verified, subscribed)`,
			`CREATE INDEX IF NOT EXISTS idx_newsletter_created ON newsletter (created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_post_published ON post (published, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_post_category_category ON post_category (category_id)`,
		},
	},
}

// LatestSchemaVersion returns the version the migration chain ends at.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// ensureVersionTable creates the schema_version bookkeeping table.
func ensureVersionTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL,
		applied_at TEXT NOT NULL
	)`)
	return err
}

// SchemaVersion returns the highest applied migration, 0 for a fresh database.
// PRE: db is a valid database connection
// POST: schema_version exists afterwards
func SchemaVersion(db *sql.DB) (int, error) {
	ctx := context.Background()
	if err := ensureVersionTable(ctx, db); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}
	var version int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return version, nil
}

// MigrateDB applies every pending migration, each in its own transaction.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion()
func MigrateDB(db *sql.DB) error {
	ctx := context.Background()
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		slog.Info("schema_event", "action", "migrated", "version", m.version, "name", m.name)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, applied_at) VALUES ($1, $2)",
		m.version, FormatTime(time.Now()),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NullableTime returns nil for the zero time so the column stays NULL.
func NullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return FormatTime(t)
}

// ParseTime reads a stored timestamp. Older RFC3339 values are accepted.
func ParseTime(s string) (time.Time, error) {
	formats := []string{
		TimeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}

// ParseNullTime reads a nullable timestamp column.
func ParseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, _ := ParseTime(ns.String)
	return t
}

// BoolInt stores a bool in an INTEGER column.
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
