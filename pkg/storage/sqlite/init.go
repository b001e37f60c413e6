package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/openfed/fedcoord/pkg/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")

	// ErrNotFound aliases the shared sentinel so callers can match a miss
	// without caring which backend served it.
	ErrNotFound = pkgerrors.ErrNotFound
)

type Database struct {
	*sqlx.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS uploads (
						id TEXT PRIMARY KEY,
						client_id TEXT NOT NULL,
						round_marker INTEGER NOT NULL,
						artifact_ref TEXT NOT NULL,
						dataset_size INTEGER NOT NULL,
						count INTEGER NOT NULL DEFAULT 1,
						submitted_at TIMESTAMP NOT NULL,
						archived INTEGER NOT NULL DEFAULT 0,
						UNIQUE(round_marker, client_id)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_uploads_round_marker ON uploads(round_marker)`,
					`CREATE TABLE IF NOT EXISTS versions (
						id INTEGER PRIMARY KEY,
						parent_id INTEGER NOT NULL,
						artifact_ref TEXT NOT NULL,
						contributors BLOB,
						created_at TIMESTAMP NOT NULL,
						eval_metric REAL,
						eval_computed_at TIMESTAMP
					)`,
					`CREATE TABLE IF NOT EXISTS rewards (
						version_id INTEGER PRIMARY KEY,
						coefficient REAL NOT NULL,
						shares BLOB,
						created_at TIMESTAMP NOT NULL
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS rewards`,
					`DROP TABLE IF EXISTS versions`,
					`DROP TABLE IF EXISTS uploads`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func jsonBytes(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: t, Valid: true}
}
