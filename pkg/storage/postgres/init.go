package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	pkgerrors "github.com/openfed/fedcoord/pkg/errors"

	"github.com/jmoiron/sqlx"
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

type Config struct {
	Host    string
	Port    string
	User    string
	Pass    string
	DB      string
	SSLMode string
}

type Database struct {
	*sqlx.DB
}

func NewDatabase(cfg Config) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Pass, cfg.DB, cfg.SSLMode)

	db, err := sqlx.Connect("pgx", dsn)
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
						round_marker BIGINT NOT NULL,
						artifact_ref TEXT NOT NULL,
						dataset_size BIGINT NOT NULL,
						count BIGINT NOT NULL DEFAULT 1,
						submitted_at TIMESTAMPTZ NOT NULL,
						archived BOOLEAN NOT NULL DEFAULT FALSE,
						UNIQUE(round_marker, client_id)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_uploads_round_marker ON uploads(round_marker)`,
					`CREATE TABLE IF NOT EXISTS versions (
						id BIGINT PRIMARY KEY,
						parent_id BIGINT NOT NULL,
						artifact_ref TEXT NOT NULL,
						contributors JSONB,
						created_at TIMESTAMPTZ NOT NULL,
						eval_metric DOUBLE PRECISION,
						eval_computed_at TIMESTAMPTZ
					)`,
					`CREATE TABLE IF NOT EXISTS rewards (
						version_id BIGINT PRIMARY KEY,
						coefficient DOUBLE PRECISION NOT NULL,
						shares JSONB,
						created_at TIMESTAMPTZ NOT NULL
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

	if _, err := migrate.Exec(db.DB.DB, "postgres", migrations, migrate.Up); err != nil {
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
