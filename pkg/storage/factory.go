package storage

import (
	"fmt"
	"io"

	"github.com/openfed/fedcoord/pkg/storage/postgres"
	"github.com/openfed/fedcoord/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"COORDINATOR_STORAGE_TYPE" envDefault:"memory"`

	SQLitePath string `env:"COORDINATOR_SQLITE_PATH" envDefault:"./fedcoord.db"`

	PostgresHost    string `env:"COORDINATOR_POSTGRES_HOST"    envDefault:"localhost"`
	PostgresPort    string `env:"COORDINATOR_POSTGRES_PORT"    envDefault:"5432"`
	PostgresUser    string `env:"COORDINATOR_POSTGRES_USER"    envDefault:"fedcoord"`
	PostgresPass    string `env:"COORDINATOR_POSTGRES_PASS"    envDefault:"fedcoord"`
	PostgresDB      string `env:"COORDINATOR_POSTGRES_DB"      envDefault:"fedcoord"`
	PostgresSSLMode string `env:"COORDINATOR_POSTGRES_SSLMODE" envDefault:"disable"`
}

// NewRepositories selects a backend from configuration. The closer is nil for
// the in-memory backend.
func NewRepositories(cfg Config) (*Repositories, io.Closer, error) {
	switch cfg.Type {
	case "", "memory":
		return &Repositories{
			Uploads:  NewInMemoryUploads(),
			Versions: NewInMemoryVersions(),
			Rewards:  NewInMemoryRewards(),
		}, nil, nil
	case "sqlite":
		db, err := sqlite.NewDatabase(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}

		return &Repositories{
			Uploads:  sqlite.NewUploadRepository(db),
			Versions: sqlite.NewVersionRepository(db),
			Rewards:  sqlite.NewRewardRepository(db),
		}, db, nil
	case "postgres":
		db, err := postgres.NewDatabase(postgres.Config{
			Host:    cfg.PostgresHost,
			Port:    cfg.PostgresPort,
			User:    cfg.PostgresUser,
			Pass:    cfg.PostgresPass,
			DB:      cfg.PostgresDB,
			SSLMode: cfg.PostgresSSLMode,
		})
		if err != nil {
			return nil, nil, err
		}

		return &Repositories{
			Uploads:  postgres.NewUploadRepository(db),
			Versions: postgres.NewVersionRepository(db),
			Rewards:  postgres.NewRewardRepository(db),
		}, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
