package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openfed/fedcoord/pkg/reward"
)

type rewardRepo struct {
	db *Database
}

func NewRewardRepository(db *Database) *rewardRepo {
	return &rewardRepo{db: db}
}

type dbReward struct {
	VersionID   uint64    `db:"version_id"`
	Coefficient float64   `db:"coefficient"`
	Shares      []byte    `db:"shares"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *rewardRepo) Create(ctx context.Context, rec reward.Record) error {
	shares, err := jsonBytes(rec.Shares)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	query := `INSERT INTO rewards (version_id, coefficient, shares, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, rec.VersionID, rec.Coefficient, shares, rec.CreatedAt); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *rewardRepo) Get(ctx context.Context, versionID uint64) (reward.Record, error) {
	query := `SELECT version_id, coefficient, shares, created_at FROM rewards WHERE version_id = ?`

	var row dbReward
	if err := r.db.GetContext(ctx, &row, query, versionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reward.Record{}, ErrNotFound
		}

		return reward.Record{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	rec := reward.Record{
		VersionID:   row.VersionID,
		Coefficient: row.Coefficient,
		CreatedAt:   row.CreatedAt,
	}
	if len(row.Shares) > 0 {
		if err := json.Unmarshal(row.Shares, &rec.Shares); err != nil {
			return reward.Record{}, fmt.Errorf("unmarshal shares: %w", err)
		}
	}

	return rec, nil
}
