package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openfed/fedcoord/version"
)

type versionRepo struct {
	db *Database
}

func NewVersionRepository(db *Database) *versionRepo {
	return &versionRepo{db: db}
}

type dbVersion struct {
	ID             uint64          `db:"id"`
	ParentID       uint64          `db:"parent_id"`
	ArtifactRef    string          `db:"artifact_ref"`
	Contributors   []byte          `db:"contributors"`
	CreatedAt      time.Time       `db:"created_at"`
	EvalMetric     sql.NullFloat64 `db:"eval_metric"`
	EvalComputedAt sql.NullTime    `db:"eval_computed_at"`
}

func (v dbVersion) toVersion() (version.ModelVersion, error) {
	out := version.ModelVersion{
		ID:          v.ID,
		ParentID:    v.ParentID,
		ArtifactRef: v.ArtifactRef,
		CreatedAt:   v.CreatedAt,
	}
	if len(v.Contributors) > 0 {
		if err := json.Unmarshal(v.Contributors, &out.Contributors); err != nil {
			return version.ModelVersion{}, fmt.Errorf("unmarshal contributors: %w", err)
		}
	}
	if v.EvalMetric.Valid {
		out.Eval = &version.EvalResult{
			VersionID:   v.ID,
			MetricValue: v.EvalMetric.Float64,
			ComputedAt:  v.EvalComputedAt.Time,
		}
	}

	return out, nil
}

func (r *versionRepo) Create(ctx context.Context, v version.ModelVersion) error {
	contributors, err := jsonBytes(v.Contributors)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	query := `INSERT INTO versions (id, parent_id, artifact_ref, contributors, created_at)
		VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, v.ID, v.ParentID, v.ArtifactRef, contributors, v.CreatedAt); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *versionRepo) Get(ctx context.Context, id uint64) (version.ModelVersion, error) {
	query := `SELECT id, parent_id, artifact_ref, contributors, created_at, eval_metric, eval_computed_at
		FROM versions WHERE id = ?`

	var row dbVersion
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return version.ModelVersion{}, ErrNotFound
		}

		return version.ModelVersion{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toVersion()
}

func (r *versionRepo) Update(ctx context.Context, v version.ModelVersion) error {
	var metric sql.NullFloat64
	var computedAt sql.NullTime
	if v.Eval != nil {
		metric = sql.NullFloat64{Float64: v.Eval.MetricValue, Valid: true}
		computedAt = nullTime(v.Eval.ComputedAt)
	}

	query := `UPDATE versions SET eval_metric = ?, eval_computed_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, metric, computedAt, v.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *versionRepo) Latest(ctx context.Context) (version.ModelVersion, error) {
	query := `SELECT id, parent_id, artifact_ref, contributors, created_at, eval_metric, eval_computed_at
		FROM versions ORDER BY id DESC LIMIT 1`

	var row dbVersion
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return version.ModelVersion{}, ErrNotFound
		}

		return version.ModelVersion{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toVersion()
}

func (r *versionRepo) List(ctx context.Context, offset, limit uint64) ([]version.ModelVersion, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM versions`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT id, parent_id, artifact_ref, contributors, created_at, eval_metric, eval_computed_at
		FROM versions ORDER BY id LIMIT ? OFFSET ?`

	var rows []dbVersion
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	versions := make([]version.ModelVersion, 0, len(rows))
	for _, row := range rows {
		v, err := row.toVersion()
		if err != nil {
			return nil, 0, err
		}
		versions = append(versions, v)
	}

	return versions, total, nil
}
