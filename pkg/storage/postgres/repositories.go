package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
)

type uploadRepo struct {
	db *Database
}

func NewUploadRepository(db *Database) *uploadRepo {
	return &uploadRepo{db: db}
}

type dbUpload struct {
	ID          string    `db:"id"`
	ClientID    string    `db:"client_id"`
	RoundMarker uint64    `db:"round_marker"`
	ArtifactRef string    `db:"artifact_ref"`
	DatasetSize uint64    `db:"dataset_size"`
	Count       uint64    `db:"count"`
	SubmittedAt time.Time `db:"submitted_at"`
	Archived    bool      `db:"archived"`
}

func (u dbUpload) toUpload() upload.ClientUpload {
	return upload.ClientUpload{
		ID:          u.ID,
		ClientID:    u.ClientID,
		RoundMarker: u.RoundMarker,
		ArtifactRef: u.ArtifactRef,
		DatasetSize: u.DatasetSize,
		Count:       u.Count,
		SubmittedAt: u.SubmittedAt,
		Archived:    u.Archived,
	}
}

func (r *uploadRepo) Upsert(ctx context.Context, u upload.ClientUpload) (upload.ClientUpload, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	// A resubmission inside the same round window replaces the record and
	// bumps the submission count.
	query := `INSERT INTO uploads (id, client_id, round_marker, artifact_ref, dataset_size, count, submitted_at, archived)
		VALUES ($1, $2, $3, $4, $5, 1, $6, FALSE)
		ON CONFLICT (round_marker, client_id) DO UPDATE SET
			artifact_ref = EXCLUDED.artifact_ref,
			dataset_size = EXCLUDED.dataset_size,
			count = uploads.count + 1,
			submitted_at = EXCLUDED.submitted_at
		RETURNING id, client_id, round_marker, artifact_ref, dataset_size, count, submitted_at, archived`

	var row dbUpload
	if err := r.db.GetContext(ctx, &row, query, u.ID, u.ClientID, u.RoundMarker, u.ArtifactRef, u.DatasetSize, u.SubmittedAt); err != nil {
		return upload.ClientUpload{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return row.toUpload(), nil
}

func (r *uploadRepo) ListByRound(ctx context.Context, roundMarker uint64) ([]upload.ClientUpload, error) {
	query := `SELECT id, client_id, round_marker, artifact_ref, dataset_size, count, submitted_at, archived
		FROM uploads WHERE round_marker = $1 AND archived = FALSE ORDER BY client_id`

	var rows []dbUpload
	if err := r.db.SelectContext(ctx, &rows, query, roundMarker); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	uploads := make([]upload.ClientUpload, 0, len(rows))
	for _, row := range rows {
		uploads = append(uploads, row.toUpload())
	}

	return uploads, nil
}

func (r *uploadRepo) List(ctx context.Context, offset, limit uint64) ([]upload.ClientUpload, uint64, error) {
	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM uploads`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT id, client_id, round_marker, artifact_ref, dataset_size, count, submitted_at, archived
		FROM uploads ORDER BY round_marker, client_id LIMIT $1 OFFSET $2`

	var rows []dbUpload
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	uploads := make([]upload.ClientUpload, 0, len(rows))
	for _, row := range rows {
		uploads = append(uploads, row.toUpload())
	}

	return uploads, total, nil
}

func (r *uploadRepo) Archive(ctx context.Context, roundMarker uint64, clientIDs []string) error {
	if len(clientIDs) == 0 {
		return nil
	}

	query := `UPDATE uploads SET archived = TRUE WHERE round_marker = $1 AND client_id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, roundMarker, clientIDs); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

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
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, v.ID, v.ParentID, v.ArtifactRef, contributors, v.CreatedAt); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *versionRepo) Get(ctx context.Context, id uint64) (version.ModelVersion, error) {
	query := `SELECT id, parent_id, artifact_ref, contributors, created_at, eval_metric, eval_computed_at
		FROM versions WHERE id = $1`

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

	query := `UPDATE versions SET eval_metric = $1, eval_computed_at = $2 WHERE id = $3`
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
		FROM versions ORDER BY id LIMIT $1 OFFSET $2`

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

type rewardRepo struct {
	db *Database
}

func NewRewardRepository(db *Database) *rewardRepo {
	return &rewardRepo{db: db}
}

func (r *rewardRepo) Create(ctx context.Context, rec reward.Record) error {
	shares, err := jsonBytes(rec.Shares)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	query := `INSERT INTO rewards (version_id, coefficient, shares, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, rec.VersionID, rec.Coefficient, shares, rec.CreatedAt); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *rewardRepo) Get(ctx context.Context, versionID uint64) (reward.Record, error) {
	query := `SELECT version_id, coefficient, shares, created_at FROM rewards WHERE version_id = $1`

	var row struct {
		VersionID   uint64    `db:"version_id"`
		Coefficient float64   `db:"coefficient"`
		Shares      []byte    `db:"shares"`
		CreatedAt   time.Time `db:"created_at"`
	}
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
