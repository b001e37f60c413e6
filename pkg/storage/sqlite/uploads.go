package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openfed/fedcoord/upload"
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
	query := `SELECT id, client_id, round_marker, artifact_ref, dataset_size, count, submitted_at, archived
		FROM uploads WHERE round_marker = ? AND client_id = ?`

	var existing dbUpload
	err := r.db.GetContext(ctx, &existing, query, u.RoundMarker, u.ClientID)
	switch {
	case err == nil:
		// An archived row for the same window is replaced rather than
		// re-inserted; its count restarts since the prior submissions
		// were already consumed.
		u.ID = existing.ID
		u.Archived = false
		if existing.Archived {
			u.Count = 1
		} else {
			u.Count = existing.Count + 1
		}
		update := `UPDATE uploads SET artifact_ref = ?, dataset_size = ?, count = ?, submitted_at = ?, archived = 0
			WHERE id = ?`
		if _, err := r.db.ExecContext(ctx, update, u.ArtifactRef, u.DatasetSize, u.Count, u.SubmittedAt, u.ID); err != nil {
			return upload.ClientUpload{}, fmt.Errorf("%w: %w", ErrUpdate, err)
		}

		return u, nil
	case !errors.Is(err, sql.ErrNoRows):
		return upload.ClientUpload{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Count = 1
	insert := `INSERT INTO uploads (id, client_id, round_marker, artifact_ref, dataset_size, count, submitted_at, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`
	if _, err := r.db.ExecContext(ctx, insert, u.ID, u.ClientID, u.RoundMarker, u.ArtifactRef, u.DatasetSize, u.Count, u.SubmittedAt); err != nil {
		return upload.ClientUpload{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return u, nil
}

func (r *uploadRepo) ListByRound(ctx context.Context, roundMarker uint64) ([]upload.ClientUpload, error) {
	query := `SELECT id, client_id, round_marker, artifact_ref, dataset_size, count, submitted_at, archived
		FROM uploads WHERE round_marker = ? AND archived = 0 ORDER BY client_id`

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
		FROM uploads ORDER BY round_marker, client_id LIMIT ? OFFSET ?`

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

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(clientIDs)), ",")
	query := fmt.Sprintf(`UPDATE uploads SET archived = 1 WHERE round_marker = ? AND client_id IN (%s)`, placeholders)

	args := make([]any, 0, len(clientIDs)+1)
	args = append(args, roundMarker)
	for _, id := range clientIDs {
		args = append(args, id)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}
