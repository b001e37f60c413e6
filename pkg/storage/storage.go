package storage

import (
	"context"

	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
)

// UploadRepository is the upload store. Upsert implements the
// replace-by-resubmission rule: a second submission for the same
// (client, round marker) replaces the stored record and increments Count.
type UploadRepository interface {
	Upsert(ctx context.Context, u upload.ClientUpload) (upload.ClientUpload, error)
	ListByRound(ctx context.Context, roundMarker uint64) ([]upload.ClientUpload, error)
	List(ctx context.Context, offset, limit uint64) ([]upload.ClientUpload, uint64, error)
	Archive(ctx context.Context, roundMarker uint64, clientIDs []string) error
}

type VersionRepository interface {
	Create(ctx context.Context, v version.ModelVersion) error
	Get(ctx context.Context, id uint64) (version.ModelVersion, error)
	Update(ctx context.Context, v version.ModelVersion) error
	Latest(ctx context.Context) (version.ModelVersion, error)
	List(ctx context.Context, offset, limit uint64) ([]version.ModelVersion, uint64, error)
}

type RewardRepository interface {
	Create(ctx context.Context, r reward.Record) error
	Get(ctx context.Context, versionID uint64) (reward.Record, error)
}

type Repositories struct {
	Uploads  UploadRepository
	Versions VersionRepository
	Rewards  RewardRepository
}
