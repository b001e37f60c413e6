package storage_test

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/pkg/storage"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadsUpsertIncrementsCount(t *testing.T) {
	repo := storage.NewInMemoryUploads()

	first, err := repo.Upsert(context.Background(), upload.ClientUpload{
		ID:          "u-1",
		ClientID:    "client-a",
		ArtifactRef: "uploads/round_1_client-a.cbor",
		DatasetSize: 100,
		RoundMarker: 1,
		SubmittedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Count)

	second, err := repo.Upsert(context.Background(), upload.ClientUpload{
		ID:          "u-2",
		ClientID:    "client-a",
		ArtifactRef: "uploads/round_1_client-a.cbor",
		DatasetSize: 120,
		RoundMarker: 1,
		SubmittedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, uint64(2), second.Count)
	assert.Equal(t, uint64(120), second.DatasetSize)

	uploads, err := repo.ListByRound(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
}

func TestUploadsCountResetsAcrossRounds(t *testing.T) {
	repo := storage.NewInMemoryUploads()

	_, err := repo.Upsert(context.Background(), upload.ClientUpload{
		ID: "u-1", ClientID: "client-a", RoundMarker: 1,
	})
	require.NoError(t, err)

	next, err := repo.Upsert(context.Background(), upload.ClientUpload{
		ID: "u-2", ClientID: "client-a", RoundMarker: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), next.Count)
}

func TestUploadsEmptyClientID(t *testing.T) {
	repo := storage.NewInMemoryUploads()

	_, err := repo.Upsert(context.Background(), upload.ClientUpload{RoundMarker: 1})
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyKey)
}

func TestUploadsArchiveRemovesFromRound(t *testing.T) {
	repo := storage.NewInMemoryUploads()

	_, err := repo.Upsert(context.Background(), upload.ClientUpload{
		ID: "u-1", ClientID: "client-a", RoundMarker: 1,
	})
	require.NoError(t, err)
	_, err = repo.Upsert(context.Background(), upload.ClientUpload{
		ID: "u-2", ClientID: "client-b", RoundMarker: 1,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Archive(context.Background(), 1, []string{"client-a"}))

	uploads, err := repo.ListByRound(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "client-b", uploads[0].ClientID)
}

func TestVersionsLifecycle(t *testing.T) {
	repo := storage.NewInMemoryVersions()

	_, err := repo.Latest(context.Background())
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	v1 := version.ModelVersion{ID: 1, ArtifactRef: "models/model_v1.cbor", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), v1))

	err = repo.Create(context.Background(), v1)
	assert.ErrorIs(t, err, pkgerrors.ErrEntityExists)

	v2 := version.ModelVersion{ID: 2, ParentID: 1, ArtifactRef: "models/model_v2.cbor", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), v2))

	latest, err := repo.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.ID)

	v2.Eval = &version.EvalResult{VersionID: 2, MetricValue: 0.5, ComputedAt: time.Now()}
	require.NoError(t, repo.Update(context.Background(), v2))

	got, err := repo.Get(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, got.Eval)
	assert.InDelta(t, 0.5, got.Eval.MetricValue, 1e-9)

	versions, total, err := repo.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, versions, 2)
	assert.Equal(t, uint64(1), versions[0].ID)
}

func TestRewardsCreateOnce(t *testing.T) {
	repo := storage.NewInMemoryRewards()

	rec := reward.Record{
		VersionID:   2,
		Coefficient: 1,
		Shares: map[string]reward.Share{
			"client-a": {RawScore: 104, Amount: 66.67},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), rec))

	err := repo.Create(context.Background(), rec)
	assert.ErrorIs(t, err, pkgerrors.ErrEntityExists)

	got, err := repo.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.InDelta(t, 66.67, got.Shares["client-a"].Amount, 1e-9)

	_, err = repo.Get(context.Background(), 3)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}
