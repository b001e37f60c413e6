package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openfed/fedcoord/pkg/aggregate"
	"github.com/openfed/fedcoord/pkg/artifact"
	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveModelAndLoad(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	weights := aggregate.Weights{"layer": {1.5, -2.5}}

	ref, err := store.SaveModel(2, weights)
	require.NoError(t, err)
	assert.Equal(t, "models/model_v2.cbor", ref)

	got, err := store.Load(ref)
	require.NoError(t, err)
	assert.Equal(t, weights, got)
}

func TestSaveUploadOverwrites(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.SaveUpload(1, "client-a", aggregate.Weights{"layer": {1.0}})
	require.NoError(t, err)
	assert.Equal(t, "uploads/round_1_client-a.cbor", ref)

	again, err := store.SaveUpload(1, "client-a", aggregate.Weights{"layer": {9.0}})
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	got, err := store.Load(ref)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, got["layer"][0], 1e-9)
}

func TestSaveUploadSanitizesClientID(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.SaveUpload(1, "../../etc/passwd", aggregate.Weights{"layer": {1.0}})
	require.NoError(t, err)
	assert.Equal(t, "uploads/round_1_etcpasswd.cbor", ref)

	_, err = store.SaveUpload(1, "../..//", aggregate.Weights{"layer": {1.0}})
	assert.Error(t, err)
}

func TestLoadMissingArtifact(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("uploads/round_9_client-z.cbor")
	assert.ErrorIs(t, err, pkgerrors.ErrArtifactLoad)
}

func TestLoadCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.NewStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "models", "model_v2.cbor")
	require.NoError(t, os.WriteFile(path, []byte("not cbor at all"), 0o644))

	_, err = store.Load("models/model_v2.cbor")
	assert.ErrorIs(t, err, pkgerrors.ErrArtifactLoad)
}

func TestLoadRejectsTraversal(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)

	for _, ref := range []string{
		"models/../../../etc/passwd",
		"nope/file.cbor",
		"models",
		"",
	} {
		_, err := store.Load(ref)
		assert.ErrorIs(t, err, pkgerrors.ErrArtifactLoad, ref)
	}
}
