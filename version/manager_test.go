package version_test

import (
	"context"
	"sync"
	"testing"

	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/pkg/storage"
	"github.com/openfed/fedcoord/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseRef = "models/model_v1.cbor"

func newManager(t *testing.T) *version.Manager {
	t.Helper()

	m, err := version.NewManager(context.Background(), storage.NewInMemoryVersions(), baseRef)
	require.NoError(t, err)

	return m
}

func TestNewManagerBootstrapsGenesis(t *testing.T) {
	m := newManager(t)

	cur := m.Current()
	assert.Equal(t, uint64(1), cur.ID)
	assert.Equal(t, uint64(0), cur.ParentID)
	assert.Equal(t, baseRef, cur.ArtifactRef)

	_, ok := m.Previous()
	assert.False(t, ok)
}

func TestNewManagerResumesExistingChain(t *testing.T) {
	repo := storage.NewInMemoryVersions()

	m, err := version.NewManager(context.Background(), repo, baseRef)
	require.NoError(t, err)

	next, err := m.Publish(context.Background(), 1, "models/model_v2.cbor", []version.Contributor{
		{ClientID: "client-a", Uploads: 1, DatasetSize: 10},
	})
	require.NoError(t, err)

	resumed, err := version.NewManager(context.Background(), repo, baseRef)
	require.NoError(t, err)

	assert.Equal(t, next.ID, resumed.Current().ID)
	prev, ok := resumed.Previous()
	require.True(t, ok)
	assert.Equal(t, uint64(1), prev.ID)
}

func TestPublishAdvancesChain(t *testing.T) {
	m := newManager(t)

	contributors := []version.Contributor{
		{ClientID: "client-a", Uploads: 2, DatasetSize: 100},
	}
	next, err := m.Publish(context.Background(), 1, "models/model_v2.cbor", contributors)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), next.ID)
	assert.Equal(t, uint64(1), next.ParentID)
	assert.Equal(t, contributors, next.Contributors)
	assert.Equal(t, next.ID, m.Current().ID)

	prev, ok := m.Previous()
	require.True(t, ok)
	assert.Equal(t, uint64(1), prev.ID)
}

func TestPublishStaleParent(t *testing.T) {
	m := newManager(t)

	_, err := m.Publish(context.Background(), 1, "models/model_v2.cbor", nil)
	require.NoError(t, err)

	_, err = m.Publish(context.Background(), 1, "models/model_v2.cbor", nil)
	assert.ErrorIs(t, err, pkgerrors.ErrPublishConflict)
}

func TestPublishConcurrentSameParent(t *testing.T) {
	m := newManager(t)

	const racers = 8

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.Publish(context.Background(), 1, "models/model_v2.cbor", nil)
		}()
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, pkgerrors.ErrPublishConflict):
			lost++
		}
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, racers-1, lost)
	assert.Equal(t, uint64(2), m.Current().ID)
}

func TestRecordEvalExactlyOnce(t *testing.T) {
	m := newManager(t)

	require.NoError(t, m.RecordEval(context.Background(), 1, 0.75))

	err := m.RecordEval(context.Background(), 1, 0.25)
	assert.ErrorIs(t, err, pkgerrors.ErrEvalAlreadyRecorded)

	v, err := m.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, v.Eval)
	assert.InDelta(t, 0.75, v.Eval.MetricValue, 1e-9)

	cur := m.Current()
	require.NotNil(t, cur.Eval)
	assert.InDelta(t, 0.75, cur.Eval.MetricValue, 1e-9)
}

func TestRecordEvalUnknownVersion(t *testing.T) {
	m := newManager(t)

	err := m.RecordEval(context.Background(), 42, 0.5)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestList(t *testing.T) {
	m := newManager(t)

	_, err := m.Publish(context.Background(), 1, "models/model_v2.cbor", nil)
	require.NoError(t, err)

	page, err := m.List(context.Background(), 0, 10)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), page.Total)
	require.Len(t, page.Versions, 2)
	assert.Equal(t, uint64(1), page.Versions[0].ID)
	assert.Equal(t, uint64(2), page.Versions[1].ID)
}
