package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openfed/fedcoord/pkg/storage"
	"github.com/openfed/fedcoord/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, evaluator *fakeEvaluator, onComplete func(context.Context, version.ModelVersion)) (*evalScheduler, *version.Manager) {
	t.Helper()

	versions, err := version.NewManager(context.Background(), storage.NewInMemoryVersions(), "models/model_v1.cbor")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newEvalScheduler(evaluator, versions, onComplete, logger)
	t.Cleanup(s.Stop)

	return s, versions
}

func TestSchedulerRecordsEvalAndCompletes(t *testing.T) {
	done := make(chan version.ModelVersion, 1)
	s, versions := newTestScheduler(t, &fakeEvaluator{
		evaluate: func(_ context.Context, _ string) (float64, error) {
			return 0.42, nil
		},
	}, func(_ context.Context, v version.ModelVersion) {
		done <- v
	})

	s.Schedule(versions.Current())

	select {
	case v := <-done:
		assert.Equal(t, uint64(1), v.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation did not complete")
	}

	v, err := versions.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, v.Eval)
	assert.InDelta(t, 0.42, v.Eval.MetricValue, 1e-9)
}

func TestSchedulerSkipsEvaluatedVersion(t *testing.T) {
	var calls atomic.Int64
	s, versions := newTestScheduler(t, &fakeEvaluator{
		evaluate: func(_ context.Context, _ string) (float64, error) {
			calls.Add(1)

			return 0.5, nil
		},
	}, func(context.Context, version.ModelVersion) {})

	require.NoError(t, versions.RecordEval(context.Background(), 1, 0.9))

	s.Schedule(versions.Current())
	s.Stop()

	assert.Equal(t, int64(0), calls.Load())
}

func TestSchedulerEvalFailureStillCompletes(t *testing.T) {
	done := make(chan struct{}, 1)
	s, versions := newTestScheduler(t, &fakeEvaluator{
		evaluate: func(_ context.Context, _ string) (float64, error) {
			return 0, errors.New("evaluation service unreachable")
		},
	}, func(context.Context, version.ModelVersion) {
		done <- struct{}{}
	})

	s.Schedule(versions.Current())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("completion hook not called")
	}

	// The failed evaluation writes nothing.
	v, err := versions.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, v.Eval)
}

func TestSchedulerStopSkipsCompletion(t *testing.T) {
	var completions atomic.Int64
	started := make(chan struct{})
	s, versions := newTestScheduler(t, &fakeEvaluator{
		evaluate: func(ctx context.Context, _ string) (float64, error) {
			close(started)
			<-ctx.Done()

			return 0, ctx.Err()
		},
	}, func(context.Context, version.ModelVersion) {
		completions.Add(1)
	})

	s.Schedule(versions.Current())
	<-started
	s.Stop()

	assert.Equal(t, int64(0), completions.Load())

	v, err := versions.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, v.Eval)
}
