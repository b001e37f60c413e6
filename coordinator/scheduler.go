package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/pkg/evaluate"
	"github.com/openfed/fedcoord/version"
)

// evalScheduler runs model evaluations off the round path. At most one
// evaluation per version is ever in flight; scheduling is non-blocking.
type evalScheduler struct {
	evaluator  evaluate.Evaluator
	versions   *version.Manager
	onComplete func(ctx context.Context, v version.ModelVersion)
	logger     *slog.Logger

	mu       sync.Mutex
	inflight map[uint64]struct{}
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func newEvalScheduler(
	evaluator evaluate.Evaluator,
	versions *version.Manager,
	onComplete func(ctx context.Context, v version.ModelVersion),
	logger *slog.Logger,
) *evalScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &evalScheduler{
		evaluator:  evaluator,
		versions:   versions,
		onComplete: onComplete,
		logger:     logger,
		inflight:   make(map[uint64]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Schedule queues an evaluation for the version and returns immediately.
// A version already in flight or already evaluated is skipped.
func (s *evalScheduler) Schedule(v version.ModelVersion) {
	if v.Eval != nil {
		return
	}

	s.mu.Lock()
	if _, ok := s.inflight[v.ID]; ok {
		s.mu.Unlock()

		return
	}
	s.inflight[v.ID] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(v)
}

func (s *evalScheduler) run(v version.ModelVersion) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, v.ID)
		s.mu.Unlock()
	}()

	metric, err := s.evaluator.Evaluate(s.ctx, v.ArtifactRef)
	if s.ctx.Err() != nil {
		// Shutdown. Nothing is written and settlement is not triggered;
		// the version keeps its coefficient fallback until re-evaluated.
		return
	}

	switch {
	case err != nil:
		s.logger.Warn("Model evaluation failed",
			slog.Uint64("version_id", v.ID),
			slog.Any("error", errors.Join(pkgerrors.ErrEvaluationFailed, err)))
	default:
		err := s.versions.RecordEval(s.ctx, v.ID, metric)
		switch {
		case errors.Is(err, pkgerrors.ErrEvalAlreadyRecorded):
		case err != nil:
			s.logger.Warn("Failed to record evaluation result",
				slog.Uint64("version_id", v.ID),
				slog.Any("error", err))
		default:
			s.logger.Info("Model evaluated",
				slog.Uint64("version_id", v.ID),
				slog.Float64("metric_value", metric))
		}
	}

	s.onComplete(s.ctx, v)
}

// Stop cancels in-flight evaluations and waits for their goroutines.
func (s *evalScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}
