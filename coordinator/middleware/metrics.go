package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/openfed/fedcoord/coordinator"
	"github.com/openfed/fedcoord/pkg/aggregate"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) AcceptUpload(ctx context.Context, u upload.ClientUpload, weights aggregate.Weights) (upload.ClientUpload, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "accept-upload").Add(1)
		mm.latency.With("method", "accept-upload").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.AcceptUpload(ctx, u, weights)
}

func (mm *metricsMiddleware) ListUploads(ctx context.Context, offset, limit uint64) (upload.UploadPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-uploads").Add(1)
		mm.latency.With("method", "list-uploads").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListUploads(ctx, offset, limit)
}

func (mm *metricsMiddleware) RunRound(ctx context.Context, evaluate bool) (coordinator.RoundResult, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "run-round").Add(1)
		mm.latency.With("method", "run-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RunRound(ctx, evaluate)
}

func (mm *metricsMiddleware) GetVersion(ctx context.Context, versionID uint64) (version.ModelVersion, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-version").Add(1)
		mm.latency.With("method", "get-version").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetVersion(ctx, versionID)
}

func (mm *metricsMiddleware) CurrentVersion(ctx context.Context) (version.ModelVersion, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "current-version").Add(1)
		mm.latency.With("method", "current-version").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CurrentVersion(ctx)
}

func (mm *metricsMiddleware) ListVersions(ctx context.Context, offset, limit uint64) (version.VersionPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-versions").Add(1)
		mm.latency.With("method", "list-versions").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListVersions(ctx, offset, limit)
}

func (mm *metricsMiddleware) GetRewards(ctx context.Context, versionID uint64) (reward.Record, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-rewards").Add(1)
		mm.latency.With("method", "get-rewards").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetRewards(ctx, versionID)
}

func (mm *metricsMiddleware) RegisterDataset(ctx context.Context, clientID string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "register-dataset").Add(1)
		mm.latency.With("method", "register-dataset").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RegisterDataset(ctx, clientID)
}

func (mm *metricsMiddleware) Subscribe(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "subscribe").Add(1)
		mm.latency.With("method", "subscribe").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Subscribe(ctx)
}

func (mm *metricsMiddleware) Shutdown(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "shutdown").Add(1)
		mm.latency.With("method", "shutdown").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Shutdown(ctx)
}
