package middleware

import (
	"context"

	"github.com/openfed/fedcoord/coordinator"
	"github.com/openfed/fedcoord/pkg/aggregate"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) AcceptUpload(ctx context.Context, u upload.ClientUpload, weights aggregate.Weights) (upload.ClientUpload, error) {
	ctx, span := tm.tracer.Start(ctx, "accept-upload", trace.WithAttributes(
		attribute.String("client_id", u.ClientID),
		attribute.Int64("dataset_size", int64(u.DatasetSize)),
	))
	defer span.End()

	return tm.svc.AcceptUpload(ctx, u, weights)
}

func (tm *tracing) ListUploads(ctx context.Context, offset, limit uint64) (upload.UploadPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-uploads", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListUploads(ctx, offset, limit)
}

func (tm *tracing) RunRound(ctx context.Context, evaluate bool) (coordinator.RoundResult, error) {
	ctx, span := tm.tracer.Start(ctx, "run-round", trace.WithAttributes(
		attribute.Bool("evaluate", evaluate),
	))
	defer span.End()

	return tm.svc.RunRound(ctx, evaluate)
}

func (tm *tracing) GetVersion(ctx context.Context, versionID uint64) (version.ModelVersion, error) {
	ctx, span := tm.tracer.Start(ctx, "get-version", trace.WithAttributes(
		attribute.Int64("version_id", int64(versionID)),
	))
	defer span.End()

	return tm.svc.GetVersion(ctx, versionID)
}

func (tm *tracing) CurrentVersion(ctx context.Context) (version.ModelVersion, error) {
	ctx, span := tm.tracer.Start(ctx, "current-version")
	defer span.End()

	return tm.svc.CurrentVersion(ctx)
}

func (tm *tracing) ListVersions(ctx context.Context, offset, limit uint64) (version.VersionPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-versions", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListVersions(ctx, offset, limit)
}

func (tm *tracing) GetRewards(ctx context.Context, versionID uint64) (reward.Record, error) {
	ctx, span := tm.tracer.Start(ctx, "get-rewards", trace.WithAttributes(
		attribute.Int64("version_id", int64(versionID)),
	))
	defer span.End()

	return tm.svc.GetRewards(ctx, versionID)
}

func (tm *tracing) RegisterDataset(ctx context.Context, clientID string) error {
	ctx, span := tm.tracer.Start(ctx, "register-dataset", trace.WithAttributes(
		attribute.String("client_id", clientID),
	))
	defer span.End()

	return tm.svc.RegisterDataset(ctx, clientID)
}

func (tm *tracing) Subscribe(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "subscribe")
	defer span.End()

	return tm.svc.Subscribe(ctx)
}

func (tm *tracing) Shutdown(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "shutdown")
	defer span.End()

	return tm.svc.Shutdown(ctx)
}
