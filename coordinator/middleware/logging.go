package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/openfed/fedcoord/coordinator"
	"github.com/openfed/fedcoord/pkg/aggregate"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) AcceptUpload(ctx context.Context, u upload.ClientUpload, weights aggregate.Weights) (resp upload.ClientUpload, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("upload",
				slog.String("client_id", u.ClientID),
				slog.Uint64("dataset_size", u.DatasetSize),
				slog.Uint64("round_marker", resp.RoundMarker),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Accept upload failed", args...)

			return
		}
		lm.logger.Info("Accept upload completed successfully", args...)
	}(time.Now())

	return lm.svc.AcceptUpload(ctx, u, weights)
}

func (lm *loggingMiddleware) ListUploads(ctx context.Context, offset, limit uint64) (resp upload.UploadPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List uploads failed", args...)

			return
		}
		lm.logger.Info("List uploads completed successfully", args...)
	}(time.Now())

	return lm.svc.ListUploads(ctx, offset, limit)
}

func (lm *loggingMiddleware) RunRound(ctx context.Context, evaluate bool) (resp coordinator.RoundResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("parent_id", resp.ParentID),
				slog.Uint64("version_id", resp.VersionID),
				slog.Bool("published", resp.Published),
				slog.Int("contributors", len(resp.Contributors)),
				slog.Int("excluded", len(resp.Excluded)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Run round failed", args...)

			return
		}
		lm.logger.Info("Run round completed successfully", args...)
	}(time.Now())

	return lm.svc.RunRound(ctx, evaluate)
}

func (lm *loggingMiddleware) GetVersion(ctx context.Context, versionID uint64) (resp version.ModelVersion, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("version",
				slog.Uint64("id", versionID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get version failed", args...)

			return
		}
		lm.logger.Info("Get version completed successfully", args...)
	}(time.Now())

	return lm.svc.GetVersion(ctx, versionID)
}

func (lm *loggingMiddleware) CurrentVersion(ctx context.Context) (resp version.ModelVersion, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("version",
				slog.Uint64("id", resp.ID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get current version failed", args...)

			return
		}
		lm.logger.Info("Get current version completed successfully", args...)
	}(time.Now())

	return lm.svc.CurrentVersion(ctx)
}

func (lm *loggingMiddleware) ListVersions(ctx context.Context, offset, limit uint64) (resp version.VersionPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List versions failed", args...)

			return
		}
		lm.logger.Info("List versions completed successfully", args...)
	}(time.Now())

	return lm.svc.ListVersions(ctx, offset, limit)
}

func (lm *loggingMiddleware) GetRewards(ctx context.Context, versionID uint64) (resp reward.Record, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("reward",
				slog.Uint64("version_id", versionID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get rewards failed", args...)

			return
		}
		lm.logger.Info("Get rewards completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRewards(ctx, versionID)
}

func (lm *loggingMiddleware) RegisterDataset(ctx context.Context, clientID string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("client",
				slog.String("id", clientID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register dataset failed", args...)

			return
		}
		lm.logger.Info("Register dataset completed successfully", args...)
	}(time.Now())

	return lm.svc.RegisterDataset(ctx, clientID)
}

func (lm *loggingMiddleware) Subscribe(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Subscribe failed", args...)

			return
		}
		lm.logger.Info("Subscribe completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscribe(ctx)
}

func (lm *loggingMiddleware) Shutdown(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Shutdown failed", args...)

			return
		}
		lm.logger.Info("Shutdown completed successfully", args...)
	}(time.Now())

	return lm.svc.Shutdown(ctx)
}
