package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openfed/fedcoord/pkg/aggregate"
	"github.com/openfed/fedcoord/pkg/artifact"
	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/pkg/evaluate"
	"github.com/openfed/fedcoord/pkg/ledger"
	"github.com/openfed/fedcoord/pkg/mqtt"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/pkg/storage"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
)

type service struct {
	uploadsDB storage.UploadRepository
	rewardsDB storage.RewardRepository
	versions  *version.Manager
	artifacts *artifact.Store
	strategy  aggregate.Strategy
	evals     *evalScheduler
	params    reward.Params
	reporter  *ledger.Reporter
	chain     ledger.Ledger
	resolver  ledger.AddressResolver
	pubsub    mqtt.PubSub
	baseTopic string
	logger    *slog.Logger
}

func NewService(
	repos *storage.Repositories,
	versions *version.Manager,
	artifacts *artifact.Store,
	strategy aggregate.Strategy,
	evaluator evaluate.Evaluator,
	params reward.Params,
	reporter *ledger.Reporter,
	chain ledger.Ledger,
	resolver ledger.AddressResolver,
	pubsub mqtt.PubSub,
	baseTopic string,
	logger *slog.Logger,
) Service {
	svc := &service{
		uploadsDB: repos.Uploads,
		rewardsDB: repos.Rewards,
		versions:  versions,
		artifacts: artifacts,
		strategy:  strategy,
		params:    params,
		reporter:  reporter,
		chain:     chain,
		resolver:  resolver,
		pubsub:    pubsub,
		baseTopic: baseTopic,
		logger:    logger,
	}
	svc.evals = newEvalScheduler(evaluator, versions, svc.settleQuietly, logger)

	return svc
}

func (svc *service) AcceptUpload(ctx context.Context, u upload.ClientUpload, weights aggregate.Weights) (upload.ClientUpload, error) {
	if u.ClientID == "" {
		return upload.ClientUpload{}, pkgerrors.ErrEmptyKey
	}
	if len(weights) == 0 {
		return upload.ClientUpload{}, fmt.Errorf("%w: upload carries no weights", pkgerrors.ErrInvalidData)
	}

	u.RoundMarker = svc.versions.Current().ID

	ref, err := svc.artifacts.SaveUpload(u.RoundMarker, u.ClientID, weights)
	if err != nil {
		return upload.ClientUpload{}, err
	}
	u.ID = uuid.NewString()
	u.ArtifactRef = ref
	u.SubmittedAt = time.Now()

	return svc.uploadsDB.Upsert(ctx, u)
}

func (svc *service) ListUploads(ctx context.Context, offset, limit uint64) (upload.UploadPage, error) {
	uploads, total, err := svc.uploadsDB.List(ctx, offset, limit)
	if err != nil {
		return upload.UploadPage{}, err
	}

	return upload.UploadPage{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Uploads: uploads,
	}, nil
}

func (svc *service) RunRound(ctx context.Context, evaluate bool) (RoundResult, error) {
	parent := svc.versions.Current()
	res := RoundResult{ParentID: parent.ID}

	uploads, err := svc.uploadsDB.ListByRound(ctx, parent.ID)
	if err != nil {
		return res, err
	}
	if len(uploads) == 0 {
		return res, pkgerrors.ErrNoNewUploads
	}

	updates := make([]aggregate.Update, 0, len(uploads))
	contributors := make([]version.Contributor, 0, len(uploads))
	for _, u := range uploads {
		w, err := svc.artifacts.Load(u.ArtifactRef)
		if err != nil {
			svc.logger.Warn("Excluding client from round",
				slog.String("client_id", u.ClientID),
				slog.Uint64("round_marker", u.RoundMarker),
				slog.Any("error", err))
			res.Excluded = append(res.Excluded, ExcludedClient{
				ClientID: u.ClientID,
				Reason:   err.Error(),
			})

			continue
		}

		updates = append(updates, aggregate.Update{
			ClientID:   u.ClientID,
			NumSamples: u.DatasetSize,
			Weights:    w,
		})
		contributors = append(contributors, version.Contributor{
			ClientID:    u.ClientID,
			Uploads:     u.Count,
			DatasetSize: u.DatasetSize,
		})
	}
	if len(updates) == 0 {
		return res, pkgerrors.ErrNoNewUploads
	}

	merged, err := svc.strategy.Aggregate(updates)
	if err != nil {
		return res, err
	}

	ref, err := svc.artifacts.SaveModel(parent.ID+1, merged)
	if err != nil {
		return res, err
	}

	next, err := svc.versions.Publish(ctx, parent.ID, ref, contributors)
	if err != nil {
		// A lost publish race leaves every upload eligible for the round
		// that aggregates against the new head.
		return res, err
	}

	res.Published = true
	res.VersionID = next.ID
	res.Contributors = next.ContributorSet()

	if err := svc.uploadsDB.Archive(ctx, parent.ID, res.Contributors); err != nil {
		svc.logger.Warn("Failed to archive consumed uploads",
			slog.Uint64("round_marker", parent.ID),
			slog.Any("error", err))
	}

	if evaluate {
		svc.evals.Schedule(next)
	} else if err := svc.settle(ctx, next); err != nil {
		svc.logger.Warn("Settlement failed",
			slog.Uint64("version_id", next.ID),
			slog.Any("error", err))
	}

	svc.notifyRoundComplete(ctx, res)

	return res, nil
}

func (svc *service) GetVersion(ctx context.Context, versionID uint64) (version.ModelVersion, error) {
	return svc.versions.Get(ctx, versionID)
}

func (svc *service) CurrentVersion(ctx context.Context) (version.ModelVersion, error) {
	return svc.versions.Current(), nil
}

func (svc *service) ListVersions(ctx context.Context, offset, limit uint64) (version.VersionPage, error) {
	return svc.versions.List(ctx, offset, limit)
}

func (svc *service) GetRewards(ctx context.Context, versionID uint64) (reward.Record, error) {
	return svc.rewardsDB.Get(ctx, versionID)
}

func (svc *service) RegisterDataset(ctx context.Context, clientID string) error {
	if clientID == "" {
		return pkgerrors.ErrEmptyKey
	}

	address, ok := svc.resolver.Resolve(clientID)
	if !ok {
		return fmt.Errorf("%w: client %s has no registered address", pkgerrors.ErrNotFound, clientID)
	}

	return svc.chain.RecordDataUpload(ctx, address)
}

func (svc *service) Shutdown(ctx context.Context) error {
	svc.evals.Stop()

	if svc.pubsub != nil {
		return svc.pubsub.Disconnect(ctx)
	}

	return nil
}

// settle scores the version's contributor snapshot against the reward pool
// and pushes the resulting record to durable storage and the ledger. The
// version is refetched so an evaluation recorded after publish is seen.
func (svc *service) settle(ctx context.Context, v version.ModelVersion) error {
	stored, err := svc.versions.Get(ctx, v.ID)
	if err != nil {
		return err
	}

	var prevEval *version.EvalResult
	if stored.ParentID != 0 {
		parent, err := svc.versions.Get(ctx, stored.ParentID)
		if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
			return err
		}
		if err == nil {
			prevEval = parent.Eval
		}
	}

	rec, err := reward.Calculate(stored.ID, stored.Contributors, svc.params, stored.Eval, prevEval)
	if err != nil {
		return err
	}

	if err := svc.rewardsDB.Create(ctx, rec); err != nil {
		return err
	}

	if failures := svc.reporter.Submit(ctx, rec); len(failures) > 0 {
		svc.logger.Warn("Settlement completed with ledger failures",
			slog.Uint64("version_id", stored.ID),
			slog.Int("failed", len(failures)))
	}

	return nil
}

// settleQuietly is the evaluation completion hook. Settlement errors here
// have no caller to report to, so they go to the log.
func (svc *service) settleQuietly(ctx context.Context, v version.ModelVersion) {
	if err := svc.settle(ctx, v); err != nil {
		svc.logger.Warn("Settlement failed after evaluation",
			slog.Uint64("version_id", v.ID),
			slog.Any("error", err))
	}
}

func (svc *service) notifyRoundComplete(ctx context.Context, res RoundResult) {
	if svc.pubsub == nil {
		return
	}

	topic := svc.baseTopic + "/fl/rounds/next"
	if err := svc.pubsub.Publish(ctx, topic, res); err != nil {
		svc.logger.Warn("Failed to publish round completion",
			slog.Uint64("version_id", res.VersionID),
			slog.Any("error", err))
	}
}
