package coordinator

import (
	"context"

	"github.com/openfed/fedcoord/pkg/aggregate"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/openfed/fedcoord/upload"
	"github.com/openfed/fedcoord/version"
)

// ExcludedClient names an upload dropped from a round and the reason it was
// dropped. Exclusion never fails the round.
type ExcludedClient struct {
	ClientID string `json:"client_id"`
	Reason   string `json:"reason"`
}

// RoundResult summarizes one aggregation round. Published is false when the
// round lost the publish race to a concurrent round; its uploads stay
// eligible for the next one.
type RoundResult struct {
	Published    bool             `json:"published"`
	VersionID    uint64           `json:"version_id,omitempty"`
	ParentID     uint64           `json:"parent_id"`
	Contributors []string         `json:"contributors,omitempty"`
	Excluded     []ExcludedClient `json:"excluded,omitempty"`
}

type Service interface {
	AcceptUpload(ctx context.Context, u upload.ClientUpload, weights aggregate.Weights) (upload.ClientUpload, error)
	ListUploads(ctx context.Context, offset, limit uint64) (upload.UploadPage, error)

	RunRound(ctx context.Context, evaluate bool) (RoundResult, error)

	GetVersion(ctx context.Context, versionID uint64) (version.ModelVersion, error)
	CurrentVersion(ctx context.Context) (version.ModelVersion, error)
	ListVersions(ctx context.Context, offset, limit uint64) (version.VersionPage, error)

	GetRewards(ctx context.Context, versionID uint64) (reward.Record, error)
	RegisterDataset(ctx context.Context, clientID string) error

	Subscribe(ctx context.Context) error

	Shutdown(ctx context.Context) error
}
