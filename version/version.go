package version

import "time"

// EvalResult is the metric snapshot for one model version. It is written
// exactly once, after evaluation completes.
type EvalResult struct {
	VersionID   uint64    `json:"version_id"`
	MetricValue float64   `json:"metric_value"`
	ComputedAt  time.Time `json:"computed_at"`
}

// Contributor captures a client's participation stats as enumerated at
// aggregation time. The same snapshot flows into reward calculation; it is
// never re-queried from the upload store.
type Contributor struct {
	ClientID    string `json:"client_id"`
	Uploads     uint64 `json:"uploads"`
	DatasetSize uint64 `json:"dataset_size"`
}

// ModelVersion is an immutable aggregation result. Eval is the only field
// mutated after creation.
type ModelVersion struct {
	ID           uint64        `json:"id"`
	ParentID     uint64        `json:"parent_id"`
	ArtifactRef  string        `json:"artifact_ref"`
	Contributors []Contributor `json:"contributors"`
	CreatedAt    time.Time     `json:"created_at"`
	Eval         *EvalResult   `json:"eval,omitempty"`
}

// ContributorSet returns the client ids folded into this version.
func (v ModelVersion) ContributorSet() []string {
	ids := make([]string, 0, len(v.Contributors))
	for _, c := range v.Contributors {
		ids = append(ids, c.ClientID)
	}

	return ids
}

type VersionPage struct {
	Offset   uint64         `json:"offset"`
	Limit    uint64         `json:"limit"`
	Total    uint64         `json:"total"`
	Versions []ModelVersion `json:"versions"`
}
