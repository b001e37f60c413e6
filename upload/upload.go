package upload

import "time"

// ClientUpload is one client's contribution to a round. A client holds at
// most one counted upload per round window; resubmitting before the round
// closes replaces the stored artifact and bumps Count instead of creating a
// second record.
type ClientUpload struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	ArtifactRef string    `json:"artifact_ref"`
	DatasetSize uint64    `json:"dataset_size"`
	Count       uint64    `json:"count"`
	RoundMarker uint64    `json:"round_marker"`
	SubmittedAt time.Time `json:"submitted_at"`
	Archived    bool      `json:"archived,omitempty"`
}

type UploadPage struct {
	Offset  uint64         `json:"offset"`
	Limit   uint64         `json:"limit"`
	Total   uint64         `json:"total"`
	Uploads []ClientUpload `json:"uploads"`
}
