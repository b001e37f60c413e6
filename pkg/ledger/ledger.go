package ledger

import (
	"context"
	"time"
)

// Receipt acknowledges one settled score on the external ledger.
type Receipt struct {
	TxID        string    `json:"tx_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Ledger is the boundary to the external settlement record. The core depends
// on these two operations only; contract internals (ABI, gas, accounts) stay
// on the other side.
type Ledger interface {
	// SubmitScore records one client's reward amount for a round.
	SubmitScore(ctx context.Context, clientAddress string, amount float64) (Receipt, error)

	// RecordDataUpload notifies the ledger that a client registered raw
	// training data. Fire-and-forget.
	RecordDataUpload(ctx context.Context, clientAddress string) error
}

// AddressResolver maps a client id to its ledger address.
type AddressResolver interface {
	Resolve(clientID string) (string, bool)
}
