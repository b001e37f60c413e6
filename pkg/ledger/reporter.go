package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/pkg/reward"
)

type ReporterConfig struct {
	MaxRetries     uint          `env:"COORDINATOR_LEDGER_MAX_RETRIES"     envDefault:"3"`
	AttemptTimeout time.Duration `env:"COORDINATOR_LEDGER_ATTEMPT_TIMEOUT" envDefault:"30s"`
}

// SubmissionFailure is one client's exhausted submission. It is reported in
// the round summary and never rolls the round back.
type SubmissionFailure struct {
	ClientID string `json:"client_id"`
	Err      error  `json:"error"`
}

func (f SubmissionFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.ClientID, f.Err)
}

// Reporter pushes a reward record to the ledger, one submission per client,
// with bounded backoff per submission. Failures are isolated per client.
type Reporter struct {
	ledger   Ledger
	resolver AddressResolver
	cfg      ReporterConfig
	logger   *slog.Logger
}

func NewReporter(l Ledger, resolver AddressResolver, cfg ReporterConfig, logger *slog.Logger) *Reporter {
	return &Reporter{
		ledger:   l,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Submit settles every share in the record. It always attempts all clients;
// the returned failures cover only the clients whose retry budget ran out.
func (r *Reporter) Submit(ctx context.Context, rec reward.Record) []SubmissionFailure {
	var failures []SubmissionFailure

	for clientID, share := range rec.Shares {
		address, ok := r.resolver.Resolve(clientID)
		if !ok {
			failures = append(failures, SubmissionFailure{
				ClientID: clientID,
				Err:      fmt.Errorf("%w: no ledger address registered", pkgerrors.ErrLedgerSubmission),
			})

			continue
		}

		receipt, err := r.submitOne(ctx, address, share.Amount)
		if err != nil {
			r.logger.WarnContext(ctx, "Ledger submission failed",
				slog.Uint64("version_id", rec.VersionID),
				slog.String("client_id", clientID),
				slog.Any("error", err))
			failures = append(failures, SubmissionFailure{
				ClientID: clientID,
				Err:      fmt.Errorf("%w: %w", pkgerrors.ErrLedgerSubmission, err),
			})

			continue
		}

		r.logger.InfoContext(ctx, "Reward settled",
			slog.Uint64("version_id", rec.VersionID),
			slog.String("client_id", clientID),
			slog.Float64("amount", share.Amount),
			slog.String("tx_id", receipt.TxID))
	}

	return failures
}

func (r *Reporter) submitOne(ctx context.Context, address string, amount float64) (Receipt, error) {
	operation := func() (Receipt, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
		defer cancel()

		return r.ledger.SubmitScore(attemptCtx, address, amount)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(r.cfg.MaxRetries),
	)
}
