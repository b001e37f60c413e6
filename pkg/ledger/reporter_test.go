package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/pkg/ledger"
	"github.com/openfed/fedcoord/pkg/reward"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	mu       sync.Mutex
	attempts map[string]int
	failing  map[string]bool
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		attempts: make(map[string]int),
		failing:  make(map[string]bool),
	}
}

func (s *stubLedger) SubmitScore(_ context.Context, clientAddress string, _ float64) (ledger.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[clientAddress]++
	if s.failing[clientAddress] {
		return ledger.Receipt{}, errors.New("ledger unavailable")
	}

	return ledger.Receipt{TxID: "tx-1", SubmittedAt: time.Now()}, nil
}

func (s *stubLedger) RecordDataUpload(_ context.Context, _ string) error {
	return nil
}

func (s *stubLedger) attemptCount(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.attempts[address]
}

type stubResolver map[string]string

func (s stubResolver) Resolve(clientID string) (string, bool) {
	addr, ok := s[clientID]

	return addr, ok
}

func newReporter(chain ledger.Ledger, resolver ledger.AddressResolver, retries uint) *ledger.Reporter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return ledger.NewReporter(chain, resolver, ledger.ReporterConfig{
		MaxRetries:     retries,
		AttemptTimeout: time.Second,
	}, logger)
}

func record() reward.Record {
	return reward.Record{
		VersionID:   2,
		Coefficient: 1,
		Shares: map[string]reward.Share{
			"client-a": {RawScore: 104, Amount: 66.67},
			"client-b": {RawScore: 52, Amount: 33.33},
		},
		CreatedAt: time.Now(),
	}
}

func TestSubmitAllSucceed(t *testing.T) {
	chain := newStubLedger()
	resolver := stubResolver{"client-a": "0xaaa", "client-b": "0xbbb"}

	failures := newReporter(chain, resolver, 3).Submit(context.Background(), record())

	assert.Empty(t, failures)
	assert.Equal(t, 1, chain.attemptCount("0xaaa"))
	assert.Equal(t, 1, chain.attemptCount("0xbbb"))
}

func TestSubmitIsolatesFailures(t *testing.T) {
	chain := newStubLedger()
	chain.failing["0xaaa"] = true
	resolver := stubResolver{"client-a": "0xaaa", "client-b": "0xbbb"}

	failures := newReporter(chain, resolver, 2).Submit(context.Background(), record())

	require.Len(t, failures, 1)
	assert.Equal(t, "client-a", failures[0].ClientID)
	assert.ErrorIs(t, failures[0].Err, pkgerrors.ErrLedgerSubmission)

	// The healthy client still settles.
	assert.Equal(t, 1, chain.attemptCount("0xbbb"))
}

func TestSubmitBoundedRetries(t *testing.T) {
	chain := newStubLedger()
	chain.failing["0xaaa"] = true
	resolver := stubResolver{"client-a": "0xaaa"}

	failures := newReporter(chain, resolver, 3).Submit(context.Background(), reward.Record{
		VersionID: 2,
		Shares:    map[string]reward.Share{"client-a": {Amount: 10}},
	})

	require.Len(t, failures, 1)
	assert.Equal(t, 3, chain.attemptCount("0xaaa"))
}

func TestSubmitUnresolvedAddress(t *testing.T) {
	chain := newStubLedger()
	resolver := stubResolver{}

	failures := newReporter(chain, resolver, 3).Submit(context.Background(), reward.Record{
		VersionID: 2,
		Shares:    map[string]reward.Share{"client-x": {Amount: 10}},
	})

	require.Len(t, failures, 1)
	assert.Equal(t, "client-x", failures[0].ClientID)
	assert.ErrorIs(t, failures[0].Err, pkgerrors.ErrLedgerSubmission)
	assert.Equal(t, 0, chain.attemptCount("0xaaa"))
}
