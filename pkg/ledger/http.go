package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultSubmitTimeout = 30 * time.Second

type httpLedger struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLedger talks to a ledger gateway over its HTTP boundary. The gateway
// hides contract details; the core only posts scores and data-upload events.
func NewHTTPLedger(baseURL string, client *http.Client) Ledger {
	if client == nil {
		client = &http.Client{Timeout: defaultSubmitTimeout}
	}

	return &httpLedger{
		baseURL: baseURL,
		client:  client,
	}
}

func (l *httpLedger) SubmitScore(ctx context.Context, clientAddress string, amount float64) (Receipt, error) {
	payload, err := json.Marshal(map[string]any{
		"client_address": clientAddress,
		"amount":         amount,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to marshal score submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/scores", bytes.NewBuffer(payload))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to submit score to ledger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Receipt{}, fmt.Errorf("ledger returned error: %d", resp.StatusCode)
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return Receipt{}, fmt.Errorf("failed to decode ledger receipt: %w", err)
	}

	return receipt, nil
}

func (l *httpLedger) RecordDataUpload(ctx context.Context, clientAddress string) error {
	payload, err := json.Marshal(map[string]any{
		"client_address": clientAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal data upload record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/data-uploads", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to record data upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("ledger returned error: %d", resp.StatusCode)
	}

	return nil
}
