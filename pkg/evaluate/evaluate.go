package evaluate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Evaluator scores a published weight artifact. Implementations may take
// substantially longer than a round; callers must never block on them.
type Evaluator interface {
	Evaluate(ctx context.Context, artifactRef string) (float64, error)
}

type Config struct {
	URL     string        `env:"COORDINATOR_EVALUATOR_URL"`
	Timeout time.Duration `env:"COORDINATOR_EVALUATOR_TIMEOUT" envDefault:"30m"`
}

type httpEvaluator struct {
	cfg    Config
	client *http.Client
}

// NewHTTPEvaluator forwards evaluation to an external scoring service.
func NewHTTPEvaluator(cfg Config) Evaluator {
	return &httpEvaluator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (e *httpEvaluator) Evaluate(ctx context.Context, artifactRef string) (float64, error) {
	payload, err := json.Marshal(map[string]any{
		"artifact_ref": artifactRef,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal evaluation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+"/evaluate", bytes.NewBuffer(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach evaluator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("evaluator returned error: %d", resp.StatusCode)
	}

	var result struct {
		MetricValue float64 `json:"metric_value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode evaluation result: %w", err)
	}

	return result.MetricValue, nil
}
