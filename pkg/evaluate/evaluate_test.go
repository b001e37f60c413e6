package evaluate_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openfed/fedcoord/pkg/evaluate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/evaluate", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "models/model_v2.cbor", req["artifact_ref"])

		_ = json.NewEncoder(w).Encode(map[string]float64{"metric_value": 0.42})
	}))
	defer srv.Close()

	e := evaluate.NewHTTPEvaluator(evaluate.Config{URL: srv.URL, Timeout: time.Second})

	metric, err := e.Evaluate(context.Background(), "models/model_v2.cbor")
	require.NoError(t, err)
	assert.InDelta(t, 0.42, metric, 1e-9)
}

func TestEvaluateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := evaluate.NewHTTPEvaluator(evaluate.Config{URL: srv.URL, Timeout: time.Second})

	_, err := e.Evaluate(context.Background(), "models/model_v2.cbor")
	assert.Error(t, err)
}

func TestEvaluateHonorsContext(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect and
		// cancel the request context; otherwise Close deadlocks on this handler.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	e := evaluate.NewHTTPEvaluator(evaluate.Config{URL: srv.URL, Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := e.Evaluate(ctx, "models/model_v2.cbor")
	assert.Error(t, err)
}
