package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

type wasmStrategy struct {
	binary []byte
}

// NewWasmStrategy runs a custom aggregation algorithm compiled to WASI.
// The module reads the JSON-encoded updates on stdin and writes the
// aggregated weights as JSON on stdout.
func NewWasmStrategy(wasmPath string) (Strategy, error) {
	binary, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("wasm aggregator not readable: %w", err)
	}

	return &wasmStrategy{binary: binary}, nil
}

func (w *wasmStrategy) Aggregate(updates []Update) (Weights, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	input, err := json.Marshal(updates)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal updates: %w", err)
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	var stdout bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName("aggregator").
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout)

	mod, err := r.InstantiateWithConfig(ctx, w.binary, cfg)
	if err != nil {
		var exitErr *sys.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 0 {
			return nil, errors.Join(errors.New("wasm aggregator execution failed"), err)
		}
	}
	if mod != nil {
		defer mod.Close(ctx)
	}

	var out Weights
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal aggregated weights: %w", err)
	}

	return out, nil
}
