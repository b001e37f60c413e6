package aggregate

import (
	"errors"
	"fmt"
)

var (
	ErrNoUpdates     = errors.New("no updates provided for aggregation")
	ErrShapeMismatch = errors.New("tensor shape mismatch between updates")
)

// Weights is a set of named parameter tensors, flattened.
type Weights map[string][]float64

// Update is one client's decoded contribution entering aggregation.
type Update struct {
	ClientID   string  `json:"client_id"`
	NumSamples uint64  `json:"num_samples"`
	Weights    Weights `json:"weights"`
}

// NoiseFunc perturbs the aggregate after averaging. Noise calibration lives
// with the caller; the engine only invokes the hook.
type NoiseFunc func(Weights) Weights

// Strategy folds a set of client updates into a single weight set. New
// strategies plug in through configuration without changing the calling
// contract.
type Strategy interface {
	Aggregate(updates []Update) (Weights, error)
}

type Config struct {
	Strategy      string  `env:"COORDINATOR_AGGREGATION_STRATEGY" envDefault:"plain_average"`
	ClipThreshold float64 `env:"COORDINATOR_CLIP_THRESHOLD"       envDefault:"1.0"`
	WasmPath      string  `env:"COORDINATOR_AGGREGATOR_WASM_PATH"`
}

// New selects a strategy once at configuration time.
func New(cfg Config, noise NoiseFunc) (Strategy, error) {
	switch cfg.Strategy {
	case "", "plain_average":
		return NewPlainAverage(), nil
	case "clipped_average":
		return NewClippedAverage(cfg.ClipThreshold, noise), nil
	case "wasm":
		return NewWasmStrategy(cfg.WasmPath)
	default:
		return nil, fmt.Errorf("unknown aggregation strategy: %s", cfg.Strategy)
	}
}

// weightedMean computes the dataset-size-weighted mean of the updates. Every
// update must carry the same tensor names and lengths.
func weightedMean(updates []Update) (Weights, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	var totalSamples float64
	for _, u := range updates {
		totalSamples += float64(u.NumSamples)
	}
	if totalSamples <= 0 {
		return nil, ErrNoUpdates
	}

	out := make(Weights, len(updates[0].Weights))
	for name, tensor := range updates[0].Weights {
		out[name] = make([]float64, len(tensor))
	}

	for _, u := range updates {
		if len(u.Weights) != len(out) {
			return nil, fmt.Errorf("%w: client %s carries %d tensors, want %d", ErrShapeMismatch, u.ClientID, len(u.Weights), len(out))
		}

		weight := float64(u.NumSamples) / totalSamples
		for name, tensor := range u.Weights {
			acc, ok := out[name]
			if !ok || len(acc) != len(tensor) {
				return nil, fmt.Errorf("%w: tensor %q from client %s", ErrShapeMismatch, name, u.ClientID)
			}
			for i, v := range tensor {
				acc[i] += v * weight
			}
		}
	}

	return out, nil
}
