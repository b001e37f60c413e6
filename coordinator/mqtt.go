package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openfed/fedcoord/pkg/aggregate"
	pkgerrors "github.com/openfed/fedcoord/pkg/errors"
	"github.com/openfed/fedcoord/upload"
)

// Subscribe attaches the MQTT ingestion paths. Clients publish weight
// uploads and dataset registrations instead of calling the HTTP API.
func (svc *service) Subscribe(ctx context.Context) error {
	if svc.pubsub == nil {
		return nil
	}

	topics := map[string]func(topic string, msg map[string]any) error{
		svc.baseTopic + "/fl/uploads":  svc.handleUpload(ctx),
		svc.baseTopic + "/fl/datasets": svc.handleDataset(ctx),
	}
	for topic, handler := range topics {
		if err := svc.pubsub.Subscribe(ctx, topic, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}

	svc.logger.Info("Subscribed to client topics", slog.String("base_topic", svc.baseTopic))

	return nil
}

func (svc *service) handleUpload(ctx context.Context) func(topic string, msg map[string]any) error {
	return func(topic string, msg map[string]any) error {
		clientID, ok := msg["client_id"].(string)
		if !ok || clientID == "" {
			return pkgerrors.ErrEmptyKey
		}

		datasetSize, err := parseUint(msg["dataset_size"])
		if err != nil {
			return fmt.Errorf("%w: dataset_size: %w", pkgerrors.ErrInvalidData, err)
		}

		weights, err := parseWeights(msg["weights"])
		if err != nil {
			return fmt.Errorf("%w: weights: %w", pkgerrors.ErrInvalidData, err)
		}

		u := upload.ClientUpload{
			ClientID:    clientID,
			DatasetSize: datasetSize,
		}
		if _, err := svc.AcceptUpload(ctx, u, weights); err != nil {
			return err
		}

		return nil
	}
}

func (svc *service) handleDataset(ctx context.Context) func(topic string, msg map[string]any) error {
	return func(topic string, msg map[string]any) error {
		clientID, ok := msg["client_id"].(string)
		if !ok || clientID == "" {
			return pkgerrors.ErrEmptyKey
		}

		return svc.RegisterDataset(ctx, clientID)
	}
}

func parseUint(v any) (uint64, error) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %v", n)
		}

		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative value %v", n)
		}

		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative value %v", n)
		}

		return uint64(n), nil
	case uint64:
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// parseWeights converts a generically decoded layer map into typed weight
// vectors. CBOR carries integral values as uint64 or int64.
func parseWeights(v any) (aggregate.Weights, error) {
	layers, ok := v.(map[string]any)
	if !ok || len(layers) == 0 {
		return nil, fmt.Errorf("missing layer map")
	}

	w := make(aggregate.Weights, len(layers))
	for layer, raw := range layers {
		values, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("layer %s is not an array", layer)
		}

		vec := make([]float64, len(values))
		for i, rv := range values {
			switch f := rv.(type) {
			case float64:
				vec[i] = f
			case uint64:
				vec[i] = float64(f)
			case int64:
				vec[i] = float64(f)
			default:
				return nil, fmt.Errorf("layer %s element %d is not a number", layer, i)
			}
		}
		w[layer] = vec
	}

	return w, nil
}
