package aggregate

import "math"

type clippedAverage struct {
	threshold float64
	noise     NoiseFunc
}

// NewClippedAverage bounds each client's update to the configured L2 norm
// before averaging, then applies the post-average noise hook if one is set.
func NewClippedAverage(threshold float64, noise NoiseFunc) Strategy {
	return &clippedAverage{
		threshold: threshold,
		noise:     noise,
	}
}

func (c *clippedAverage) Aggregate(updates []Update) (Weights, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	clipped := make([]Update, 0, len(updates))
	for _, u := range updates {
		u.Weights = clipL2Norm(u.Weights, c.threshold)
		clipped = append(clipped, u)
	}

	out, err := weightedMean(clipped)
	if err != nil {
		return nil, err
	}

	if c.noise != nil {
		out = c.noise(out)
	}

	return out, nil
}

// clipL2Norm rescales the whole update so its global L2 norm does not exceed
// threshold. Updates already within the bound pass through untouched.
func clipL2Norm(w Weights, threshold float64) Weights {
	if threshold <= 0 {
		return w
	}

	var sq float64
	for _, tensor := range w {
		for _, v := range tensor {
			sq += v * v
		}
	}
	norm := math.Sqrt(sq)
	if norm <= threshold {
		return w
	}

	scale := threshold / norm
	out := make(Weights, len(w))
	for name, tensor := range w {
		scaled := make([]float64, len(tensor))
		for i, v := range tensor {
			scaled[i] = v * scale
		}
		out[name] = scaled
	}

	return out
}
