package aggregate

type plainAverage struct{}

// NewPlainAverage returns the sample-weighted averaging strategy: each
// parameter is the mean of client values weighted by dataset size.
func NewPlainAverage() Strategy {
	return &plainAverage{}
}

func (p *plainAverage) Aggregate(updates []Update) (Weights, error) {
	return weightedMean(updates)
}
