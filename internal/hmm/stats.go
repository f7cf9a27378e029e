package hmm

import (
	"fmt"

	"msahmm/internal/tensor"
)

// MeanLogLik reduces a (models, batch) log-likelihood matrix to one weighted
// mean per model. weights may be nil for a plain average; otherwise it holds
// one non-negative weight per sequence and the mean is normalized by the
// weight sum.
func MeanLogLik(loglik *tensor.Mat, weights []float64) ([]float64, error) {
	if weights != nil && len(weights) != loglik.C {
		return nil, fmt.Errorf("got %d weights for %d sequences", len(weights), loglik.C)
	}
	out := make([]float64, loglik.R)
	for k := 0; k < loglik.R; k++ {
		row := loglik.Row(k)
		var sum, wsum float64
		for b, ll := range row {
			w := 1.0
			if weights != nil {
				w = weights[b]
			}
			sum += w * ll
			wsum += w
		}
		if wsum == 0 {
			return nil, fmt.Errorf("weights sum to zero")
		}
		out[k] = sum / wsum
	}
	return out, nil
}
