package hmm

import (
	"math"

	"msahmm/internal/tensor"
)

// Posteriors runs the forward and backward engines and combines them into
// per-position state posteriors exp(forward + backward - loglik) of shape
// (models, batch, length, Q), together with the log-likelihood per model and
// sequence. For every valid position the posterior over real states sums to
// one; padding states receive no mass.
func (e *Engine) Posteriors(batch *Batch) (*tensor.T4, *tensor.Mat, error) {
	fwd, loglik, err := e.Forward(batch)
	if err != nil {
		return nil, nil, err
	}
	bwd, err := e.Backward(batch)
	if err != nil {
		return nil, nil, err
	}

	K, B, L, Q := batch.Models, batch.Size, batch.Length, e.prov.MaxStateCount()
	post := tensor.NewT4(K, B, L, Q)
	for k := 0; k < K; k++ {
		for b := 0; b < B; b++ {
			ll := loglik.At(k, b)
			for i := 0; i < L; i++ {
				f := fwd.Row(k, b, i)
				bw := bwd.Row(k, b, i)
				dst := post.Row(k, b, i)
				for q := 0; q < Q; q++ {
					dst[q] = math.Exp(f[q] + bw[q] - ll)
				}
			}
		}
	}
	return post, loglik, nil
}
