package hmm

import "msahmm/internal/tensor"

// Backward runs the mirror of the forward recursion: the same machinery
// applied to the reversed model over the reversed position axis, with chunk
// composition consequently running in reverse chunk order. The result is
// re-reversed and the emission factor stripped, so the returned tensor holds
// the true log backward variables in original position order:
// logsumexp_q(forward(i,q)+backward(i,q)) equals the sequence log-likelihood
// at every position i.
func (e *Engine) Backward(batch *Batch) (*tensor.T4, error) {
	if err := e.check(batch); err != nil {
		return nil, err
	}
	emRev, err := e.prov.EmissionProbabilities(batch, true)
	if err != nil {
		return nil, err
	}
	vars, _, err := e.run(Reversed(e.prov), emRev, batch)
	if err != nil {
		return nil, err
	}

	K, B, L, Q := batch.Models, batch.Size, batch.Length, e.prov.MaxStateCount()
	out := tensor.NewT4(K, B, L, Q)
	for k := 0; k < K; k++ {
		for b := 0; b < B; b++ {
			for j := 0; j < L; j++ {
				src := vars.Row(k, b, j)
				emj := emRev.Row(k, b, j)
				dst := out.Row(k, b, L-1-j)
				for q := 0; q < Q; q++ {
					dst[q] = src[q] - tensor.SafeLog(emj[q])
				}
			}
		}
	}
	return out, nil
}
