package hmm

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"msahmm/internal/tensor"
)

// chunkOp is one per-chunk transition summary: a q-by-q operator in
// probability units with the chunk's dominant log magnitude factored out
// into off.
type chunkOp struct {
	m   *mat.Dense
	off float64
}

// composePrefix folds the per-chunk summaries left to right in the
// probability semiring, seeded from the true initial distribution. The
// running prefix is a row vector multiplied through each operator in turn;
// it is renormalized to sum one after every step with the log of the sum
// accumulated separately, so arbitrarily many chunks cannot underflow.
//
// The entering-state distribution is emitted in the log domain before each
// chunk is applied, so entering[c] is the true pre-emission state
// distribution at the first position of chunk c. The second return value is
// the total log-likelihood after the last chunk.
func composePrefix(ops []chunkOp, init []float64) ([][]float64, float64) {
	Q := len(init)
	entering := make([][]float64, len(ops))
	sigma := mat.NewVecDense(Q, append([]float64(nil), init...))
	w := mat.NewVecDense(Q, nil)
	var logScale float64
	for c, op := range ops {
		ent := make([]float64, Q)
		for q := 0; q < Q; q++ {
			ent[q] = tensor.SafeLog(sigma.AtVec(q)) + logScale
		}
		entering[c] = ent

		w.MulVec(op.m.T(), sigma)
		s := floats.Sum(w.RawVector().Data)
		if s == 0 {
			// All mass vanished; keep the sentinel arithmetic finite.
			logScale += tensor.LogZero + op.off
			sigma.CopyVec(w)
			continue
		}
		logScale += math.Log(s) + op.off
		sigma.ScaleVec(1/s, w)
	}
	return entering, logScale
}
