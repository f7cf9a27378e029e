package hmm

import (
	"math"

	"golang.org/x/sync/errgroup"

	"msahmm/internal/tensor"
)

// MaskFunc returns, for a position, a (models, batch, Q, Q) tensor whose
// entry (k, b, r, q) scales the transition r -> q taken when stepping into
// that position. Zero entries forbid the transition; they contribute the
// safe log of zero, never a NaN. Returning nil leaves the position
// unrestricted. Decoding calls the function concurrently, so it must be safe
// for concurrent use.
type MaskFunc func(pos int) *tensor.T4

// StatePaths holds decoded state ids per model, sequence and position.
type StatePaths struct {
	Models, Size, Length int
	states               []int32
}

func newStatePaths(models, size, length int) *StatePaths {
	return &StatePaths{
		Models: models,
		Size:   size,
		Length: length,
		states: make([]int32, models*size*length),
	}
}

// At returns the decoded state id at (model k, sequence b, position i).
func (p *StatePaths) At(k, b, i int) int32 {
	return p.states[(k*p.Size+b)*p.Length+i]
}

func (p *StatePaths) set(k, b, i int, q int32) {
	p.states[(k*p.Size+b)*p.Length+i] = q
}

// Decode computes the most likely hidden-state path per model and sequence
// via the max-plus analogue of the forward recursion followed by
// backtracking. Decoding is sequential along the position axis; parallelism
// comes from the model and batch dimensions. Ties break toward the lowest
// state id. Positions past a sequence's true length are filled with the
// model's terminal state rather than decoded.
func (e *Engine) Decode(batch *Batch, maskFn MaskFunc) (*StatePaths, error) {
	if batch.Length <= 0 {
		return nil, ErrEmptySequence
	}
	if batch.Models != e.prov.NumModels() {
		return nil, ErrModelMismatch
	}
	em, err := e.prov.EmissionProbabilities(batch, false)
	if err != nil {
		return nil, err
	}
	if err := e.checkEmissions(em, batch); err != nil {
		return nil, err
	}

	logInit := logInitDist(e.prov)
	opT := make([]*tensor.Mat, batch.Models)
	for k := range opT {
		opT[k] = logOpT(e.prov, k)
	}

	paths := newStatePaths(batch.Models, batch.Size, batch.Length)
	var g errgroup.Group
	g.SetLimit(e.workers)
	for k := 0; k < batch.Models; k++ {
		for b := 0; b < batch.Size; b++ {
			g.Go(func() error {
				e.decodeSeq(paths, batch, em, logInit.Row(k), opT[k], k, b, maskFn)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (e *Engine) decodeSeq(paths *StatePaths, batch *Batch, em *tensor.T4, logInit []float64, opT *tensor.Mat, k, b int, maskFn MaskFunc) {
	L := batch.Length
	Q := opT.R

	// Max-plus forward pass.
	gamma := tensor.NewMat(L, Q)
	g0 := gamma.Row(0)
	em0 := em.Row(k, b, 0)
	for q := 0; q < Q; q++ {
		g0[q] = logInit[q] + tensor.SafeLog(em0[q])
	}
	for i := 1; i < L; i++ {
		var mask *tensor.T4
		if maskFn != nil {
			mask = maskFn(i)
		}
		prev := gamma.Row(i - 1)
		cur := gamma.Row(i)
		emi := em.Row(k, b, i)
		for q := 0; q < Q; q++ {
			opRow := opT.Row(q)
			best := math.Inf(-1)
			for r := 0; r < Q; r++ {
				v := opRow[r] + prev[r]
				if mask != nil {
					v += tensor.SafeLog(mask.At(k, b, r, q))
				}
				if v > best {
					best = v
				}
			}
			cur[q] = best + tensor.SafeLog(emi[q])
		}
	}

	// Backtracking; the chosen predecessor is recomputed from gamma rather
	// than stored during the forward pass.
	q := tensor.ArgMax(gamma.Row(L - 1))
	paths.set(k, b, L-1, int32(q))
	for i := L - 2; i >= 0; i-- {
		var mask *tensor.T4
		if maskFn != nil {
			mask = maskFn(i + 1)
		}
		prev := gamma.Row(i)
		opRow := opT.Row(q)
		best := math.Inf(-1)
		bestPrev := 0
		for r := 0; r < Q; r++ {
			v := opRow[r] + prev[r]
			if mask != nil {
				v += tensor.SafeLog(mask.At(k, b, r, q))
			}
			if v > best {
				best = v
				bestPrev = r
			}
		}
		q = bestPrev
		paths.set(k, b, i, int32(q))
	}

	term := int32(e.prov.StateCount(k) - 1)
	for i := batch.SeqLen(k, b); i < L; i++ {
		paths.set(k, b, i, term)
	}
}
