package hmm

import (
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"msahmm/internal/tensor"
)

// Forward runs the scaled forward recursion over the batch and returns the
// true log forward variables of shape (models, batch, length, Q) together
// with the log-likelihood per model and sequence. With Chunks > 1 each
// sequence is evaluated as independent parallel blocks that are recombined
// through the chunk composer.
func (e *Engine) Forward(batch *Batch) (*tensor.T4, *tensor.Mat, error) {
	if err := e.check(batch); err != nil {
		return nil, nil, err
	}
	em, err := e.prov.EmissionProbabilities(batch, false)
	if err != nil {
		return nil, nil, err
	}
	return e.run(e.prov, em, batch)
}

// run dispatches the forward machinery for the given provider view. The
// backward engine reuses it with the reversed provider and reversed
// emissions.
func (e *Engine) run(p Provider, em *tensor.T4, batch *Batch) (*tensor.T4, *tensor.Mat, error) {
	if err := e.checkEmissions(em, batch); err != nil {
		return nil, nil, err
	}
	logInit := logInitDist(p)
	opT := make([]*tensor.Mat, batch.Models)
	for k := range opT {
		opT[k] = logOpT(p, k)
	}
	if e.chunks == 1 {
		return e.runDense(p, em, batch, logInit, opT)
	}
	return e.runChunked(p, em, batch, logInit, opT)
}

func (e *Engine) runDense(p Provider, em *tensor.T4, batch *Batch, logInit *tensor.Mat, opT []*tensor.Mat) (*tensor.T4, *tensor.Mat, error) {
	K, B, L, Q := batch.Models, batch.Size, batch.Length, p.MaxStateCount()
	vars := tensor.NewT4(K, B, L, Q)
	loglik := tensor.NewMat(K, B)
	var g errgroup.Group
	g.SetLimit(e.workers)
	for k := 0; k < K; k++ {
		for b := 0; b < B; b++ {
			g.Go(func() error {
				ll := forwardSeq(
					func(i int) []float64 { return vars.Row(k, b, i) },
					func(i int) []float64 { return em.Row(k, b, i) },
					logInit.Row(k), opT[k], L)
				loglik.Set(k, b, ll)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return vars, loglik, nil
}

// forwardSeq runs the scaled recursion for one (model, sequence) element and
// returns its log-likelihood. out(i) receives the recombined true log
// forward values of position i.
func forwardSeq(out, emRow func(i int) []float64, logInit []float64, opT *tensor.Mat, L int) float64 {
	Q := opT.R
	v := NewScaledVec(Q)
	next := make([]float64, Q)
	col := make([]float64, Q)
	em0 := emRow(0)
	for q := 0; q < Q; q++ {
		v.Local[q] = logInit[q] + tensor.SafeLog(em0[q])
	}
	v.Renorm()
	writeScaled(out(0), v)
	for i := 1; i < L; i++ {
		emi := emRow(i)
		for q := 0; q < Q; q++ {
			row := opT.Row(q)
			for r := 0; r < Q; r++ {
				col[r] = row[r] + v.Local[r]
			}
			next[q] = tensor.LogSumExp(col) + tensor.SafeLog(emi[q])
		}
		copy(v.Local, next)
		v.Renorm()
		writeScaled(out(i), v)
	}
	return tensor.LogSumExp(v.Local) + v.Scale
}

func writeScaled(dst []float64, v *ScaledVec) {
	for q := range dst {
		dst[q] = v.Local[q] + v.Scale
	}
}

func (e *Engine) runChunked(p Provider, em *tensor.T4, batch *Batch, logInit *tensor.Mat, opT []*tensor.Mat) (*tensor.T4, *tensor.Mat, error) {
	K, B, L, Q := batch.Models, batch.Size, batch.Length, p.MaxStateCount()
	P := e.chunks
	cs := L / P

	// Chunk-local score tables, one (entering state, state) operator per
	// position, flattened over (model, sequence).
	local := tensor.NewT4(K*B, L, Q, Q)
	ops := make([]chunkOp, K*B*P)

	probOp := make([]*mat.Dense, K)
	for k := 0; k < K; k++ {
		a := p.TransitionOperator(k)
		probOp[k] = mat.NewDense(Q, Q, a.Data)
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for k := 0; k < K; k++ {
		for b := 0; b < B; b++ {
			for c := 0; c < P; c++ {
				g.Go(func() error {
					ops[(k*B+b)*P+c] = forwardChunk(local, k*B+b, c*cs, cs,
						func(i int) []float64 { return em.Row(k, b, i) },
						opT[k], probOp[k])
					return nil
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// The only serial step: prefix composition over the chunk summaries,
	// independent per sequence.
	vars := tensor.NewT4(K, B, L, Q)
	loglik := tensor.NewMat(K, B)
	initDist := p.InitialDistribution()
	var g2 errgroup.Group
	g2.SetLimit(e.workers)
	for k := 0; k < K; k++ {
		for b := 0; b < B; b++ {
			g2.Go(func() error {
				seqOps := ops[(k*B+b)*P : (k*B+b+1)*P]
				entering, ll := composePrefix(seqOps, initDist.Row(k))
				loglik.Set(k, b, ll)
				inject(vars, local, k, b, entering, cs)
				return nil
			})
		}
	}
	if err := g2.Wait(); err != nil {
		return nil, nil, err
	}
	return vars, loglik, nil
}

// forwardChunk runs the recursion of one chunk seeded with every possible
// entering state simultaneously. It fills the chunk's rows of the local
// table with true chunk-local log values and returns the chunk's transition
// summary: the last-position operator in probability units, folded with one
// transition step so that summaries compose by plain matrix product.
func forwardChunk(local *tensor.T4, row, start, cs int, emRow func(i int) []float64, opT *tensor.Mat, probOp *mat.Dense) chunkOp {
	Q := opT.R
	m := NewScaledMat(Q)
	next := make([]float64, Q)
	col := make([]float64, Q)

	em0 := emRow(start)
	for r := 0; r < Q; r++ {
		lrow := m.Local.Row(r)
		for q := 0; q < Q; q++ {
			if q == r {
				lrow[q] = tensor.SafeLog(em0[q])
			} else {
				lrow[q] = tensor.LogZero
			}
		}
	}
	m.Renorm()
	storeChunk(local, row, start, m)

	for i := start + 1; i < start+cs; i++ {
		emi := emRow(i)
		for r := 0; r < Q; r++ {
			lrow := m.Local.Row(r)
			for q := 0; q < Q; q++ {
				opRow := opT.Row(q)
				for s := 0; s < Q; s++ {
					col[s] = opRow[s] + lrow[s]
				}
				next[q] = tensor.LogSumExp(col) + tensor.SafeLog(emi[q])
			}
			copy(lrow, next)
		}
		m.Renorm()
		storeChunk(local, row, i, m)
	}

	// Strip the chunk's offset before exponentiating so the summary cannot
	// underflow regardless of chunk length.
	off := math.Inf(-1)
	for r := 0; r < Q; r++ {
		for q := 0; q < Q; q++ {
			if v := m.Log(r, q); v > off {
				off = v
			}
		}
	}
	n := mat.NewDense(Q, Q, nil)
	for r := 0; r < Q; r++ {
		for q := 0; q < Q; q++ {
			n.Set(r, q, math.Exp(m.Log(r, q)-off))
		}
	}
	var summary mat.Dense
	summary.Mul(n, probOp)
	return chunkOp{m: &summary, off: off}
}

func storeChunk(local *tensor.T4, row, i int, m *ScaledMat) {
	for r := 0; r < local.D2; r++ {
		dst := local.Row(row, i, r)
		for q := range dst {
			dst[q] = m.Log(r, q)
		}
	}
}

// inject recombines the chunk-local tables with the true entering-state
// distributions into global forward variables.
func inject(vars, local *tensor.T4, k, b int, entering [][]float64, cs int) {
	Q := vars.D3
	row := k*vars.D1 + b
	col := make([]float64, Q)
	for c, ent := range entering {
		for i := c * cs; i < (c+1)*cs; i++ {
			dst := vars.Row(k, b, i)
			for q := 0; q < Q; q++ {
				for r := 0; r < Q; r++ {
					col[r] = ent[r] + local.At(row, i, r, q)
				}
				dst[q] = tensor.LogSumExp(col)
			}
		}
	}
}
