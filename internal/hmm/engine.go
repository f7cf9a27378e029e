// Package hmm implements the scaled forward-backward and Viterbi dynamic
// programming engines for batches of sequences scored against multiple
// profile HMMs with heterogeneous state counts. Long sequences can be
// evaluated in parallel chunks whose boundary effects are recombined by a
// sequential prefix composition over per-chunk transition summaries.
package hmm

import (
	"errors"
	"fmt"
	"runtime"

	"msahmm/internal/tensor"
)

var (
	// ErrEmptySequence is returned when the batch has zero positions.
	ErrEmptySequence = errors.New("sequence length must be positive")
	// ErrChunkDivisibility is returned when the configured chunk count does
	// not divide the sequence length.
	ErrChunkDivisibility = errors.New("chunk count must divide sequence length")
	// ErrModelMismatch is returned when batch and provider disagree on the
	// model count or state-space bound.
	ErrModelMismatch = errors.New("model dimensions mismatch between batch and provider")
)

// Options configure an Engine.
type Options struct {
	// Chunks is the parallel chunk count P. Each sequence is split into P
	// equally sized blocks that are evaluated independently and stitched
	// back together. 1 (or 0) disables chunked evaluation.
	Chunks int
	// Workers bounds the number of concurrent per-sequence tasks.
	// 0 means GOMAXPROCS.
	Workers int
}

// Engine evaluates likelihoods, posteriors and Viterbi paths against a fixed
// Provider snapshot. Engines are stateless between calls and safe for
// concurrent use as long as the provider is not refreshed mid-call.
type Engine struct {
	prov    Provider
	chunks  int
	workers int
}

// New validates the options and returns an engine bound to p.
func New(p Provider, opts Options) (*Engine, error) {
	if p == nil {
		return nil, errors.New("nil provider")
	}
	chunks := opts.Chunks
	if chunks == 0 {
		chunks = 1
	}
	if chunks < 0 {
		return nil, fmt.Errorf("invalid chunk count %d", opts.Chunks)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{prov: p, chunks: chunks, workers: workers}, nil
}

func (e *Engine) check(batch *Batch) error {
	if batch.Length <= 0 {
		return ErrEmptySequence
	}
	if batch.Models != e.prov.NumModels() {
		return fmt.Errorf("%w: batch has %d models, provider has %d",
			ErrModelMismatch, batch.Models, e.prov.NumModels())
	}
	if batch.Length%e.chunks != 0 {
		return fmt.Errorf("%w: length %d, chunks %d",
			ErrChunkDivisibility, batch.Length, e.chunks)
	}
	return nil
}

func (e *Engine) checkEmissions(em *tensor.T4, batch *Batch) error {
	Q := e.prov.MaxStateCount()
	if em.D0 != batch.Models || em.D1 != batch.Size || em.D2 != batch.Length || em.D3 != Q {
		return fmt.Errorf("%w: emission tensor is (%d,%d,%d,%d), want (%d,%d,%d,%d)",
			ErrModelMismatch, em.D0, em.D1, em.D2, em.D3,
			batch.Models, batch.Size, batch.Length, Q)
	}
	return nil
}

// logInitDist returns the element-wise safe log of the provider's initial
// distribution.
func logInitDist(p Provider) *tensor.Mat {
	init := p.InitialDistribution()
	out := tensor.NewMat(init.R, init.C)
	tensor.SafeLogTo(out.Data, init.Data)
	return out
}

// logOpT returns the safe log of the transposed transition operator of model
// k: row q holds the log transition probabilities into state q from every
// predecessor, which is the layout the recursion kernels consume.
func logOpT(p Provider, k int) *tensor.Mat {
	op := p.TransitionOperator(k).Transpose()
	tensor.SafeLogTo(op.Data, op.Data)
	return op
}
