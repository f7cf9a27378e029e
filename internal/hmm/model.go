package hmm

import "msahmm/internal/tensor"

// Provider is the parameter snapshot contract the engines read. A provider
// owns its transition and emission parameters; the engines only ever read
// them, and only between calls to Refresh. All tensors are in probability
// space.
//
// Models may have heterogeneous state counts. Every tensor is padded up to
// MaxStateCount states per model; padding states must carry zero probability
// mass in the initial distribution, the transition operator and the emission
// matrix. By convention state StateCount(k)-1 is the terminal (end) state of
// model k.
type Provider interface {
	NumModels() int

	// StateCount returns the number of real states of model k.
	StateCount(k int) int

	// MaxStateCount returns the padded state-space bound Q.
	MaxStateCount() int

	// InitialDistribution returns a (models, Q) matrix, row-stochastic over
	// real states per model, zero on padding.
	InitialDistribution() *tensor.Mat

	// TransitionOperator returns the (Q, Q) transition matrix of model k,
	// row-stochastic per real row. Padding rows and columns carry no mass.
	TransitionOperator(k int) *tensor.Mat

	// EmissionProbabilities maps an encoded batch to per-position emission
	// probabilities of shape (models, batch, length, Q). When reverse is
	// true the position axis of the result is reversed, which is the
	// variant the backward recursion consumes.
	EmissionProbabilities(batch *Batch, reverse bool) (*tensor.T4, error)

	// Refresh recomputes the derived matrices from the underlying
	// parameters. It must be called once before a group of engine calls
	// that assume a fixed snapshot, and never concurrently with one.
	Refresh() error
}

// Reversed returns the mirror-image provider used by the backward recursion:
// the transition operator is transposed, the initial distribution is replaced
// by the end condition (unit mass on every real state), and emission requests
// flip their position order. Reversed is a pure transform; the underlying
// provider is shared, not copied.
func Reversed(p Provider) Provider {
	return &reversedProvider{inner: p}
}

type reversedProvider struct {
	inner Provider
}

func (r *reversedProvider) NumModels() int       { return r.inner.NumModels() }
func (r *reversedProvider) StateCount(k int) int { return r.inner.StateCount(k) }
func (r *reversedProvider) MaxStateCount() int   { return r.inner.MaxStateCount() }
func (r *reversedProvider) Refresh() error       { return r.inner.Refresh() }

func (r *reversedProvider) InitialDistribution() *tensor.Mat {
	K := r.inner.NumModels()
	Q := r.inner.MaxStateCount()
	init := tensor.NewMat(K, Q)
	for k := 0; k < K; k++ {
		row := init.Row(k)
		for q := 0; q < r.inner.StateCount(k); q++ {
			row[q] = 1
		}
	}
	return init
}

func (r *reversedProvider) TransitionOperator(k int) *tensor.Mat {
	return r.inner.TransitionOperator(k).Transpose()
}

func (r *reversedProvider) EmissionProbabilities(batch *Batch, reverse bool) (*tensor.T4, error) {
	return r.inner.EmissionProbabilities(batch, !reverse)
}
