// Package profile implements the parameter model the scoring engines read:
// a batch of profile HMMs with heterogeneous lengths packed into one padded
// state space. Each model owns learned emission, insertion, transition and
// initial-state kernels in logit space; Refresh normalizes them into the
// probability-space matrices the engines consume.
package profile

import (
	"fmt"
	"math"
	"math/rand"

	"msahmm/internal/hmm"
	"msahmm/internal/tensor"
)

// Model is a batch of profile HMMs. For a model of length l (match states)
// the state layout is:
//
//	0             left flank
//	1 .. l        match states
//	l+1 .. 2l     insert states
//	2l+1          right flank
//	2l+2          end (terminal) state
//
// giving 2l+3 real states. Deletions are implicit: every match state may
// jump past any number of downstream match states. The end state self-loops
// with probability one and emits the terminal symbol with probability one,
// so trailing padding positions of a sequence never change its likelihood.
type Model struct {
	lengths  []int
	alphabet int // symbol count without the terminal marker

	// kernels, logit space
	emission   [][]float64 // per model: length x alphabet match logits
	insertion  [][]float64 // per model: alphabet shared insertion logits
	transition [][]float64 // per model: q_k x q_k logits over allowed edges
	initial    [][]float64 // per model: q_k logits over allowed start states

	// derived probability-space snapshot, rebuilt by Refresh
	init *tensor.Mat   // (K, Q)
	ops  []*tensor.Mat // per model (Q, Q)
	emit []*tensor.Mat // per model (Q, alphabet+1)
}

var _ hmm.Provider = (*Model)(nil)

// NumStates returns the real state count for a profile of length l.
func NumStates(l int) int { return 2*l + 3 }

// NewRandom creates a model batch with reproducible random kernels, already
// refreshed. It is used to seed training and in tests.
func NewRandom(lengths []int, alphabet int, seed int64) (*Model, error) {
	if len(lengths) == 0 {
		return nil, fmt.Errorf("need at least one model")
	}
	if alphabet < 2 {
		return nil, fmt.Errorf("alphabet size %d too small", alphabet)
	}
	rng := rand.New(rand.NewSource(seed))
	m := &Model{
		lengths:  append([]int(nil), lengths...),
		alphabet: alphabet,
	}
	for _, l := range lengths {
		if l < 1 {
			return nil, fmt.Errorf("model length %d too small", l)
		}
		q := NumStates(l)
		m.emission = append(m.emission, randLogits(rng, l*alphabet))
		m.insertion = append(m.insertion, randLogits(rng, alphabet))
		m.transition = append(m.transition, randLogits(rng, q*q))
		m.initial = append(m.initial, randLogits(rng, q))
	}
	if err := m.Refresh(); err != nil {
		return nil, err
	}
	return m, nil
}

func randLogits(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * 0.1
	}
	return out
}

func (m *Model) NumModels() int { return len(m.lengths) }

// Length returns the profile length (number of match states) of model k.
func (m *Model) Length(k int) int { return m.lengths[k] }

// AlphabetSize returns the symbol count without the terminal marker.
func (m *Model) AlphabetSize() int { return m.alphabet }

func (m *Model) StateCount(k int) int { return NumStates(m.lengths[k]) }

func (m *Model) MaxStateCount() int {
	max := 0
	for _, l := range m.lengths {
		if q := NumStates(l); q > max {
			max = q
		}
	}
	return max
}

func (m *Model) InitialDistribution() *tensor.Mat { return m.init }

func (m *Model) TransitionOperator(k int) *tensor.Mat { return m.ops[k] }

// EmissionMatrix returns the (Q, alphabet+1) emission matrix of model k.
func (m *Model) EmissionMatrix(k int) *tensor.Mat { return m.emit[k] }

// EmissionProbabilities multiplies the one-hot batch with every model's
// emission matrix, yielding (models, batch, length, Q). With reverse set the
// position axis of the result is flipped for the backward recursion.
func (m *Model) EmissionProbabilities(batch *hmm.Batch, reverse bool) (*tensor.T4, error) {
	if batch.Models != m.NumModels() {
		return nil, fmt.Errorf("%w: batch has %d models, profile has %d",
			hmm.ErrModelMismatch, batch.Models, m.NumModels())
	}
	if batch.Symbols != m.alphabet+1 {
		return nil, fmt.Errorf("%w: batch has %d symbol channels, profile wants %d",
			hmm.ErrModelMismatch, batch.Symbols, m.alphabet+1)
	}
	Q := m.MaxStateCount()
	out := tensor.NewT4(batch.Models, batch.Size, batch.Length, Q)
	for k := 0; k < batch.Models; k++ {
		em := m.emit[k]
		qk := m.StateCount(k)
		for b := 0; b < batch.Size; b++ {
			for i := 0; i < batch.Length; i++ {
				pos := i
				if reverse {
					pos = batch.Length - 1 - i
				}
				sym := batch.Row(k, b, pos)
				dst := out.Row(k, b, i)
				for q := 0; q < qk; q++ {
					row := em.Row(q)
					var p float64
					for s, x := range sym {
						p += row[s] * x
					}
					dst[q] = p
				}
			}
		}
	}
	return out, nil
}

// Refresh rebuilds the probability-space initial distributions, transition
// operators and emission matrices from the kernels. It must not run
// concurrently with engine calls that read the previous snapshot.
func (m *Model) Refresh() error {
	K := m.NumModels()
	Q := m.MaxStateCount()

	m.init = tensor.NewMat(K, Q)
	m.ops = make([]*tensor.Mat, K)
	m.emit = make([]*tensor.Mat, K)
	for k := 0; k < K; k++ {
		l := m.lengths[k]
		q := NumStates(l)

		maskedSoftmax(m.init.Row(k)[:q], m.initial[k], initAllowed(l))

		op := tensor.NewMat(Q, Q)
		for from := 0; from < q; from++ {
			maskedSoftmax(op.Row(from)[:q], m.transition[k][from*q:(from+1)*q], transAllowed(l, from))
		}
		m.ops[k] = op

		m.emit[k] = m.buildEmissions(k)
	}
	return nil
}

// buildEmissions assembles the padded (Q, alphabet+1) emission matrix of
// model k: softmax match rows, a shared softmax insertion row for the flank
// and insert states, a zero terminal column everywhere except the end state,
// which emits the terminal symbol with probability one.
func (m *Model) buildEmissions(k int) *tensor.Mat {
	l := m.lengths[k]
	s := m.alphabet
	Q := m.MaxStateCount()

	ins := append([]float64(nil), m.insertion[k]...)
	tensor.Softmax(ins)

	em := tensor.NewMat(Q, s+1)
	copy(em.Row(0)[:s], ins) // left flank
	for i := 0; i < l; i++ {
		row := append([]float64(nil), m.emission[k][i*s:(i+1)*s]...)
		tensor.Softmax(row)
		copy(em.Row(1+i)[:s], row)
	}
	for i := 0; i < l; i++ {
		copy(em.Row(l+1+i)[:s], ins)
	}
	copy(em.Row(2*l+1)[:s], ins) // right flank
	em.Set(2*l+2, s, 1)          // end state emits the terminal marker
	return em
}

// maskedSoftmax writes softmax(logits) restricted to allowed entries into
// dst; disallowed entries get exactly zero mass.
func maskedSoftmax(dst, logits []float64, allowed func(i int) bool) {
	m := math.Inf(-1)
	for i, v := range logits {
		if allowed(i) && v > m {
			m = v
		}
	}
	if math.IsInf(m, -1) {
		for i := range dst {
			dst[i] = 0
		}
		return
	}
	var sum float64
	for i, v := range logits {
		if !allowed(i) {
			dst[i] = 0
			continue
		}
		e := math.Exp(v - m)
		dst[i] = e
		sum += e
	}
	for i := range dst {
		dst[i] /= sum
	}
}

// initAllowed restricts start states to the left flank and the match states
// (profile entry with implicit leading deletions).
func initAllowed(l int) func(int) bool {
	return func(q int) bool {
		return q == 0 || (q >= 1 && q <= l)
	}
}

// transAllowed encodes the profile topology for a model of length l.
func transAllowed(l, from int) func(int) bool {
	lf := 0
	rf := 2*l + 1
	end := 2*l + 2
	matchOf := func(q int) int { // 1-based match index, 0 if not a match
		if q >= 1 && q <= l {
			return q
		}
		return 0
	}
	insertOf := func(q int) int {
		if q >= l+1 && q <= 2*l {
			return q - l
		}
		return 0
	}
	return func(to int) bool {
		switch {
		case from == end:
			return to == end
		case from == rf:
			return to == rf || to == end
		case from == lf:
			return to == lf || matchOf(to) > 0 || to == rf
		case matchOf(from) > 0:
			i := matchOf(from)
			// deletions are forward jumps past match states
			return matchOf(to) > i || insertOf(to) == i || to == rf
		case insertOf(from) > 0:
			i := insertOf(from)
			return insertOf(to) == i || matchOf(to) > i || to == rf
		default:
			return false
		}
	}
}

// PriorLogDensity returns the summed log density of a symmetric Dirichlet
// prior over the match emission distributions, the regularizer added to the
// training objective.
func (m *Model) PriorLogDensity(alpha float64) float64 {
	s := float64(m.alphabet)
	lgSum, _ := math.Lgamma(alpha * s)
	lgOne, _ := math.Lgamma(alpha)
	norm := lgSum - s*lgOne
	var total float64
	for k := range m.lengths {
		for i := 0; i < m.lengths[k]; i++ {
			row := append([]float64(nil), m.emission[k][i*m.alphabet:(i+1)*m.alphabet]...)
			tensor.Softmax(row)
			total += norm
			for _, p := range row {
				total += (alpha - 1) * tensor.SafeLog(p)
			}
		}
	}
	return total
}

// StateName renders a state id of model k for reports: LF, M<i>, I<i>, RF, E.
func (m *Model) StateName(k int, q int) string {
	l := m.lengths[k]
	switch {
	case q == 0:
		return "LF"
	case q >= 1 && q <= l:
		return fmt.Sprintf("M%d", q)
	case q >= l+1 && q <= 2*l:
		return fmt.Sprintf("I%d", q-l)
	case q == 2*l+1:
		return "RF"
	case q == 2*l+2:
		return "E"
	default:
		return fmt.Sprintf("pad%d", q)
	}
}
