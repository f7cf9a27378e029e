package hmm

import (
	"gonum.org/v1/gonum/floats"

	"msahmm/internal/tensor"
)

// ScaledVec is a log-domain state vector held as a bounded local part plus a
// separately accumulated scale. The true log value of state q is always
// Local[q]+Scale; renormalizing every step only moves mass between the two
// parts, so recombination stays exact over arbitrary sequence length.
type ScaledVec struct {
	Local []float64
	Scale float64
}

// NewScaledVec allocates a scaled vector over q states.
func NewScaledVec(q int) *ScaledVec {
	return &ScaledVec{Local: make([]float64, q)}
}

// Renorm shifts the peak of Local into Scale, keeping Local bounded from
// above by zero.
func (v *ScaledVec) Renorm() {
	m := floats.Max(v.Local)
	floats.AddConst(-m, v.Local)
	v.Scale += m
}

// Log returns the true log value of state q.
func (v *ScaledVec) Log(q int) float64 {
	return v.Local[q] + v.Scale
}

// ScaledMat tracks Q independent scaled recursions at once, one per row.
// Row r is the recursion seeded from entering state r of a chunk, with its
// own scale, so chunk-local values stay small while remaining exactly
// recombinable.
type ScaledMat struct {
	Local *tensor.Mat
	Scale []float64
}

// NewScaledMat allocates a q-by-q scaled matrix.
func NewScaledMat(q int) *ScaledMat {
	return &ScaledMat{
		Local: tensor.NewMat(q, q),
		Scale: make([]float64, q),
	}
}

// Renorm renormalizes every row independently.
func (m *ScaledMat) Renorm() {
	for r := 0; r < m.Local.R; r++ {
		row := m.Local.Row(r)
		peak := floats.Max(row)
		floats.AddConst(-peak, row)
		m.Scale[r] += peak
	}
}

// Log returns the true log value at (entering state r, state q).
func (m *ScaledMat) Log(r, q int) float64 {
	return m.Local.At(r, q) + m.Scale[r]
}
