package tensor

// T4 is a dense rank-4 tensor of float64 values in row-major layout.
//
// The engine uses the axis convention (models, batch, positions, states)
// throughout, but T4 itself is agnostic to what the axes mean.
type T4 struct {
	D0, D1, D2, D3 int
	Data           []float64
}

// NewT4 allocates a zero-initialised rank-4 tensor.
func NewT4(d0, d1, d2, d3 int) *T4 {
	if d0 < 0 || d1 < 0 || d2 < 0 || d3 < 0 {
		panic("negative dimension for tensor")
	}
	return &T4{
		D0:   d0,
		D1:   d1,
		D2:   d2,
		D3:   d3,
		Data: make([]float64, d0*d1*d2*d3),
	}
}

// Row returns a view of the innermost vector at (i, j, k). Modifications to
// the returned slice update the underlying tensor values.
func (t *T4) Row(i, j, k int) []float64 {
	if i < 0 || i >= t.D0 || j < 0 || j >= t.D1 || k < 0 || k >= t.D2 {
		panic("tensor index out of range")
	}
	start := ((i*t.D1+j)*t.D2 + k) * t.D3
	return t.Data[start : start+t.D3]
}

// At returns the element at (i, j, k, l).
func (t *T4) At(i, j, k, l int) float64 {
	if l < 0 || l >= t.D3 {
		panic("tensor index out of range")
	}
	return t.Row(i, j, k)[l]
}

// Set assigns the element at (i, j, k, l).
func (t *T4) Set(i, j, k, l int, v float64) {
	if l < 0 || l >= t.D3 {
		panic("tensor index out of range")
	}
	t.Row(i, j, k)[l] = v
}

// Fill sets every element of the tensor to v.
func (t *T4) Fill(v float64) {
	for i := range t.Data {
		t.Data[i] = v
	}
}
