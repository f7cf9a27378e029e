package hmm

import "msahmm/internal/tensor"

// Batch holds one encoded sequence batch, replicated per model, as a dense
// (models, batch, length, symbols) tensor in probability space (typically
// one-hot). The last symbol channel is the terminal marker: every position
// past a sequence's true end is one-hot on it, and the end state of each
// model emits it with probability one, so trailing positions are
// probability-preserving no-ops.
type Batch struct {
	Models  int
	Size    int
	Length  int
	Symbols int
	Data    *tensor.T4
}

// NewBatch allocates a zeroed batch with the given dimensions.
func NewBatch(models, size, length, symbols int) *Batch {
	return &Batch{
		Models:  models,
		Size:    size,
		Length:  length,
		Symbols: symbols,
		Data:    tensor.NewT4(models, size, length, symbols),
	}
}

// Row returns the symbol vector at (model k, sequence b, position i).
func (x *Batch) Row(k, b, i int) []float64 {
	return x.Data.Row(k, b, i)
}

// SeqLen returns the number of real (non-terminal) positions of sequence b
// under model k.
func (x *Batch) SeqLen(k, b int) int {
	n := 0
	for i := 0; i < x.Length; i++ {
		if x.Data.At(k, b, i, x.Symbols-1) == 0 {
			n++
		}
	}
	return n
}
