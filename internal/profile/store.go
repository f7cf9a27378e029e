package profile

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// modelFile is the on-disk representation of a model batch: the raw kernels
// only, since everything else is derived by Refresh.
type modelFile struct {
	Lengths    []int       `json:"lengths"`
	Alphabet   int         `json:"alphabet_size"`
	Emission   [][]float64 `json:"emission_kernel"`
	Insertion  [][]float64 `json:"insertion_kernel"`
	Transition [][]float64 `json:"transition_kernel"`
	Initial    [][]float64 `json:"initial_kernel"`
}

// Save writes the model kernels to path as JSON.
func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return enc.Encode(modelFile{
		Lengths:    m.lengths,
		Alphabet:   m.alphabet,
		Emission:   m.emission,
		Insertion:  m.insertion,
		Transition: m.transition,
		Initial:    m.initial,
	})
}

// Load reads a model batch from path and refreshes it.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	defer f.Close()
	var mf modelFile
	if err := json.NewDecoder(f).Decode(&mf); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if len(mf.Lengths) == 0 {
		return nil, fmt.Errorf("load model: no models in file")
	}
	if len(mf.Emission) != len(mf.Lengths) || len(mf.Insertion) != len(mf.Lengths) ||
		len(mf.Transition) != len(mf.Lengths) || len(mf.Initial) != len(mf.Lengths) {
		return nil, fmt.Errorf("load model: kernel count does not match model count")
	}
	m := &Model{
		lengths:    mf.Lengths,
		alphabet:   mf.Alphabet,
		emission:   mf.Emission,
		insertion:  mf.Insertion,
		transition: mf.Transition,
		initial:    mf.Initial,
	}
	for k, l := range m.lengths {
		q := NumStates(l)
		if len(m.emission[k]) != l*m.alphabet {
			return nil, fmt.Errorf("load model %d: emission kernel has %d entries, want %d",
				k, len(m.emission[k]), l*m.alphabet)
		}
		if len(m.insertion[k]) != m.alphabet {
			return nil, fmt.Errorf("load model %d: insertion kernel has %d entries, want %d",
				k, len(m.insertion[k]), m.alphabet)
		}
		if len(m.transition[k]) != q*q {
			return nil, fmt.Errorf("load model %d: transition kernel has %d entries, want %d",
				k, len(m.transition[k]), q*q)
		}
		if len(m.initial[k]) != q {
			return nil, fmt.Errorf("load model %d: initial kernel has %d entries, want %d",
				k, len(m.initial[k]), q)
		}
	}
	if err := m.Refresh(); err != nil {
		return nil, err
	}
	return m, nil
}
