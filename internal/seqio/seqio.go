// Package seqio reads FASTA files and encodes sequences into the one-hot
// batches the scoring engines consume.
package seqio

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"msahmm/internal/hmm"
)

// Alphabet is the amino-acid alphabet, including ambiguity codes. Symbols
// outside the alphabet encode as X. The terminal marker occupies one extra
// channel after these.
const Alphabet = "ARNDCQEGHILKMFPSTWYVBZXUO"

var symbolIndex = func() map[byte]int {
	m := make(map[byte]int, len(Alphabet))
	for i := 0; i < len(Alphabet); i++ {
		m[Alphabet[i]] = i
	}
	return m
}()

// Record is one FASTA entry.
type Record struct {
	ID  string
	Seq string
}

// ReadFasta parses FASTA records from r.
func ReadFasta(r io.Reader) ([]Record, error) {
	var (
		records []Record
		id      string
		seq     strings.Builder
		started bool
	)
	flush := func() {
		if started {
			records = append(records, Record{ID: id, Seq: seq.String()})
			seq.Reset()
		}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			flush()
			started = true
			id = ""
			if fields := strings.Fields(line[1:]); len(fields) > 0 {
				id = fields[0]
			}
			continue
		}
		if !started {
			return nil, fmt.Errorf("fasta: sequence data before first header")
		}
		seq.WriteString(strings.ToUpper(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("fasta: %w", err)
	}
	flush()
	if len(records) == 0 {
		return nil, fmt.Errorf("fasta: no records")
	}
	for _, rec := range records {
		if rec.Seq == "" {
			return nil, fmt.Errorf("fasta: record %q has no residues", rec.ID)
		}
	}
	return records, nil
}

// Encode one-hot encodes the records into a batch replicated across models.
// Sequences are right-padded with the terminal marker; the batch length
// leaves room for at least one terminal position per sequence.
func Encode(records []Record, models int) (*hmm.Batch, error) {
	if models < 1 {
		return nil, fmt.Errorf("encode: need at least one model")
	}
	maxLen := 0
	for _, rec := range records {
		if len(rec.Seq) == 0 {
			return nil, fmt.Errorf("encode: empty sequence %q", rec.ID)
		}
		if len(rec.Seq) > maxLen {
			maxLen = len(rec.Seq)
		}
	}
	L := maxLen + 1
	S := len(Alphabet) + 1
	batch := hmm.NewBatch(models, len(records), L, S)
	for b, rec := range records {
		for i := 0; i < L; i++ {
			ch := S - 1 // terminal
			if i < len(rec.Seq) {
				var ok bool
				ch, ok = symbolIndex[rec.Seq[i]]
				if !ok {
					ch = symbolIndex['X']
				}
			}
			for k := 0; k < models; k++ {
				batch.Row(k, b, i)[ch] = 1
			}
		}
	}
	return batch, nil
}

// PadTo re-encodes the records with the batch length rounded up so that it
// is divisible by chunks, for chunked evaluation.
func PadTo(batch *hmm.Batch, chunks int) *hmm.Batch {
	if chunks <= 1 || batch.Length%chunks == 0 {
		return batch
	}
	L := ((batch.Length / chunks) + 1) * chunks
	out := hmm.NewBatch(batch.Models, batch.Size, L, batch.Symbols)
	for k := 0; k < batch.Models; k++ {
		for b := 0; b < batch.Size; b++ {
			for i := 0; i < L; i++ {
				dst := out.Row(k, b, i)
				if i < batch.Length {
					copy(dst, batch.Row(k, b, i))
				} else {
					dst[batch.Symbols-1] = 1
				}
			}
		}
	}
	return out
}
