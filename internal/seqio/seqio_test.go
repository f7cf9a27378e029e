package seqio

import (
	"strings"
	"testing"
)

func TestReadFasta(t *testing.T) {
	t.Parallel()

	in := `>seq1 description text
ACDEF
GHIKL
> seq2
mnpq

>seq3
WYV
`
	records, err := ReadFasta(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "seq1" || records[0].Seq != "ACDEFGHIKL" {
		t.Fatalf("record 0: %+v", records[0])
	}
	if records[1].ID != "seq2" || records[1].Seq != "MNPQ" {
		t.Fatalf("record 1: %+v", records[1])
	}
	if records[2].Seq != "WYV" {
		t.Fatalf("record 2: %+v", records[2])
	}
}

func TestReadFastaRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := ReadFasta(strings.NewReader("ACDEF\n")); err == nil {
		t.Fatalf("expected error for sequence before header")
	}
	if _, err := ReadFasta(strings.NewReader(">only-header\n")); err == nil {
		t.Fatalf("expected error for record without residues")
	}
}

func TestEncodeOneHot(t *testing.T) {
	t.Parallel()

	records := []Record{
		{ID: "a", Seq: "AR"},
		{ID: "b", Seq: "C"},
	}
	batch, err := Encode(records, 2)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if batch.Models != 2 || batch.Size != 2 {
		t.Fatalf("unexpected dims %dx%d", batch.Models, batch.Size)
	}
	if batch.Length != 3 {
		t.Fatalf("expected length 3, got %d", batch.Length)
	}
	if batch.Symbols != len(Alphabet)+1 {
		t.Fatalf("expected %d channels, got %d", len(Alphabet)+1, batch.Symbols)
	}

	term := batch.Symbols - 1
	for k := 0; k < 2; k++ {
		if batch.Row(k, 0, 0)[0] != 1 { // A
			t.Fatalf("model %d: first residue not A", k)
		}
		if batch.Row(k, 0, 1)[1] != 1 { // R
			t.Fatalf("model %d: second residue not R", k)
		}
		if batch.Row(k, 0, 2)[term] != 1 {
			t.Fatalf("model %d: missing terminal position", k)
		}
		if batch.Row(k, 1, 1)[term] != 1 || batch.Row(k, 1, 2)[term] != 1 {
			t.Fatalf("model %d: short sequence not padded", k)
		}
	}
	if batch.SeqLen(0, 0) != 2 || batch.SeqLen(0, 1) != 1 {
		t.Fatalf("unexpected sequence lengths %d/%d", batch.SeqLen(0, 0), batch.SeqLen(0, 1))
	}
}

func TestEncodeMapsUnknownToX(t *testing.T) {
	t.Parallel()

	batch, err := Encode([]Record{{ID: "a", Seq: "J"}}, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	x := strings.IndexByte(Alphabet, 'X')
	if batch.Row(0, 0, 0)[x] != 1 {
		t.Fatalf("unknown residue not mapped to X")
	}
}

func TestEncodeRejectsEmptySequence(t *testing.T) {
	t.Parallel()

	if _, err := Encode([]Record{{ID: "a", Seq: ""}}, 1); err == nil {
		t.Fatalf("expected error for empty sequence")
	}
}

func TestPadToChunkDivisibility(t *testing.T) {
	t.Parallel()

	batch, err := Encode([]Record{{ID: "a", Seq: "ACDEF"}}, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if batch.Length != 6 {
		t.Fatalf("expected length 6, got %d", batch.Length)
	}

	padded := PadTo(batch, 4)
	if padded.Length != 8 {
		t.Fatalf("expected padded length 8, got %d", padded.Length)
	}
	term := padded.Symbols - 1
	for i := 5; i < 8; i++ {
		if padded.Row(0, 0, i)[term] != 1 {
			t.Fatalf("position %d not terminal-filled", i)
		}
	}
	if padded.SeqLen(0, 0) != 5 {
		t.Fatalf("padding changed the sequence length")
	}

	if got := PadTo(batch, 3); got != batch {
		t.Fatalf("PadTo must be a no-op when already divisible")
	}
	if got := PadTo(batch, 1); got != batch {
		t.Fatalf("PadTo must be a no-op for one chunk")
	}
}
