package tensor

import (
	"math"
	"testing"
)

func TestSafeLogIsFinite(t *testing.T) {
	t.Parallel()

	if got := SafeLog(0); got != LogZero {
		t.Fatalf("SafeLog(0): got %v want %v", got, LogZero)
	}
	if got := SafeLog(-1); got != LogZero {
		t.Fatalf("SafeLog(-1): got %v want %v", got, LogZero)
	}
	if got := SafeLog(math.E); math.Abs(got-1) > 1e-12 {
		t.Fatalf("SafeLog(e): got %v", got)
	}
	if math.IsInf(SafeLog(0), 0) || math.IsNaN(SafeLog(0)) {
		t.Fatalf("SafeLog(0) must be finite")
	}
}

func TestSafeLogTo(t *testing.T) {
	t.Parallel()

	src := []float64{1, 0, math.E * math.E, 0.5}
	dst := make([]float64, len(src))
	SafeLogTo(dst, src)
	want := []float64{0, LogZero, 2, math.Log(0.5)}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-12 {
			t.Fatalf("index %d: got %v want %v", i, dst[i], want[i])
		}
	}
}

func TestLogSumExpAgainstNaiveSum(t *testing.T) {
	t.Parallel()

	x := []float64{-1.5, 0.25, -3, 2}
	var naive float64
	for _, v := range x {
		naive += math.Exp(v)
	}
	if got, want := LogSumExp(x), math.Log(naive); math.Abs(got-want) > 1e-12 {
		t.Fatalf("got %v want %v", got, want)
	}

	// Extreme magnitudes must not overflow.
	if got := LogSumExp([]float64{-2000, -2000}); math.IsInf(got, 0) {
		t.Fatalf("underflowed: %v", got)
	}
}

func TestArgMaxBreaksTiesLow(t *testing.T) {
	t.Parallel()

	if got := ArgMax([]float64{1, 3, 3, 2}); got != 1 {
		t.Fatalf("got %d want 1", got)
	}
	if got := ArgMax([]float64{-1}); got != 0 {
		t.Fatalf("got %d want 0", got)
	}
}

func TestSoftmaxNormalizes(t *testing.T) {
	t.Parallel()

	x := []float64{700, 701, 699}
	Softmax(x)
	var sum float64
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite softmax value %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("softmax sums to %v", sum)
	}
	if !(x[1] > x[0] && x[0] > x[2]) {
		t.Fatalf("softmax order broken: %v", x)
	}
}

func TestMatRowAndTranspose(t *testing.T) {
	t.Parallel()

	m := NewMatFromData(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	row := m.Row(1)
	row[0] = 40
	if m.At(1, 0) != 40 {
		t.Fatalf("Row must be a view")
	}

	tr := m.Transpose()
	if tr.R != 3 || tr.C != 2 {
		t.Fatalf("transpose dims: %dx%d", tr.R, tr.C)
	}
	if tr.At(0, 1) != 40 || tr.At(2, 0) != 3 {
		t.Fatalf("transpose values wrong")
	}
}

func TestMatPanicsOutOfRange(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewMat(2, 2).At(2, 0)
}

func TestT4RowIsView(t *testing.T) {
	t.Parallel()

	x := NewT4(2, 2, 2, 3)
	x.Row(1, 0, 1)[2] = 7
	if x.At(1, 0, 1, 2) != 7 {
		t.Fatalf("Row must be a view")
	}
	x.Fill(1.5)
	if x.At(0, 1, 1, 0) != 1.5 {
		t.Fatalf("fill missed an element")
	}
}
