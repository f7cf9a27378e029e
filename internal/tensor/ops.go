package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// LogZero is the finite stand-in for log(0). Using a large negative constant
// instead of -Inf keeps masked states out of every sum and argmax without
// letting NaNs leak into batched arithmetic.
const LogZero = -1e3

// SafeLog returns log(x), or LogZero when x is zero (or denormally close to
// it). Probability-domain values must pass through SafeLog before they are
// accumulated in the log domain.
func SafeLog(x float64) float64 {
	if x < math.SmallestNonzeroFloat64 {
		return LogZero
	}
	return math.Log(x)
}

// SafeLogTo writes the element-wise SafeLog of src into dst.
// dst and src may alias.
func SafeLogTo(dst, src []float64) {
	if len(dst) != len(src) {
		panic("length mismatch")
	}
	for i, v := range src {
		dst[i] = SafeLog(v)
	}
}

// LogSumExp returns log(sum(exp(x))) computed without overflow.
func LogSumExp(x []float64) float64 {
	return floats.LogSumExp(x)
}

// Max returns the maximum element of x.
func Max(x []float64) float64 {
	return floats.Max(x)
}

// Sum returns the sum of the elements of x.
func Sum(x []float64) float64 {
	return floats.Sum(x)
}

// ArgMax returns the index of the largest element of x. Ties break toward
// the lowest index so that decoding is reproducible.
func ArgMax(x []float64) int {
	if len(x) == 0 {
		panic("ArgMax of empty slice")
	}
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}

// Softmax overwrites x with exp(x)/sum(exp(x)), computed stably.
func Softmax(x []float64) {
	if len(x) == 0 {
		return
	}
	m := floats.Max(x)
	var sum float64
	for i := range x {
		v := math.Exp(x[i] - m)
		x[i] = v
		sum += v
	}
	if sum == 0 {
		return
	}
	floats.Scale(1/sum, x)
}

// AddConst adds c to every element of x.
func AddConst(c float64, x []float64) {
	floats.AddConst(c, x)
}
