// Package matrix provides host-side helpers for flat, row-major square
// float32 matrices: generation, reference products and comparison.
package matrix

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/mat"
)

// Random returns an n x n matrix with values in [0, 1) drawn from rng.
func Random(n int, rng *rand.Rand) []float32 {
	out := make([]float32, n*n)
	for i := range out {
		out[i] = rng.Float32()
	}
	return out
}

// Fill returns an n x n matrix with every cell set to v.
func Fill(n int, v float32) []float32 {
	out := make([]float32, n*n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Multiply is the sequential triple-loop product of two n x n matrices.
func Multiply(a, b []float32, n int) []float32 {
	c := make([]float32, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for k := 0; k < n; k++ {
				sum += a[i*n+k] * b[k*n+j]
			}
			c[i*n+j] = sum
		}
	}
	return c
}

// MultiplyGonum computes the product in float64 with gonum and rounds the
// result to float32. It is slower to set up but accumulates with less error.
func MultiplyGonum(a, b []float32, n int) []float32 {
	ma := mat.NewDense(n, n, widen(a))
	mb := mat.NewDense(n, n, widen(b))
	var mc mat.Dense
	mc.Mul(ma, mb)
	return narrow(mc.RawMatrix().Data)
}

func widen(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

func narrow(x []float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v)
	}
	return out
}

// MaxAbsDiff returns the largest cell-wise absolute difference. It is +Inf
// if the lengths differ or a cell is NaN or infinite on one side only.
func MaxAbsDiff(x, y []float32) float32 {
	if len(x) != len(y) {
		return math32.Inf(1)
	}
	var max float32
	for i := range x {
		if math32.IsNaN(x[i]) || math32.IsNaN(y[i]) {
			return math32.Inf(1)
		}
		if math32.IsInf(x[i], 0) || math32.IsInf(y[i], 0) {
			if x[i] != y[i] {
				return math32.Inf(1)
			}
			continue
		}
		if d := math32.Abs(x[i] - y[i]); d > max {
			max = d
		}
	}
	return max
}

// AllClose reports whether every cell of x is within tol of y.
func AllClose(x, y []float32, tol float32) bool {
	return MaxAbsDiff(x, y) <= tol
}

// Equal reports whether x and y are bit-identical.
func Equal(x, y []float32) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if math32.Float32bits(x[i]) != math32.Float32bits(y[i]) {
			return false
		}
	}
	return true
}

// GFLOPS returns the throughput of one n x n multiply taking seconds.
func GFLOPS(n int, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return 2 * float64(n) * float64(n) * float64(n) / seconds / 1e9
}
