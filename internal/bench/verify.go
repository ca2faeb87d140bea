package bench

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
)

// FreivaldsVerify performs Freivalds' algorithm to probabilistically check
// that c = a * b for n x n row-major matrices. Each round multiplies by a
// random 0/1 vector r and compares a(br) with cr cell by cell, allowing
// tol relative to the magnitude of the row sums. A wrong product passes
// each round with probability at most 1/2.
func FreivaldsVerify(a, b, c []float32, n, rounds int, rng *rand.Rand, tol float32) bool {
	if n <= 0 || len(a) != n*n || len(b) != n*n || len(c) != n*n {
		return false
	}

	r := make([]float32, n)
	for i := 0; i < rounds; i++ {
		for j := range r {
			r[j] = float32(rng.IntN(2))
		}

		br := multiplyMatrixVector(b, r, n)
		abr := multiplyMatrixVector(a, br, n)
		cr := multiplyMatrixVector(c, r, n)

		if !vectorsClose(abr, cr, tol) {
			return false
		}
	}

	return true
}

// multiplyMatrixVector multiplies an n x n matrix by a vector
func multiplyMatrixVector(m, v []float32, n int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		row := m[i*n : (i+1)*n]
		for j, x := range row {
			sum += x * v[j]
		}
		out[i] = sum
	}
	return out
}

// vectorsClose compares with a tolerance scaled by max(1, |y|).
func vectorsClose(x, y []float32, tol float32) bool {
	for i := range x {
		if math32.IsNaN(x[i]) || math32.IsNaN(y[i]) {
			return false
		}
		scale := math32.Max(1, math32.Abs(y[i]))
		if math32.Abs(x[i]-y[i]) > tol*scale {
			return false
		}
	}
	return true
}

// Digest returns a hex SHA-256 over the bit patterns of c. Equal digests
// mean bit-identical results.
func Digest(c []float32) string {
	h := sha256.New()
	var buf [4]byte
	for _, v := range c {
		binary.LittleEndian.PutUint32(buf[:], math32.Float32bits(v))
		h.Write(buf[:])
	}
	return fmt.Sprintf("0x%x", h.Sum(nil))
}

// Sample is one cell of a result matrix.
type Sample struct {
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Value float32 `json:"value"`
}

// Samples returns up to count cells of an n x n matrix at fixed positions:
// first, middle, last, quarter and three-quarter.
func Samples(c []float32, n, count int) []Sample {
	samples := make([]Sample, 0, count)
	if n <= 0 || len(c) != n*n {
		return samples
	}

	positions := [][2]int{
		{0, 0},
		{n / 2, n / 2},
		{n - 1, n - 1},
		{n / 4, n / 4},
		{3 * n / 4, 3 * n / 4},
	}

	for i := 0; i < count && i < len(positions); i++ {
		row, col := positions[i][0], positions[i][1]
		samples = append(samples, Sample{Row: row, Col: col, Value: c[row*n+col]})
	}
	return samples
}
