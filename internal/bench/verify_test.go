package bench

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxnlabs/vkmatmul/internal/matrix"
)

func TestFreivaldsVerify(t *testing.T) {
	const n = 16
	rng := rand.New(rand.NewPCG(7, 11))
	a := matrix.Random(n, rng)
	b := matrix.Random(n, rng)
	c := matrix.Multiply(a, b, n)

	corrupted := append([]float32(nil), c...)
	corrupted[5*n+9] += 1

	testCases := []struct {
		name     string
		a, b, c  []float32
		n        int
		expected bool
	}{
		{name: "correct product", a: a, b: b, c: c, n: n, expected: true},
		{name: "corrupted cell", a: a, b: b, c: corrupted, n: n, expected: false},
		{name: "size mismatch", a: a, b: b, c: c[:n], n: n, expected: false},
		{name: "zero size", a: nil, b: nil, c: nil, n: 0, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := rand.New(rand.NewPCG(1, 2))
			assert.Equal(t, tc.expected, FreivaldsVerify(tc.a, tc.b, tc.c, tc.n, 32, verifier, 1e-4))
		})
	}
}

func TestFreivaldsVerifyIdentity(t *testing.T) {
	n := 4
	identity := make([]float32, n*n)
	for i := 0; i < n; i++ {
		identity[i*n+i] = 1
	}
	b := matrix.Random(n, rand.New(rand.NewPCG(3, 4)))
	assert.True(t, FreivaldsVerify(identity, b, b, n, 10, rand.New(rand.NewPCG(5, 6)), 0))
}

func TestDigest(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	y := []float32{1, 2, 3, 4}
	z := []float32{1, 2, 3, 4.0000005}

	assert.Equal(t, Digest(x), Digest(y))
	assert.NotEqual(t, Digest(x), Digest(z))
	assert.Regexp(t, "^0x[0-9a-f]{64}$", Digest(x))
}

func TestSamples(t *testing.T) {
	n := 8
	c := make([]float32, n*n)
	for i := range c {
		c[i] = float32(i)
	}

	samples := Samples(c, n, 5)
	require.Len(t, samples, 5)
	assert.Equal(t, Sample{Row: 0, Col: 0, Value: 0}, samples[0])
	assert.Equal(t, Sample{Row: 4, Col: 4, Value: 36}, samples[1])
	assert.Equal(t, Sample{Row: 7, Col: 7, Value: 63}, samples[2])
	assert.Equal(t, Sample{Row: 2, Col: 2, Value: 18}, samples[3])
	assert.Equal(t, Sample{Row: 6, Col: 6, Value: 54}, samples[4])

	assert.Len(t, Samples(c, n, 2), 2)
	assert.Len(t, Samples(c, n, 10), 5)
	assert.Empty(t, Samples(c, 3, 5))
}
