package matrix

import (
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomIsSeeded(t *testing.T) {
	a := Random(8, rand.New(rand.NewPCG(1, 2)))
	b := Random(8, rand.New(rand.NewPCG(1, 2)))
	c := Random(8, rand.New(rand.NewPCG(2, 2)))

	require.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	for _, v := range a {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestMultiply(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		n    int
		want []float32
	}{
		{
			name: "ones times twos",
			a:    Fill(4, 1),
			b:    Fill(4, 2),
			n:    4,
			want: Fill(4, 8),
		},
		{
			name: "2x2",
			a:    []float32{1, 2, 3, 4},
			b:    []float32{5, 6, 7, 8},
			n:    2,
			want: []float32{19, 22, 43, 50},
		},
		{
			name: "identity",
			a:    []float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
			b:    []float32{1, 2, 3, 4, 5, 6, 7, 8, 9},
			n:    3,
			want: []float32{1, 2, 3, 4, 5, 6, 7, 8, 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Multiply(tt.a, tt.b, tt.n))
			assert.True(t, AllClose(tt.want, MultiplyGonum(tt.a, tt.b, tt.n), 1e-6))
		})
	}
}

func TestMultiplyAgreesWithGonum(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	a := Random(64, rng)
	b := Random(64, rng)
	assert.True(t, AllClose(Multiply(a, b, 64), MultiplyGonum(a, b, 64), 1e-3))
}

func TestMaxAbsDiff(t *testing.T) {
	inf := math32.Inf(1)
	nan := math32.NaN()

	assert.Equal(t, float32(0), MaxAbsDiff([]float32{1, 2}, []float32{1, 2}))
	assert.InDelta(t, 0.5, MaxAbsDiff([]float32{1, 2}, []float32{1.25, 1.5}), 1e-6)
	assert.Equal(t, inf, MaxAbsDiff([]float32{1}, []float32{1, 2}))
	assert.Equal(t, inf, MaxAbsDiff([]float32{nan}, []float32{nan}))
	assert.Equal(t, inf, MaxAbsDiff([]float32{inf}, []float32{1}))
	assert.Equal(t, float32(0), MaxAbsDiff([]float32{inf}, []float32{inf}))

	assert.True(t, AllClose([]float32{1.005}, []float32{1}, 0.01))
	assert.False(t, AllClose([]float32{1.02}, []float32{1}, 0.01))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal([]float32{1, 2}, []float32{1, 2}))
	assert.False(t, Equal([]float32{0}, []float32{math32.Copysign(0, -1)}))
	assert.False(t, Equal([]float32{1}, []float32{1, 2}))
}

func TestGFLOPS(t *testing.T) {
	assert.InDelta(t, 2.0, GFLOPS(1000, 1), 1e-9)
	assert.Zero(t, GFLOPS(1000, 0))
}
