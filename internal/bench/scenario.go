package bench

import (
	"fmt"

	"github.com/fxnlabs/vkmatmul/internal/matrix"
)

// The fixed smoke scenario: ones times twos at N=4, every cell 4*(1*2).
const (
	ScenarioSize     = 4
	ScenarioExpected = float32(8)
)

// Scenario multiplies a 4x4 matrix of 1.0 by a 4x4 matrix of 2.0 and checks
// that every cell of the product is 8.0. The product is returned either way.
func Scenario(backend Backend) ([]float32, error) {
	a := matrix.Fill(ScenarioSize, 1)
	b := matrix.Fill(ScenarioSize, 2)

	c, err := backend.MatrixMultiply(a, b, ScenarioSize, ScenarioSize, ScenarioSize)
	if err != nil {
		return nil, err
	}
	if len(c) != ScenarioSize*ScenarioSize {
		return c, fmt.Errorf("scenario: got %d cells, want %d", len(c), ScenarioSize*ScenarioSize)
	}
	for i, v := range c {
		if v != ScenarioExpected {
			return c, fmt.Errorf("scenario: cell (%d,%d) = %g, want %g: %w",
				i/ScenarioSize, i%ScenarioSize, v, ScenarioExpected, ErrVerificationFailed)
		}
	}
	return c, nil
}
