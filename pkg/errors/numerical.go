package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// NonFiniteError reports NaN or Inf values found in an input matrix.
type NonFiniteError struct {
	Op     string
	Row    int
	Col    int
	Values []float64
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("tabforest: %s: input contains NaN or infinity at (%d, %d): %v",
		e.Op, e.Row, e.Col, e.Values)
}

// CheckMatrix checks all values in a matrix and returns a NonFiniteError
// pointing at the first NaN or Inf it finds.
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	var bad []float64
	firstRow, firstCol := -1, -1

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				if firstRow < 0 {
					firstRow, firstCol = i, j
				}
				bad = append(bad, v)
				if len(bad) >= 10 {
					break
				}
			}
		}
		if len(bad) > 0 {
			break
		}
	}

	if len(bad) > 0 {
		return errors.WithStack(&NonFiniteError{Op: operation, Row: firstRow, Col: firstCol, Values: bad})
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}
