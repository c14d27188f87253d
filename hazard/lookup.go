// Package hazard turns a susceptibility raster into ordinal hazard classes:
// quantile classes of susceptibility are crossed with fuel classes through a
// small lookup matrix.
package hazard

import (
	"fmt"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

// LookupMatrix maps (susceptibility class, fuel class), both 1-based, to a
// hazard value. It is rectangular with positive entries.
type LookupMatrix struct {
	rows [][]int
}

// DefaultLookupMatrix is the 3 susceptibility × 4 fuel class table.
func DefaultLookupMatrix() LookupMatrix {
	m, _ := NewLookupMatrix([][]int{
		{1, 2, 3, 4},
		{2, 3, 4, 5},
		{3, 3, 5, 6},
	})
	return m
}

// NewLookupMatrix validates and copies rows.
func NewLookupMatrix(rows [][]int) (LookupMatrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return LookupMatrix{}, errors.NewValidationError("lookup_matrix", "must have at least one row and one column", rows)
	}
	width := len(rows[0])
	out := make([][]int, len(rows))
	for i, r := range rows {
		if len(r) != width {
			return LookupMatrix{}, errors.NewValidationError("lookup_matrix",
				fmt.Sprintf("row %d has %d columns, want %d", i, len(r), width), r)
		}
		for j, v := range r {
			if v < 1 {
				return LookupMatrix{}, errors.NewValidationError("lookup_matrix",
					fmt.Sprintf("entry [%d][%d] must be >= 1", i, j), v)
			}
		}
		out[i] = append([]int(nil), r...)
	}
	return LookupMatrix{rows: out}, nil
}

// SusceptibilityClasses returns the number of rows S.
func (m LookupMatrix) SusceptibilityClasses() int { return len(m.rows) }

// FuelClasses returns the number of columns F.
func (m LookupMatrix) FuelClasses() int {
	if len(m.rows) == 0 {
		return 0
	}
	return len(m.rows[0])
}

// At returns the hazard of susceptibility class s and fuel class f, both
// 1-based. Out of range classes return a ClassificationRangeError.
func (m LookupMatrix) At(s, f int) (int, error) {
	if s < 1 || s > m.SusceptibilityClasses() {
		return 0, errors.NewClassificationRangeError("hazard.LookupMatrix", AxisSusceptibility, s, 1, m.SusceptibilityClasses())
	}
	if f < 1 || f > m.FuelClasses() {
		return 0, errors.NewClassificationRangeError("hazard.LookupMatrix", AxisFuel, f, 1, m.FuelClasses())
	}
	return m.rows[s-1][f-1], nil
}

// Rows returns a copy of the table.
func (m LookupMatrix) Rows() [][]int {
	out := make([][]int, len(m.rows))
	for i, r := range m.rows {
		out[i] = append([]int(nil), r...)
	}
	return out
}

// Axis names used in ClassificationRangeError.
const (
	AxisSusceptibility = "susceptibility"
	AxisFuel           = "fuel"
)

// Contingency looks every (x[i], y[i]) pair up in m. Pairs where either side
// equals its nodata value are remapped to class 1 before the lookup and then
// set to 0, so the operation stays dense over the whole grid. Any other
// value outside [1, S] or [1, F] is a ClassificationRangeError.
func Contingency(x, y []int, xNoData, yNoData int, m LookupMatrix) ([]int, error) {
	if len(x) != len(y) {
		return nil, errors.NewDimensionError("hazard.Contingency", len(x), len(y), 0)
	}
	out := make([]int, len(x))
	for i := range x {
		invalid := x[i] == xNoData || y[i] == yNoData
		s, f := x[i], y[i]
		if invalid {
			s, f = 1, 1
		}
		v, err := m.At(s, f)
		if err != nil {
			return nil, errors.Wrapf(err, "cell %d", i)
		}
		if invalid {
			v = 0
		}
		out[i] = v
	}
	return out, nil
}
