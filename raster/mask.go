package raster

import (
	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

// Mask is a row-major validity grid. True marks a valid cell.
type Mask struct {
	Rows, Cols int
	Valid      []bool
}

// NewMask returns a rows×cols mask with every cell set to fill.
func NewMask(rows, cols int, fill bool) Mask {
	m := Mask{Rows: rows, Cols: cols, Valid: make([]bool, rows*cols)}
	if fill {
		for i := range m.Valid {
			m.Valid[i] = true
		}
	}
	return m
}

// SameShape reports whether o has the same dimensions as m.
func (m Mask) SameShape(rows, cols int) bool {
	return m.Rows == rows && m.Cols == cols
}

// And returns the cell-wise conjunction of m and o.
func (m Mask) And(o Mask) (Mask, error) {
	if !m.SameShape(o.Rows, o.Cols) {
		return Mask{}, errors.NewShapeAlignmentError("Mask.And", "mask", m.Rows, m.Cols, o.Rows, o.Cols)
	}
	out := Mask{Rows: m.Rows, Cols: m.Cols, Valid: make([]bool, len(m.Valid))}
	for i := range m.Valid {
		out.Valid[i] = m.Valid[i] && o.Valid[i]
	}
	return out, nil
}

// Count returns the number of valid cells.
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Valid {
		if v {
			n++
		}
	}
	return n
}

// Indices returns the flat positions r*Cols+c of valid cells in row-major
// order. Row k of a feature matrix corresponds to Indices()[k].
func (m Mask) Indices() []int {
	out := make([]int, 0, m.Count())
	for i, v := range m.Valid {
		if v {
			out = append(out, i)
		}
	}
	return out
}

// Clone returns a deep copy.
func (m Mask) Clone() Mask {
	return Mask{Rows: m.Rows, Cols: m.Cols, Valid: append([]bool(nil), m.Valid...)}
}
