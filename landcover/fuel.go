package landcover

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

// FuelTable is an immutable land cover code → fuel class mapping.
type FuelTable struct {
	classes  map[int]int
	maxClass int
}

// NewFuelTable validates entries against the expected code domain. Every
// domain code must be mapped and every fuel class must be >= 1. An empty
// domain skips the completeness check.
func NewFuelTable(entries map[int]int, domain []int) (FuelTable, error) {
	if len(entries) == 0 {
		return FuelTable{}, errors.NewValidationError("fuel_table", "table is empty", nil)
	}

	var missing []int
	for _, code := range domain {
		if _, ok := entries[code]; !ok {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return FuelTable{}, errors.NewValidationError("fuel_table",
			fmt.Sprintf("codes without a fuel class: %v", missing), missing)
	}

	t := FuelTable{classes: make(map[int]int, len(entries))}
	for code, class := range entries {
		if class < 1 {
			return FuelTable{}, errors.NewValidationError("fuel_table",
				fmt.Sprintf("code %d has fuel class %d, want >= 1", code, class), class)
		}
		t.classes[code] = class
		if class > t.maxClass {
			t.maxClass = class
		}
	}
	return t, nil
}

// Lookup returns the fuel class of code.
func (t FuelTable) Lookup(code int) (int, bool) {
	c, ok := t.classes[code]
	return c, ok
}

// MaxClass returns the largest fuel class in the table.
func (t FuelTable) MaxClass() int { return t.maxClass }

// Len returns the number of mapped codes.
func (t FuelTable) Len() int { return len(t.classes) }

// Codes returns the mapped codes in ascending order.
func (t FuelTable) Codes() []int {
	codes := make([]int, 0, len(t.classes))
	for c := range t.classes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}
