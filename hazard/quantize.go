package hazard

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/firehazard/landcover"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/raster"
)

// Labels and nodata of class rasters.
const (
	SusceptibilityClassLabel = "susceptibility_class"
	FuelClassLabel           = "fuel_class"
	HazardLabel              = "hazard"

	// ClassNoData marks cells without a class.
	ClassNoData = 0
	// UnmappedFuel is the fuel class of codes missing from the table.
	UnmappedFuel = -1
)

// DefaultLevels are the quantile levels splitting susceptibility into three
// classes.
var DefaultLevels = []float64{0.5, 0.75}

// CheckLevels requires strictly increasing levels in (0, 1).
func CheckLevels(levels []float64) error {
	if len(levels) == 0 {
		return errors.NewValidationError("levels", "at least one quantile level is required", levels)
	}
	for i, q := range levels {
		if !(q > 0 && q < 1) {
			return errors.NewValidationError("levels", "must be in (0, 1)", q)
		}
		if i > 0 && q <= levels[i-1] {
			return errors.NewValidationError("levels", "must be strictly increasing", levels)
		}
	}
	return nil
}

// Thresholds returns the quantiles at levels of the valid values >= 0 of l,
// linearly interpolated between order statistics.
func Thresholds(l *raster.Layer, levels []float64) ([]float64, error) {
	if err := CheckLevels(levels); err != nil {
		return nil, err
	}
	var values []float64
	for i := 0; i < l.Len(); i++ {
		if v := l.Value(i); l.Valid(i) && v >= 0 {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, errors.NewInsufficientDataError("hazard.Thresholds", "valid pixels", 0, 1)
	}
	sort.Float64s(values)

	out := make([]float64, len(levels))
	for i, q := range levels {
		out[i] = quantile(values, q)
	}
	return out, nil
}

// quantile of sorted at q with position q·(n-1).
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Digitize gives every valid cell v >= 0 the class 1 + |{t : t < v}|, i.e.
// right-inclusive bins starting at 1. Other cells get ClassNoData.
func Digitize(l *raster.Layer, thresholds []float64) (*raster.Layer, error) {
	if len(thresholds) == 0 {
		return nil, errors.NewValidationError("thresholds", "at least one threshold is required", thresholds)
	}
	if !sort.Float64sAreSorted(thresholds) {
		return nil, errors.NewValidationError("thresholds", "must be non-decreasing", thresholds)
	}
	out := make([]float64, l.Len())
	for i := range out {
		v := l.Value(i)
		if !l.Valid(i) || v < 0 {
			continue
		}
		// first threshold >= v
		out[i] = float64(1 + sort.SearchFloat64s(thresholds, v))
	}
	return l.Derive(SusceptibilityClassLabel, out, raster.WithNoData(ClassNoData))
}

// QuantizeSusceptibility computes the thresholds of l at levels and
// digitizes l with them.
func QuantizeSusceptibility(l *raster.Layer, levels []float64) (*raster.Layer, []float64, error) {
	thresholds, err := Thresholds(l, levels)
	if err != nil {
		return nil, nil, err
	}
	classes, err := Digitize(l, thresholds)
	if err != nil {
		return nil, nil, err
	}
	return classes, thresholds, nil
}

// QuantizeFuel maps every valid land cover code through table. Codes missing
// from the table become UnmappedFuel and each distinct one is reported once
// through errors.Warn; invalid cells become ClassNoData. The returned map
// counts cells per unmapped code.
func QuantizeFuel(codes *raster.Layer, table landcover.FuelTable) (*raster.Layer, map[int]int, error) {
	out := make([]float64, codes.Len())
	unmapped := make(map[int]int)
	for i := range out {
		if !codes.Valid(i) {
			continue
		}
		code := int(math.Round(codes.Value(i)))
		class, ok := table.Lookup(code)
		if !ok {
			unmapped[code]++
			out[i] = UnmappedFuel
			continue
		}
		out[i] = float64(class)
	}

	missing := make([]int, 0, len(unmapped))
	for code := range unmapped {
		missing = append(missing, code)
	}
	sort.Ints(missing)
	for _, code := range missing {
		errors.Warn(errors.NewUnmappedCodeWarning(FuelClassLabel, code, unmapped[code]))
	}

	l, err := codes.Derive(FuelClassLabel, out, raster.WithNoData(ClassNoData))
	if err != nil {
		return nil, nil, err
	}
	return l, unmapped, nil
}

// CombineHazardMatrix crosses susceptibility and fuel classes through m.
// Cells that are invalid, 0 or UnmappedFuel on either side yield 0.
func CombineHazardMatrix(susc, fuel *raster.Layer, m LookupMatrix) (*raster.Layer, error) {
	if err := raster.CheckAligned("hazard.CombineHazardMatrix", susc, fuel); err != nil {
		return nil, err
	}
	x := classCodes(susc)
	y := classCodes(fuel)
	values, err := Contingency(x, y, ClassNoData, ClassNoData, m)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return susc.Derive(HazardLabel, out, raster.WithNoData(ClassNoData))
}

// classCodes rounds class values; invalid cells and negative sentinels
// become ClassNoData.
func classCodes(l *raster.Layer) []int {
	out := make([]int, l.Len())
	for i := range out {
		if !l.Valid(i) {
			continue
		}
		v := int(math.Round(l.Value(i)))
		if v < 0 {
			continue
		}
		out[i] = v
	}
	return out
}

// Counts returns the number of cells per class value, sentinel classes
// included.
func Counts(l *raster.Layer) map[int]int {
	out := make(map[int]int)
	for i := 0; i < l.Len(); i++ {
		out[int(math.Round(l.Value(i)))]++
	}
	return out
}
