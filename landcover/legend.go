// Package landcover holds the CORINE Land Cover level-3 legend, the
// non-burnable filter and the validated code → fuel class table.
package landcover

import (
	"sort"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/raster"
)

// Legend maps CLC level-3 codes to descriptions. It is read-only.
type Legend struct {
	entries map[int]string
	codes   []int
}

var corine = map[int]string{
	111: "Continuous urban fabric",
	112: "Discontinuous urban fabric",
	121: "Industrial or commercial units",
	122: "Road and rail networks and associated land",
	123: "Port areas",
	124: "Airports",
	131: "Mineral extraction sites",
	132: "Dump sites",
	133: "Construction sites",
	141: "Green urban areas",
	142: "Sport and leisure facilities",
	211: "Non-irrigated arable land",
	212: "Permanently irrigated land",
	213: "Rice fields",
	221: "Vineyards",
	222: "Fruit trees and berry plantations",
	223: "Olive groves",
	231: "Pastures",
	241: "Annual crops associated with permanent crops",
	242: "Complex cultivation patterns",
	243: "Land principally occupied by agriculture, with significant areas of natural vegetation",
	244: "Agro-forestry areas",
	311: "Broad-leaved forest",
	312: "Coniferous forest",
	313: "Mixed forest",
	321: "Natural grasslands",
	322: "Moors and heathland",
	323: "Sclerophyllous vegetation",
	324: "Transitional woodland-shrub",
	331: "Beaches, dunes, sands",
	332: "Bare rocks",
	333: "Sparsely vegetated areas",
	334: "Burnt areas",
	335: "Glaciers and perpetual snow",
	411: "Inland marshes",
	412: "Peat bogs",
	421: "Salt marshes",
	422: "Salines",
	423: "Intertidal flats",
	511: "Water courses",
	512: "Water bodies",
	521: "Coastal lagoons",
	522: "Estuaries",
	523: "Sea and ocean",
}

// NonBurnable lists the CLC codes that cannot carry a fire: artificial
// surfaces, bare ground, snow, wetlands and water.
var NonBurnable = []int{
	111, 112, 121, 122, 123, 124, 131, 132, 133, 141, 142,
	331, 332, 333, 335,
	411, 412, 421, 422, 423,
	511, 512, 521, 522, 523,
}

// Corine returns the CLC level-3 legend.
func Corine() Legend {
	entries := make(map[int]string, len(corine))
	for k, v := range corine {
		entries[k] = v
	}
	return newLegend(entries)
}

func newLegend(entries map[int]string) Legend {
	codes := make([]int, 0, len(entries))
	for c := range entries {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return Legend{entries: entries, codes: codes}
}

// Describe returns the description of code.
func (l Legend) Describe(code int) (string, bool) {
	d, ok := l.entries[code]
	return d, ok
}

// Codes returns the legend codes in ascending order.
func (l Legend) Codes() []int {
	return append([]int(nil), l.codes...)
}

// Len returns the number of codes.
func (l Legend) Len() int { return len(l.codes) }

// Burnable returns the legend codes not present in nonBurnable.
func (l Legend) Burnable(nonBurnable []int) []int {
	drop := make(map[int]bool, len(nonBurnable))
	for _, c := range nonBurnable {
		drop[c] = true
	}
	var out []int
	for _, c := range l.codes {
		if !drop[c] {
			out = append(out, c)
		}
	}
	return out
}

// Reclassify returns a copy of a CLC layer with every code in nonBurnable
// set to 0. Codes are rounded to integers first.
func Reclassify(clc *raster.Layer, nonBurnable []int) (*raster.Layer, error) {
	drop := make(map[int]bool, len(nonBurnable))
	for _, c := range nonBurnable {
		drop[c] = true
	}
	values := clc.Values()
	for i, v := range values {
		if !clc.Valid(i) {
			continue
		}
		if drop[roundCode(v)] {
			values[i] = 0
		}
	}
	out, err := clc.Derive(clc.Label(), values)
	if err != nil {
		return nil, errors.Wrap(err, "reclassify land cover")
	}
	return out, nil
}

func roundCode(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}
