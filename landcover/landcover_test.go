package landcover

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"github.com/YuminosukeSato/firehazard/raster"
)

func TestCorine(t *testing.T) {
	legend := Corine()
	assert.Equal(t, 44, legend.Len())

	desc, ok := legend.Describe(311)
	require.True(t, ok)
	assert.Equal(t, "Broad-leaved forest", desc)
	_, ok = legend.Describe(999)
	assert.False(t, ok)

	codes := legend.Codes()
	assert.Equal(t, 111, codes[0])
	assert.Equal(t, 523, codes[len(codes)-1])

	burnable := legend.Burnable(NonBurnable)
	assert.Len(t, burnable, 44-len(NonBurnable))
	assert.Contains(t, burnable, 334)
	assert.NotContains(t, burnable, 512)
}

func TestReclassify(t *testing.T) {
	clc, err := raster.NewLayer("veg", 1, 5, []float64{111, 311, 512, 243, -128}, raster.WithNoData(-128))
	require.NoError(t, err)

	out, err := Reclassify(clc, NonBurnable)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 311, 0, 243, -128}, out.Values())
	assert.False(t, out.Valid(4))
	assert.Equal(t, []float64{111, 311, 512, 243, -128}, clc.Values())
}

func TestNewFuelTable(t *testing.T) {
	table, err := NewFuelTable(map[int]int{311: 3, 312: 4, 211: 1}, []int{211, 311, 312})
	require.NoError(t, err)

	c, ok := table.Lookup(312)
	assert.True(t, ok)
	assert.Equal(t, 4, c)
	_, ok = table.Lookup(999)
	assert.False(t, ok)
	assert.Equal(t, 4, table.MaxClass())
	assert.Equal(t, []int{211, 311, 312}, table.Codes())
}

func TestNewFuelTable_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		entries map[int]int
		domain  []int
		want    string
	}{
		{"missing codes", map[int]int{311: 1}, []int{311, 312, 211}, "[211 312]"},
		{"class below one", map[int]int{311: 0}, nil, "fuel class 0"},
		{"empty", map[int]int{}, nil, "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFuelTable(tt.entries, tt.domain)
			var valErr *errors.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
