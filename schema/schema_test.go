package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplexityScoreClone(t *testing.T) {
	original := ComplexityScore{
		Overall:    0.4,
		Dimensions: map[Dimension]float64{DimLength: 0.2},
		Domain:     ReportingDomain,
	}
	clone := original.Clone()
	clone.Dimensions[DimLength] = 0.9

	assert.InDelta(t, 0.2, original.Dimensions[DimLength], 1e-9)
	assert.Equal(t, original.Domain, clone.Domain)
	assert.Nil(t, ComplexityScore{}.Clone().Dimensions)
}

func TestZeroComplexity(t *testing.T) {
	score := ZeroComplexity()
	assert.Zero(t, score.Overall)
	assert.Equal(t, NoDomain, score.Domain)
	assert.Len(t, score.Dimensions, len(AllDimensions))
	for _, d := range AllDimensions {
		assert.Contains(t, score.Dimensions, d)
	}
}

func TestClampRating(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{3, 3},
		{5, 5},
		{9, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampRating(tt.in))
	}
}

func TestDefaultDimensionWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, d := range AllDimensions {
		sum += DefaultDimensionWeights()[d]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}
