package postprocess

import (
	"math"
	"testing"

	"github.com/nvr-ai/go-eval/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRow(t *testing.T) {
	r, err := FromRow([]float64{0, 0, 10, 10, 0.9, 2})
	require.NoError(t, err)
	assert.Equal(t, images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, r.Box)
	assert.InDelta(t, 0.9, r.Score, 1e-6)
	assert.Equal(t, 2, r.Class)
}

func TestFromRow_Malformed(t *testing.T) {
	tests := []struct {
		name string
		row  []float64
	}{
		{"missing coordinate", []float64{0, 0, 10, 0.9, 2}},
		{"too many values", []float64{0, 0, 10, 10, 0.9, 2, 7}},
		{"nan coordinate", []float64{0, math.NaN(), 10, 10, 0.9, 2}},
		{"inf coordinate", []float64{0, 0, math.Inf(1), 10, 0.9, 2}},
		{"nan score", []float64{0, 0, 10, 10, math.NaN(), 2}},
		{"fractional class", []float64{0, 0, 10, 10, 0.9, 2.5}},
		{"nan class", []float64{0, 0, 10, 10, 0.9, math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRow(tt.row)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestTruthFromRow(t *testing.T) {
	tr, err := TruthFromRow([]float64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, Truth{Box: images.Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}, Class: 5}, tr)

	_, err = TruthFromRow([]float64{1, 2, 3, 4})
	assert.Error(t, err)

	_, err = TruthFromRow([]float64{1, 2, math.NaN(), 4, 1})
	assert.Error(t, err)
}

func TestResultString(t *testing.T) {
	r := Result{Box: images.Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}, Score: 0.5, Class: 7}
	assert.Equal(t, "Class 7 (confidence 0.500000): (1.00, 2.00), (3.00, 4.00)", r.String())
}
