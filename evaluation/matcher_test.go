package evaluation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-eval/images"
	"github.com/nvr-ai/go-eval/models"
	"github.com/nvr-ai/go-eval/models/postprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pred(x1, y1, x2, y2 float64, score float32, class int) postprocess.Result {
	return postprocess.Result{Box: images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}, Score: score, Class: class}
}

func truth(x1, y1, x2, y2 float64, class int) postprocess.Truth {
	return postprocess.Truth{Box: images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}, Class: class}
}

func TestMatch_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		predicted postprocess.Detection
		truth     postprocess.Annotation
		configure func(*Config)
		expected  Counts
	}{
		{
			name:      "A: exact match",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 1)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 1)},
			expected:  Counts{TP: 1, FP: 0, FN: 0, IoUs: []float64{1.0}},
		},
		{
			name:      "B: class mismatch",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 2)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 1)},
			expected:  Counts{TP: 0, FP: 1, FN: 1, IoUs: []float64{0.0}},
		},
		{
			name:      "C: merge coercion",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 2)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 1)},
			configure: func(c *Config) { c.Merge = models.NewMergeRule(2, 1) },
			expected:  Counts{TP: 1, FP: 0, FN: 0, IoUs: []float64{1.0}},
		},
		{
			name:      "D: truth rescaled before IoU",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 1)},
			truth:     postprocess.Annotation{truth(0, 0, 5, 5, 1)},
			configure: func(c *Config) { c.XScale, c.YScale = 2, 2 },
			expected:  Counts{TP: 1, FP: 0, FN: 0, IoUs: []float64{1.0}},
		},
		{
			name:      "class map translates prediction",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 7)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 4)},
			configure: func(c *Config) { c.ClassMap = models.ClassMap{7: 4} },
			expected:  Counts{TP: 1, IoUs: []float64{1.0}},
		},
		{
			name:      "class map then merge",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 7)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 11)},
			configure: func(c *Config) {
				c.ClassMap = models.ClassMap{7: 0}
				c.Merge = models.NewMergeRule(0, 10, 11)
			},
			expected: Counts{TP: 1, IoUs: []float64{1.0}},
		},
		{
			name:      "below threshold is a false positive with its IoU recorded",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 1)},
			truth:     postprocess.Annotation{truth(5, 0, 15, 10, 1)},
			expected:  Counts{TP: 0, FP: 1, FN: 1, IoUs: []float64{50.0 / 150.0}},
		},
		{
			name:      "exactly at threshold is a true positive",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 1)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 5, 1)},
			expected:  Counts{TP: 1, IoUs: []float64{0.5}},
		},
		{
			name:      "no truth",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 1), pred(5, 5, 8, 8, 0.2, 1)},
			truth:     postprocess.Annotation{},
			expected:  Counts{FP: 2, IoUs: []float64{0, 0}},
		},
		{
			name:      "no predictions",
			predicted: postprocess.Detection{},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 1), truth(20, 20, 30, 30, 2)},
			expected:  Counts{FN: 2, IoUs: []float64{}},
		},
		{
			name:      "excluded truth is neither matched nor missed",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 3)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 3), truth(50, 50, 60, 60, 1)},
			configure: func(c *Config) { c.ExcludeIDs = []int{3} },
			expected:  Counts{TP: 0, FP: 1, FN: 1, IoUs: []float64{0}},
		},
		{
			name:      "claimed truth is unavailable to later predictions",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.5, 1), pred(0, 0, 10, 10, 0.99, 1)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 1)},
			expected:  Counts{TP: 1, FP: 1, FN: 0, IoUs: []float64{1.0, 0}},
		},
		{
			name:      "input order wins over confidence",
			predicted: postprocess.Detection{pred(1, 1, 11, 11, 0.1, 1), pred(0, 0, 10, 10, 0.99, 1)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 1)},
			expected:  Counts{TP: 1, FP: 1, FN: 0, IoUs: []float64{81.0 / 119.0, 0}},
		},
		{
			name:      "best IoU is chosen among candidates",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 1)},
			truth:     postprocess.Annotation{truth(2, 0, 12, 10, 1), truth(1, 0, 11, 10, 1)},
			expected:  Counts{TP: 1, FP: 0, FN: 1, IoUs: []float64{90.0 / 110.0}},
		},
		{
			name:      "zero threshold still needs an eligible candidate",
			predicted: postprocess.Detection{pred(0, 0, 10, 10, 0.9, 2)},
			truth:     postprocess.Annotation{truth(0, 0, 10, 10, 1)},
			configure: func(c *Config) { c.IoUThreshold = 0 },
			expected:  Counts{FP: 1, FN: 1, IoUs: []float64{0}},
		},
		{
			name:      "degenerate boxes",
			predicted: postprocess.Detection{pred(5, 5, 5, 5, 0.9, 1)},
			truth:     postprocess.Annotation{truth(5, 5, 5, 5, 1)},
			expected:  Counts{FP: 1, FN: 1, IoUs: []float64{0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.configure != nil {
				tt.configure(&cfg)
			}
			got, err := Match(tt.predicted, tt.truth, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.expected.TP, got.TP, "tp")
			assert.Equal(t, tt.expected.FP, got.FP, "fp")
			assert.Equal(t, tt.expected.FN, got.FN, "fn")
			assert.InDeltaSlice(t, tt.expected.IoUs, got.IoUs, 1e-9)
			assert.Len(t, got.IoUs, len(tt.predicted))
		})
	}
}

func TestMatch_TiesKeepFirst(t *testing.T) {
	predicted := postprocess.Detection{pred(0, 0, 10, 10, 0.9, 1), pred(0, 0, 10, 10, 0.9, 1)}
	gt := postprocess.Annotation{truth(0, 0, 10, 10, 1), truth(0, 0, 10, 10, 1)}

	got, err := Match(predicted, gt, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, got.TP)
	assert.Equal(t, 0, got.FN)
}

// The merge coercion sticks for the rest of a prediction's scan, so the
// outcome depends on the order of the ground truth.
func TestMatch_MergeIsPathDependent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge = models.NewMergeRule(2, 1, 3)

	predicted := postprocess.Detection{pred(0, 0, 10, 10, 0.9, 2)}
	weak := truth(0, 0, 10, 3, 3)   // IoU 0.3, class 3
	strong := truth(0, 0, 10, 9, 1) // IoU 0.9, class 1

	got, err := Match(predicted, postprocess.Annotation{weak, strong}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TP, "coerced to class 3 by the first truth, so class 1 is never eligible")
	assert.Equal(t, 1, got.FP)
	assert.Equal(t, 2, got.FN)
	assert.InDelta(t, 0.3, got.IoUs[0], 1e-9)

	got, err = Match(predicted, postprocess.Annotation{strong, weak}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TP)
	assert.Equal(t, 1, got.FN)
	assert.InDelta(t, 0.9, got.IoUs[0], 1e-9)
}

func TestMatch_DoesNotMutateInputs(t *testing.T) {
	predicted := postprocess.Detection{pred(0, 0, 10, 10, 0.9, 1), pred(20, 20, 30, 30, 0.8, 2)}
	gt := postprocess.Annotation{truth(0, 0, 10, 10, 1), truth(20, 20, 30, 30, 2), truth(1, 1, 2, 2, 3)}

	predCopy := append(postprocess.Detection(nil), predicted...)
	truthCopy := append(postprocess.Annotation(nil), gt...)

	cfg := DefaultConfig()
	cfg.XScale, cfg.YScale = 1.5, 1.5
	cfg.ExcludeIDs = []int{3}

	first, err := Match(predicted, gt, cfg)
	require.NoError(t, err)
	second, err := Match(predicted, gt, cfg)
	require.NoError(t, err)

	assert.Equal(t, predCopy, predicted)
	assert.Equal(t, truthCopy, gt)
	assert.Equal(t, first, second, "the same annotation can be matched twice")
}

func TestMatch_Validation(t *testing.T) {
	ok := postprocess.Annotation{truth(0, 0, 1, 1, 1)}

	_, err := Match(postprocess.Detection{pred(0, math.NaN(), 1, 1, 0.5, 1)}, ok, DefaultConfig())
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "detections[0][0].box", verr.Field)

	_, err = Match(nil, postprocess.Annotation{truth(0, 0, math.Inf(-1), 1, 1)}, DefaultConfig())
	assert.True(t, IsValidationError(err))

	_, err = Match(postprocess.Detection{pred(0, 0, 1, 1, float32(math.NaN()), 1)}, ok, DefaultConfig())
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "detections[0][0].score", verr.Field)

	cfg := DefaultConfig()
	cfg.IoUThreshold = 1.5
	_, err = Match(nil, ok, cfg)
	assert.True(t, IsValidationError(err))
}

// randomImage builds predictions drawn from predClasses and truths drawn from
// truthClasses, with boxes clustered so that some overlap.
func randomImage(rng *rand.Rand, predClasses, truthClasses []int) (postprocess.Detection, postprocess.Annotation) {
	box := func() images.Rect {
		x, y := float64(rng.Intn(60)), float64(rng.Intn(60))
		return images.Rect{X1: x, Y1: y, X2: x + float64(5+rng.Intn(30)), Y2: y + float64(5+rng.Intn(30))}
	}
	predicted := make(postprocess.Detection, rng.Intn(8))
	for i := range predicted {
		predicted[i] = postprocess.Result{Box: box(), Score: rng.Float32(), Class: predClasses[rng.Intn(len(predClasses))]}
	}
	gt := make(postprocess.Annotation, rng.Intn(8))
	for i := range gt {
		gt[i] = postprocess.Truth{Box: box(), Class: truthClasses[rng.Intn(len(truthClasses))]}
	}
	return predicted, gt
}

func TestMatch_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	configs := []Config{DefaultConfig()}
	low := DefaultConfig()
	low.IoUThreshold = 0.1
	configs = append(configs, low)
	merged := DefaultConfig()
	merged.Merge = models.NewMergeRule(1, 2, 3)
	merged.ClassMap = models.ClassMap{4: 1}
	configs = append(configs, merged)
	scaled := DefaultConfig()
	scaled.XScale, scaled.YScale = 1.3, 0.7
	configs = append(configs, scaled)

	for round := 0; round < 300; round++ {
		predicted, gt := randomImage(rng, []int{1, 2, 3, 4}, []int{1, 2, 3})
		for _, cfg := range configs {
			got, err := Match(predicted, gt, cfg)
			require.NoError(t, err)

			assert.LessOrEqual(t, got.TP, min(len(predicted), len(gt)))
			assert.Equal(t, len(predicted), got.TP+got.FP)
			assert.Equal(t, len(gt), got.TP+got.FN)
			assert.Len(t, got.IoUs, len(predicted))
			for _, v := range got.IoUs {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}

			again, err := Match(predicted, gt, cfg)
			require.NoError(t, err)
			assert.Equal(t, got, again, "matching must be deterministic")
		}
	}
}

func TestMatch_DisjointClasses(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	cfg := DefaultConfig()
	cfg.IoUThreshold = 0

	for round := 0; round < 200; round++ {
		predicted, gt := randomImage(rng, []int{5, 6}, []int{1, 2})
		got, err := Match(predicted, gt, cfg)
		require.NoError(t, err)
		assert.Equal(t, 0, got.TP)
		assert.Equal(t, len(predicted), got.FP)
		assert.Equal(t, len(gt), got.FN)
	}
}

func BenchmarkMatch(b *testing.B) {
	rng := rand.New(rand.NewSource(3))
	predicted := make(postprocess.Detection, 100)
	gt := make(postprocess.Annotation, 100)
	for i := range predicted {
		x, y := rng.Float64()*1000, rng.Float64()*1000
		predicted[i] = pred(x, y, x+50, y+50, rng.Float32(), rng.Intn(5))
		gt[i] = truth(x+rng.Float64()*10, y+rng.Float64()*10, x+50, y+50, rng.Intn(5))
	}
	m := newMatcher(DefaultConfig())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.match(predicted, gt)
	}
}
