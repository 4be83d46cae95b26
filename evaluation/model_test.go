package evaluation

import (
	"context"
	"fmt"
	"testing"

	"github.com/nvr-ai/go-eval/models/postprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockSource struct {
	paths []string
	anns  []postprocess.Annotation
	err   error
}

func (m *mockSource) ImagePaths(category string, n int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if n >= 0 && n < len(m.paths) {
		return m.paths[:n], nil
	}
	return m.paths, nil
}

func (m *mockSource) Annotations(category string, n int) ([]postprocess.Annotation, error) {
	if n >= 0 && n < len(m.anns) {
		return m.anns[:n], nil
	}
	return m.anns, nil
}

type mockDetector struct {
	byPath map[string]postprocess.Detection
	seen   []string
}

func (m *mockDetector) Detect(ctx context.Context, paths []string) ([]postprocess.Detection, error) {
	m.seen = append(m.seen, paths...)
	out := make([]postprocess.Detection, len(paths))
	for i, p := range paths {
		det, ok := m.byPath[p]
		if !ok {
			return nil, fmt.Errorf("unexpected image %s", p)
		}
		out[i] = det
	}
	return out, nil
}

func sampleModelRun() (*mockSource, *mockDetector) {
	detections, annotations := sampleDataset()
	src := &mockSource{paths: []string{"a.png", "b.png", "c.png"}, anns: annotations}
	det := &mockDetector{byPath: map[string]postprocess.Detection{
		"a.png": detections[0],
		"b.png": detections[1],
		"c.png": detections[2],
	}}
	return src, det
}

func TestEvaluateModel(t *testing.T) {
	src, det := sampleModelRun()
	core, logs := observer.New(zap.InfoLevel)

	s, err := EvaluateModel(context.Background(), "trash", src, det, DefaultConfig(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	assert.Equal(t, 3, s.Images)
	assert.Equal(t, 1, s.TP)
	assert.InDelta(t, 1.0/3.0, s.MeanIoU, 1e-12)
	assert.Greater(t, int64(s.Duration), int64(0))

	done := logs.FilterMessage("evaluation complete").All()
	require.Len(t, done, 1)
	assert.Equal(t, "trash", done[0].ContextMap()["category"])
}

func TestEvaluateModel_Limit(t *testing.T) {
	src, det := sampleModelRun()
	cfg := DefaultConfig()
	cfg.Limit = 2

	s, err := EvaluateModel(context.Background(), "trash", src, det, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Images)
	assert.Equal(t, []string{"a.png", "b.png"}, det.seen, "the detector only sees limited images")
}

func TestEvaluateModel_Errors(t *testing.T) {
	src, det := sampleModelRun()
	src.err = errors.New("store offline")
	_, err := EvaluateModel(context.Background(), "trash", src, det, DefaultConfig())
	assert.ErrorContains(t, err, "store offline")

	src, det = sampleModelRun()
	delete(det.byPath, "b.png")
	_, err = EvaluateModel(context.Background(), "trash", src, det, DefaultConfig())
	assert.ErrorContains(t, err, "detection failed")

	// Nothing detected anywhere: the mean IoU is undefined.
	src, _ = sampleModelRun()
	empty := &mockDetector{byPath: map[string]postprocess.Detection{"a.png": {}, "b.png": {}, "c.png": {}}}
	_, err = EvaluateModel(context.Background(), "trash", src, empty, DefaultConfig())
	assert.ErrorIs(t, err, ErrEmptyResult)

	cfg := DefaultConfig()
	cfg.YScale = -1
	_, err = EvaluateModel(context.Background(), "trash", src, det, cfg)
	assert.True(t, IsValidationError(err))
}
