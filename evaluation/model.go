package evaluation

import (
	"context"
	"time"

	"github.com/nvr-ai/go-eval/detector"
	"github.com/nvr-ai/go-eval/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AnnotationSource supplies the images of a category and their ground truth.
// Both methods return images in the same order; n caps the count, -1 for all.
type AnnotationSource interface {
	ImagePaths(category string, n int) ([]string, error)
	Annotations(category string, n int) ([]postprocess.Annotation, error)
}

// EvaluateModel runs det over every image of a category and scores it
// against the source's ground truth.
//
// Arguments:
//   - ctx: Cancels the detector.
//   - category: The category whose images are evaluated.
//   - source: The annotation store.
//   - det: The detector under evaluation.
//   - cfg: The evaluation options. cfg.Limit also caps the images requested.
//   - opts: Optional logger.
//
// Returns:
//   - Summary: Precision, recall, mean IoU, image count and elapsed time.
//   - error: If loading, detection or validation fails, or ErrEmptyResult
//     when the detector produced no boxes at all.
func EvaluateModel(
	ctx context.Context,
	category string,
	source AnnotationSource,
	det detector.Detector,
	cfg Config,
	opts ...Option,
) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	o := buildOptions(opts)
	log := o.logger.With(zap.String("category", category))
	start := time.Now()

	paths, err := source.ImagePaths(category, cfg.Limit)
	if err != nil {
		return Summary{}, errors.Wrap(err, "failed to list images")
	}
	anns, err := source.Annotations(category, cfg.Limit)
	if err != nil {
		return Summary{}, errors.Wrap(err, "failed to load annotations")
	}

	log.Info("running detector", zap.Int("images", len(paths)))
	detections, err := det.Detect(ctx, paths)
	if err != nil {
		return Summary{}, errors.Wrap(err, "detection failed")
	}

	res, err := Evaluate(detections, anns, cfg, WithLogger(log))
	if err != nil {
		return Summary{}, err
	}

	summary, err := Summarize(res)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "category %q", category)
	}
	summary.Images = pairCount(len(detections), len(anns), cfg.Limit)
	summary.Duration = time.Since(start)

	log.Info("evaluation complete",
		zap.Float64("precision", summary.Precision),
		zap.Float64("recall", summary.Recall),
		zap.Float64("iou", summary.MeanIoU),
		zap.Int("images", summary.Images),
		zap.Duration("elapsed", summary.Duration),
	)
	return summary, nil
}
