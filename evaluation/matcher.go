package evaluation

import (
	"fmt"

	"github.com/nvr-ai/go-eval/images"
	"github.com/nvr-ai/go-eval/models/postprocess"
	"github.com/pkg/errors"
)

// Counts holds the confusion counts and IoU values for one image, or folded
// over many images.
type Counts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	// IoUs has one entry per evaluated predicted box: the IoU of its best
	// eligible truth, 0 if there was none. Unmatched truths add no entry.
	IoUs []float64 `json:"ious"`
}

// Add folds o into c. Counts are summed and IoUs appended, so folding shards
// in image order reproduces a single sequential run exactly.
func (c *Counts) Add(o Counts) {
	c.TP += o.TP
	c.FP += o.FP
	c.FN += o.FN
	c.IoUs = append(c.IoUs, o.IoUs...)
}

// Match greedily assigns the predicted boxes of one image to its ground truth.
//
// Predictions are taken in the order given, never sorted by confidence. For
// each one the best available truth of the same (remapped, possibly merged)
// class is picked by strictly greatest IoU, the first wins ties. A pick at or
// above the threshold is a true positive and claims that truth for the rest
// of the image; anything else is a false positive. Unclaimed truths are false
// negatives.
//
// The inputs are never modified.
//
// Arguments:
//   - predicted: The detector's boxes for the image.
//   - truth: The ground-truth boxes for the image.
//   - cfg: The evaluation options.
//
// Returns:
//   - Counts: TP/FP/FN and one IoU per predicted box.
//   - error: A *ValidationError for an invalid config or a non-finite box.
func Match(predicted postprocess.Detection, truth postprocess.Annotation, cfg Config) (Counts, error) {
	if err := cfg.Validate(); err != nil {
		return Counts{}, err
	}
	if err := validateImage(0, predicted, truth); err != nil {
		return Counts{}, err
	}
	return newMatcher(cfg).match(predicted, truth), nil
}

type matcher struct {
	cfg      Config
	excluded map[int]struct{}
}

func newMatcher(cfg Config) *matcher {
	return &matcher{cfg: cfg, excluded: cfg.excludedSet()}
}

func (m *matcher) match(predicted postprocess.Detection, truth postprocess.Annotation) Counts {
	// available[i] is false once truth i is excluded or claimed.
	available := make([]bool, len(truth))
	scaled := make([]images.Rect, len(truth))
	remaining := 0
	for i, t := range truth {
		if _, skip := m.excluded[t.Class]; skip {
			continue
		}
		available[i] = true
		scaled[i] = t.Box.Scale(m.cfg.XScale, m.cfg.YScale)
		remaining++
	}

	out := Counts{IoUs: make([]float64, 0, len(predicted))}
	for _, p := range predicted {
		class := m.cfg.ClassMap.Remap(p.Class)

		bestIoU := 0.0
		bestIndex := -1
		for i, t := range truth {
			if !available[i] {
				continue
			}
			// The merge rule is applied per comparison and the coerced class
			// carries over to the remaining truths of this scan.
			class = m.cfg.Merge.Coerce(class, t.Class)

			iou := images.CalculateIoU(p.Box, scaled[i])
			if iou > bestIoU && class == t.Class {
				bestIoU = iou
				bestIndex = i
			}
		}

		if bestIndex >= 0 && bestIoU >= m.cfg.IoUThreshold {
			out.TP++
			available[bestIndex] = false
			remaining--
		} else {
			out.FP++
		}
		out.IoUs = append(out.IoUs, bestIoU)
	}
	out.FN = remaining

	return out
}

// validateImage checks every box of one image pair.
func validateImage(image int, predicted postprocess.Detection, truth postprocess.Annotation) error {
	for j, p := range predicted {
		if err := p.Validate(); err != nil {
			return locate(err, fmt.Sprintf("detections[%d][%d]", image, j))
		}
	}
	for j, t := range truth {
		if err := t.Validate(); err != nil {
			return locate(err, fmt.Sprintf("annotations[%d][%d]", image, j))
		}
	}
	return nil
}

// locate prefixes the field of a box ValidationError with its position.
func locate(err error, prefix string) error {
	var v *ValidationError
	if errors.As(err, &v) {
		return &ValidationError{Field: prefix + "." + v.Field, Reason: v.Reason}
	}
	return errors.Wrap(err, prefix)
}
