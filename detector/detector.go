// Package detector - Sources of predicted boxes for evaluation.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-eval/models"
	"github.com/nvr-ai/go-eval/models/postprocess"
	"github.com/pkg/errors"
)

// Detector produces the predicted boxes of a batch of images, one Detection
// per path and in path order.
type Detector interface {
	Detect(ctx context.Context, imagePaths []string) ([]postprocess.Detection, error)
}

// PredictionImage holds one image's detector output.
type PredictionImage struct {
	FileName string `json:"file_name"`
	// Boxes rows are (x1, y1, x2, y2, confidence, class_id).
	Boxes [][]float64 `json:"boxes"`
}

// PredictionFile is a recorded detector run.
type PredictionFile struct {
	// Categories optionally names the detector's classes.
	Categories []models.OutputClass `json:"categories,omitempty"`
	Images     []PredictionImage    `json:"images"`
}

// LoadPredictions reads a recorded detector run from a JSON file.
func LoadPredictions(path string) (*PredictionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read predictions")
	}
	var f PredictionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "failed to decode predictions %s", path)
	}
	return &f, nil
}

// FileDetector replays a recorded detector run, matching images by file name.
type FileDetector struct {
	// AllowMissing makes images absent from the recording yield an empty
	// Detection instead of an error.
	AllowMissing bool

	categories []models.OutputClass
	byName     map[string]postprocess.Detection
}

// NewFileDetector validates every row of the recording and indexes it.
//
// Arguments:
//   - f: The recorded detector run.
//
// Returns:
//   - *FileDetector: The replaying detector.
//   - error: A *postprocess.ValidationError for a malformed row, or an error
//     for a file name recorded twice.
func NewFileDetector(f *PredictionFile) (*FileDetector, error) {
	d := &FileDetector{
		categories: f.Categories,
		byName:     make(map[string]postprocess.Detection, len(f.Images)),
	}
	for i, img := range f.Images {
		name := filepath.Base(img.FileName)
		if _, dup := d.byName[name]; dup {
			return nil, fmt.Errorf("image %q recorded twice", name)
		}

		det := make(postprocess.Detection, 0, len(img.Boxes))
		for j, row := range img.Boxes {
			r, err := postprocess.FromRow(row)
			if err != nil {
				var v *postprocess.ValidationError
				if errors.As(err, &v) {
					return nil, &postprocess.ValidationError{
						Field:  fmt.Sprintf("images[%d].boxes[%d].%s", i, j, v.Field),
						Reason: v.Reason,
					}
				}
				return nil, err
			}
			det = append(det, r)
		}
		d.byName[name] = det
	}
	return d, nil
}

// Detect returns the recorded boxes of each image, keyed by base file name.
func (d *FileDetector) Detect(ctx context.Context, imagePaths []string) ([]postprocess.Detection, error) {
	out := make([]postprocess.Detection, len(imagePaths))
	for i, p := range imagePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		det, ok := d.byName[filepath.Base(p)]
		if !ok {
			if !d.AllowMissing {
				return nil, fmt.Errorf("no recorded detections for %s", p)
			}
			det = postprocess.Detection{}
		}
		out[i] = det
	}
	return out, nil
}

// ClassSet exposes the recorded category names as a class set, or nil when
// the recording carries none.
func (d *FileDetector) ClassSet(style models.Taxonomy) *models.OutputClassSet {
	if len(d.categories) == 0 {
		return nil
	}
	return &models.OutputClassSet{Style: style, Classes: append([]models.OutputClass(nil), d.categories...)}
}
