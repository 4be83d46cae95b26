// Package postprocess - Predicted and ground-truth box types consumed by the evaluator.
package postprocess

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-eval/images"
)

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result.
	Box images.Rect `json:"box"`
	// The confidence score of the result. Carried through but never used for ordering.
	Score float32 `json:"score"`
	// The predicted class index of the result.
	Class int `json:"class"`
}

// Truth represents a single ground-truth box.
type Truth struct {
	// The bounding box of the annotation.
	Box images.Rect `json:"box"`
	// The annotated class index.
	Class int `json:"class"`
}

// Detection is the ordered list of predicted boxes for one image, in the order
// the detector emitted them.
type Detection []Result

// Annotation is the ordered list of ground-truth boxes for one image.
type Annotation []Truth

// ValidationError reports a malformed box: a missing or non-finite
// coordinate, or a non-finite score.
type ValidationError struct {
	// Field locates the offending value, e.g. "box" or "detections[2][0].score".
	Field string
	// Reason describes what is wrong with it.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate reports the first coordinate or score that is not a finite number.
func (r Result) Validate() error {
	if !r.Box.IsFinite() {
		return &ValidationError{Field: "box", Reason: fmt.Sprintf("%v has a non-finite coordinate", r.Box)}
	}
	if math32.IsNaN(r.Score) || math32.IsInf(r.Score, 0) {
		return &ValidationError{Field: "score", Reason: fmt.Sprintf("%v is not finite", r.Score)}
	}
	return nil
}

// Validate reports a non-finite coordinate.
func (t Truth) Validate() error {
	if !t.Box.IsFinite() {
		return &ValidationError{Field: "box", Reason: fmt.Sprintf("%v has a non-finite coordinate", t.Box)}
	}
	return nil
}

// FromRow builds a Result from a detector row laid out as
// (x1, y1, x2, y2, confidence, class_id).
func FromRow(row []float64) (Result, error) {
	if len(row) != 6 {
		return Result{}, &ValidationError{Field: "row", Reason: fmt.Sprintf("prediction row needs 6 values, got %d", len(row))}
	}
	if row[5] != math.Trunc(row[5]) {
		return Result{}, &ValidationError{Field: "class", Reason: fmt.Sprintf("%v is not an integer", row[5])}
	}
	r := Result{
		Box:   images.Rect{X1: row[0], Y1: row[1], X2: row[2], Y2: row[3]},
		Score: float32(row[4]),
		Class: int(row[5]),
	}
	if err := r.Validate(); err != nil {
		return Result{}, err
	}
	return r, nil
}

// TruthFromRow builds a Truth from a row laid out as (x1, y1, x2, y2, class_id).
func TruthFromRow(row []float64) (Truth, error) {
	if len(row) != 5 {
		return Truth{}, &ValidationError{Field: "row", Reason: fmt.Sprintf("annotation row needs 5 values, got %d", len(row))}
	}
	if row[4] != math.Trunc(row[4]) {
		return Truth{}, &ValidationError{Field: "class", Reason: fmt.Sprintf("%v is not an integer", row[4])}
	}
	t := Truth{Box: images.Rect{X1: row[0], Y1: row[1], X2: row[2], Y2: row[3]}, Class: int(row[4])}
	if err := t.Validate(); err != nil {
		return Truth{}, err
	}
	return t, nil
}

func (r Result) String() string {
	return fmt.Sprintf("Class %d (confidence %f): %s", r.Class, r.Score, r.Box)
}
