package evaluation

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary is the reportable view of a Result.
type Summary struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	// MeanIoU averages over every evaluated prediction, TPs and FPs alike.
	MeanIoU float64 `json:"iou"`
	// StdIoU is the sample standard deviation of the same values, 0 for a single value.
	StdIoU float64 `json:"iou_std"`

	TP          int `json:"tp"`
	FP          int `json:"fp"`
	FN          int `json:"fn"`
	Predictions int `json:"predictions"`

	// Images and Duration are filled in by EvaluateModel.
	Images   int           `json:"images,omitempty"`
	Duration time.Duration `json:"time,omitempty"`
}

// MeanIoU returns the arithmetic mean of ious.
//
// Returns:
//   - float64: The mean.
//   - error: ErrEmptyResult if ious is empty.
func MeanIoU(ious []float64) (float64, error) {
	if len(ious) == 0 {
		return 0, ErrEmptyResult
	}
	return stat.Mean(ious, nil), nil
}

// Summarize reduces a Result to precision, recall and mean IoU.
//
// Returns:
//   - Summary: The report.
//   - error: ErrEmptyResult when no predicted box was evaluated.
func Summarize(r Result) (Summary, error) {
	mean, err := MeanIoU(r.IoUs)
	if err != nil {
		return Summary{}, err
	}

	std := 0.0
	if len(r.IoUs) > 1 {
		std = stat.StdDev(r.IoUs, nil)
	}

	return Summary{
		Precision:   r.Precision,
		Recall:      r.Recall,
		MeanIoU:     mean,
		StdIoU:      std,
		TP:          r.TP,
		FP:          r.FP,
		FN:          r.FN,
		Predictions: len(r.IoUs),
	}, nil
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Precision: %.6f\n", s.Precision)
	fmt.Fprintf(&b, "Recall: %.6f\n", s.Recall)
	fmt.Fprintf(&b, "Average IoU: %.6f (std %.6f, n=%d)\n", s.MeanIoU, s.StdIoU, s.Predictions)
	fmt.Fprintf(&b, "TP/FP/FN: %d/%d/%d\n", s.TP, s.FP, s.FN)
	if s.Images > 0 {
		fmt.Fprintf(&b, "Images: %d\n", s.Images)
	}
	if s.Duration > 0 {
		fmt.Fprintf(&b, "Time: %s\n", s.Duration)
	}
	return b.String()
}
