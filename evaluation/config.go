// Package evaluation - Greedy IoU matching of predicted against ground-truth boxes and the
// precision, recall and mean IoU derived from it.
package evaluation

import (
	"math"
	"os"

	"github.com/nvr-ai/go-eval/models"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Epsilon keeps precision and recall finite when every count is zero.
const Epsilon = 1e-6

// NoLimit disables the image limit.
const NoLimit = -1

// Config enumerates every recognized evaluation option.
//
// It is validated once at the entry points (Match, Evaluate, EvaluateRaw,
// EvaluateModel), never re-checked per image.
type Config struct {
	// IoUThreshold is the minimum IoU for a prediction to count as a true positive.
	IoUThreshold float64 `json:"iou_threshold" yaml:"iou_threshold"`

	// ClassMap translates predicted class indices into the evaluation taxonomy.
	ClassMap models.ClassMap `json:"id_map" yaml:"id_map"`

	// Merge lets one coarse predicted class match several fine truth classes.
	Merge models.MergeRule `json:"merge" yaml:"merge"`

	// ExcludeIDs lists truth classes dropped before matching. They are never
	// matched and never counted as false negatives.
	ExcludeIDs []int `json:"exclude_ids" yaml:"exclude_ids"`

	// XScale and YScale rescale truth coordinates onto the detector's image
	// resolution, e.g. after super-resolution.
	XScale float64 `json:"x_scale" yaml:"x_scale"`
	YScale float64 `json:"y_scale" yaml:"y_scale"`

	// Limit caps the number of images evaluated. NoLimit (-1) evaluates all.
	Limit int `json:"n" yaml:"n"`

	// Workers is the number of goroutines matching images concurrently.
	// Values <= 1 evaluate sequentially. Results are identical either way.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns the evaluation defaults: IoU 0.5, no class mapping,
// no merge rule, no exclusions, unit scales and no image limit.
func DefaultConfig() Config {
	return Config{
		IoUThreshold: 0.5,
		ClassMap:     models.ClassMap{},
		ExcludeIDs:   []int{},
		XScale:       1.0,
		YScale:       1.0,
		Limit:        NoLimit,
		Workers:      1,
	}
}

// Validate checks every option range.
//
// Returns:
//   - error: A *ValidationError naming the first offending option, nil otherwise.
func (c Config) Validate() error {
	if math.IsNaN(c.IoUThreshold) || c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return invalid("iou_threshold", "%v is outside [0, 1]", c.IoUThreshold)
	}
	if !positiveFinite(c.XScale) {
		return invalid("x_scale", "%v must be a positive finite number", c.XScale)
	}
	if !positiveFinite(c.YScale) {
		return invalid("y_scale", "%v must be a positive finite number", c.YScale)
	}
	if c.Limit < NoLimit {
		return invalid("n", "%d must be -1 (no limit) or non-negative", c.Limit)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// LoadConfig reads a YAML (or JSON) configuration file. Keys absent from the
// file keep their DefaultConfig values.
//
// Arguments:
//   - path: The configuration file path.
//
// Returns:
//   - Config: The validated configuration.
//   - error: If the file cannot be read, parsed or validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// excludedSet indexes ExcludeIDs for per-box lookups.
func (c Config) excludedSet() map[int]struct{} {
	set := make(map[int]struct{}, len(c.ExcludeIDs))
	for _, id := range c.ExcludeIDs {
		set[id] = struct{}{}
	}
	return set
}
