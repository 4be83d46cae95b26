package evaluation

import (
	"sync"

	"github.com/nvr-ai/go-eval/models/postprocess"
	"go.uber.org/zap"
)

// Result is the dataset-level outcome: folded counts plus the derived metrics.
type Result struct {
	Counts
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// PrecisionRecall derives precision and recall with Epsilon in both
// denominators, so all-zero counts give 0 rather than a division fault.
func PrecisionRecall(tp, fp, fn int) (float64, float64) {
	t := float64(tp)
	return t / (t + float64(fp) + Epsilon), t / (t + float64(fn) + Epsilon)
}

// NewResult derives precision and recall from folded counts. Use it to
// finish shards that were combined with Counts.Add.
func NewResult(c Counts) Result {
	p, r := PrecisionRecall(c.TP, c.FP, c.FN)
	return Result{Counts: c, Precision: p, Recall: r}
}

// Option configures optional evaluation behaviour.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger routes evaluation logs to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate matches every image pair and derives precision and recall.
//
// Detections and annotations are paired by position. The pair count is the
// shorter of the two sequences, further capped by cfg.Limit when it is not
// NoLimit. A length mismatch is not an error.
//
// Arguments:
//   - detections: Predicted boxes, one Detection per image.
//   - annotations: Ground truth, one Annotation per image.
//   - cfg: The evaluation options.
//   - opts: Optional logger.
//
// Returns:
//   - Result: Folded counts, IoUs in image then prediction order, precision and recall.
//   - error: A *ValidationError for an invalid config or malformed box.
func Evaluate(
	detections []postprocess.Detection,
	annotations []postprocess.Annotation,
	cfg Config,
	opts ...Option,
) (Result, error) {
	counts, err := EvaluateRaw(detections, annotations, cfg, opts...)
	if err != nil {
		return Result{}, err
	}
	return NewResult(counts), nil
}

// EvaluateRaw is Evaluate without the derived metrics, for callers that fold
// shards themselves with Counts.Add.
func EvaluateRaw(
	detections []postprocess.Detection,
	annotations []postprocess.Annotation,
	cfg Config,
	opts ...Option,
) (Counts, error) {
	if err := cfg.Validate(); err != nil {
		return Counts{}, err
	}
	o := buildOptions(opts)

	n := pairCount(len(detections), len(annotations), cfg.Limit)
	for i := 0; i < n; i++ {
		if err := validateImage(i, detections[i], annotations[i]); err != nil {
			return Counts{}, err
		}
	}

	var perImage []Counts
	if cfg.Workers > 1 && n > 1 {
		perImage = matchParallel(detections[:n], annotations[:n], cfg)
	} else {
		perImage = matchSequential(detections[:n], annotations[:n], cfg)
	}

	total := Merge(perImage...)

	o.logger.Debug("evaluated images",
		zap.Int("images", n),
		zap.Int("skipped", max(len(detections), len(annotations))-n),
		zap.Int("workers", max(cfg.Workers, 1)),
		zap.Int("tp", total.TP),
		zap.Int("fp", total.FP),
		zap.Int("fn", total.FN),
	)
	return total, nil
}

func pairCount(detections, annotations, limit int) int {
	n := min(detections, annotations)
	if limit >= 0 && limit < n {
		n = limit
	}
	return n
}

func matchSequential(detections []postprocess.Detection, annotations []postprocess.Annotation, cfg Config) []Counts {
	m := newMatcher(cfg)
	out := make([]Counts, len(detections))
	for i := range detections {
		out[i] = m.match(detections[i], annotations[i])
	}
	return out
}

// matchParallel spreads images over cfg.Workers goroutines. Each worker
// writes only its own slots, and the caller folds them in image order.
func matchParallel(detections []postprocess.Detection, annotations []postprocess.Annotation, cfg Config) []Counts {
	m := newMatcher(cfg)
	out := make([]Counts, len(detections))

	jobs := make(chan int, len(detections))
	for i := range detections {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < min(cfg.Workers, len(detections)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = m.match(detections[i], annotations[i])
			}
		}()
	}
	wg.Wait()

	return out
}

// Merge folds independently computed shards in the order given.
func Merge(shards ...Counts) Counts {
	total := Counts{IoUs: make([]float64, 0)}
	for _, s := range shards {
		total.Add(s)
	}
	return total
}
