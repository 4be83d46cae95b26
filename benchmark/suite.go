package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/nvr-ai/go-eval/detector"
	"github.com/nvr-ai/go-eval/evaluation"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Suite manages and executes evaluation scenarios against one dataset and
// one detector.
type Suite struct {
	scenarios []Scenario
	source    evaluation.AnnotationSource
	detector  detector.Detector
	category  string
	outputDir string
	logger    *zap.Logger
	mu        sync.RWMutex
	results   []ScenarioResult
}

// NewSuiteArgs represents the arguments for creating a new suite.
type NewSuiteArgs struct {
	// Category selects the images evaluated.
	Category string
	// Source provides image paths and ground truth.
	Source evaluation.AnnotationSource
	// Detector produces the predictions.
	Detector detector.Detector
	// OutputPath is where SaveResults writes. Empty disables saving.
	OutputPath string
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// NewSuite creates a new suite.
//
// Arguments:
//   - args: The arguments for creating a new suite.
//
// Returns:
//   - *Suite: The suite.
func NewSuite(args NewSuiteArgs) *Suite {
	logger := args.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{
		source:    args.Source,
		detector:  args.Detector,
		category:  args.Category,
		outputDir: args.OutputPath,
		logger:    logger,
		scenarios: make([]Scenario, 0),
		results:   make([]ScenarioResult, 0),
	}
}

// AddScenario adds a scenario to the suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// AddScenarioSet adds every scenario of a set
func (bs *Suite) AddScenarioSet(set *ScenarioSet) {
	for _, s := range set.Scenarios {
		bs.AddScenario(s)
	}
}

// Scenarios returns the configured scenarios in insertion order
func (bs *Suite) Scenarios() []Scenario {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return append([]Scenario(nil), bs.scenarios...)
}

// RunScenario evaluates the detector under a single scenario.
//
// A scenario with no predictions at all has no mean IoU; it is reported with
// Error set rather than failing the run.
//
// Returns:
//   - *ScenarioResult: The scores, timing and memory statistics.
//   - error: If the scenario is invalid, or loading or detection fails.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*ScenarioResult, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	result := &ScenarioResult{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	var startMem runtime.MemStats
	runtime.ReadMemStats(&startMem)
	start := time.Now()

	summary, err := evaluation.EvaluateModel(
		ctx,
		bs.category,
		bs.source,
		bs.detector,
		scenario.Config,
		evaluation.WithLogger(bs.logger.With(zap.String("scenario", scenario.Name))),
	)
	switch {
	case errors.Is(err, evaluation.ErrEmptyResult):
		result.Error = err.Error()
	case err != nil:
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}

	result.TotalDuration = time.Since(start)
	result.Summary = summary

	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)
	result.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
	}

	return result, nil
}

// RunAllScenarios executes every configured scenario in order, then saves the
// results when an output path is set. A failing scenario is logged and
// skipped; cancellation stops the run.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	for _, scenario := range bs.Scenarios() {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			bs.logger.Warn("scenario failed", zap.String("scenario", scenario.Name), zap.Error(err))
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *result)
		bs.mu.Unlock()

		bs.logger.Info("scenario completed",
			zap.String("scenario", scenario.Name),
			zap.Float64("precision", result.Summary.Precision),
			zap.Float64("recall", result.Summary.Recall),
			zap.Float64("iou", result.Summary.MeanIoU),
		)
	}

	if bs.outputDir == "" {
		return nil
	}
	return bs.SaveResults()
}

// SaveResults writes the results as JSON plus a CSV summary into the output
// directory, both stamped with the current time.
func (bs *Suite) SaveResults() error {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("evaluation_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}

	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("evaluation_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return errors.Wrap(err, "failed to save summary CSV")
	}

	bs.logger.Info("results saved", zap.String("results", resultsFile), zap.String("summary", summaryFile))
	return nil
}

var summaryHeader = []string{
	"Scenario", "IoU_Threshold", "X_Scale", "Y_Scale", "Precision", "Recall",
	"Mean_IoU", "TP", "FP", "FN", "Images", "Duration_ms", "Error",
}

func saveSummaryCSV(filename string, results []ScenarioResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(summaryHeader); err != nil {
		return err
	}

	for _, r := range results {
		s := r.Summary
		row := []string{
			r.Scenario.Name,
			formatFloat(r.Scenario.Config.IoUThreshold),
			formatFloat(r.Scenario.Config.XScale),
			formatFloat(r.Scenario.Config.YScale),
			formatFloat(s.Precision),
			formatFloat(s.Recall),
			formatFloat(s.MeanIoU),
			strconv.Itoa(s.TP),
			strconv.Itoa(s.FP),
			strconv.Itoa(s.FN),
			strconv.Itoa(s.Images),
			fmt.Sprintf("%.2f", float64(r.TotalDuration.Nanoseconds())/1e6),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// GetResults returns all scenario results
func (bs *Suite) GetResults() []ScenarioResult {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]ScenarioResult, len(bs.results))
	copy(results, bs.results)
	return results
}
