package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nvr-ai/go-eval/benchmark"
	"github.com/nvr-ai/go-eval/dataset"
	"github.com/nvr-ai/go-eval/detector"
	"github.com/nvr-ai/go-eval/evaluation"
	"go.uber.org/zap"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to benchmark configuration file")
		scenarioFile = flag.String("scenarios", "", "Path to scenario configuration file")
		outputDir    = flag.String("output", "", "Output directory for results (overrides config)")
		annotations  = flag.String("annotations", "", "Path to COCO annotations JSON")
		predictions  = flag.String("predictions", "", "Path to recorded predictions JSON")
		category     = flag.String("category", "", "Category whose images are evaluated")
		prefix       = flag.String("prefix", "", "Directory prepended to image file names")
		thresholds   = flag.String("thresholds", "", "Comma separated IoU thresholds to sweep")
		quick        = flag.Bool("quick", false, "Run quick evaluation scenarios")
		timeout      = flag.Duration("timeout", 0, "Run timeout (overrides config)")
		verbose      = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	config := benchmark.DefaultConfig()
	if *configFile != "" {
		config, err = benchmark.LoadConfig(*configFile)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
	}
	override(&config.OutputDir, *outputDir)
	override(&config.AnnotationsPath, *annotations)
	override(&config.PredictionsPath, *predictions)
	override(&config.Category, *category)
	override(&config.PathPrefix, *prefix)
	if *timeout > 0 {
		config.TimeoutSeconds = int(timeout.Seconds())
	}

	if config.AnnotationsPath == "" || config.PredictionsPath == "" || config.Category == "" {
		logger.Fatal("annotations (-annotations), predictions (-predictions) and category (-category) are required")
	}

	store, err := dataset.Load(config.AnnotationsPath)
	if err != nil {
		logger.Fatal("failed to load annotations", zap.Error(err))
	}
	store.PathPrefix = config.PathPrefix

	recorded, err := detector.LoadPredictions(config.PredictionsPath)
	if err != nil {
		logger.Fatal("failed to load predictions", zap.Error(err))
	}
	det, err := detector.NewFileDetector(recorded)
	if err != nil {
		logger.Fatal("invalid predictions", zap.Error(err))
	}
	det.AllowMissing = config.AllowMissing

	suite := benchmark.NewSuite(benchmark.NewSuiteArgs{
		Category:   config.Category,
		Source:     store,
		Detector:   det,
		OutputPath: config.OutputDir,
		Logger:     logger,
	})

	predefined := &benchmark.PredefinedScenarios{}
	base := evaluation.DefaultConfig()

	if *scenarioFile != "" {
		scenarioSet, err := benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			logger.Fatal("failed to load scenario file", zap.Error(err))
		}
		suite.AddScenarioSet(scenarioSet)
		logger.Info("loaded scenarios", zap.Int("count", len(scenarioSet.Scenarios)), zap.String("file", *scenarioFile))
	}

	if *thresholds != "" {
		values, err := parseThresholds(*thresholds)
		if err != nil {
			logger.Fatal("invalid -thresholds", zap.Error(err))
		}
		suite.AddScenarioSet(predefined.GetThresholdSweepScenarios(base, values...))
	}

	if *quick || len(suite.Scenarios()) == 0 {
		suite.AddScenarioSet(predefined.GetQuickScenarios(base))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.TimeoutSeconds)*time.Second)
	defer cancel()

	logger.Info("starting evaluation", zap.Int("scenarios", len(suite.Scenarios())))
	start := time.Now()

	if err := suite.RunAllScenarios(ctx); err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}

	results := suite.GetResults()
	fmt.Printf("\n=== EVALUATION RESULTS SUMMARY ===\n")
	fmt.Printf("Total scenarios: %d (%v)\n", len(results), time.Since(start))
	fmt.Printf("Results saved to: %s\n", config.OutputDir)

	var bestF1 float64
	var bestScenario string
	for _, result := range results {
		s := result.Summary
		if result.Error != "" {
			fmt.Printf("  %s: %s\n", result.Scenario.Name, result.Error)
			continue
		}
		f1 := 0.0
		if s.Precision+s.Recall > 0 {
			f1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		if f1 > bestF1 {
			bestF1 = f1
			bestScenario = result.Scenario.Name
		}
		fmt.Printf("  %s: precision %.4f, recall %.4f, IoU %.4f\n",
			result.Scenario.Name, s.Precision, s.Recall, s.MeanIoU)
	}

	if bestScenario != "" {
		fmt.Printf("\nBest scenario: %s (F1 %.4f)\n", bestScenario, bestF1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func parseThresholds(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Compares evaluation configurations on one dataset.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(
			os.Stderr,
			"  %s -annotations ./instances_val.json -predictions ./preds.json -category trash -quick\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -config ./benchmark.yaml -scenarios ./scale_scenarios.json\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -config ./benchmark.yaml -thresholds 0.5,0.75,0.9\n",
			filepath.Base(os.Args[0]),
		)
	}
}
