// Command evaluate scores recorded detections against COCO annotations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/nvr-ai/go-eval/dataset"
	"github.com/nvr-ai/go-eval/detector"
	"github.com/nvr-ai/go-eval/evaluation"
	"github.com/nvr-ai/go-eval/models"
	"go.uber.org/zap"
)

func main() {
	var (
		annotations  = flag.String("annotations", "", "Path to COCO annotations JSON")
		predictions  = flag.String("predictions", "", "Path to recorded predictions JSON")
		category     = flag.String("category", "", "Category whose images are evaluated")
		configFile   = flag.String("config", "", "Path to evaluation config (YAML or JSON)")
		prefix       = flag.String("prefix", "", "Directory prepended to image file names")
		workers      = flag.Int("workers", 0, "Matching goroutines (overrides config)")
		exclude      = flag.String("exclude", "", "Comma separated category names dropped before matching")
		mapByName    = flag.Bool("map-by-name", false, "Map predicted classes onto categories with the same name")
		allowMissing = flag.Bool("allow-missing", false, "Treat images without recorded predictions as empty")
		verbose      = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if *annotations == "" || *predictions == "" || *category == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := evaluation.DefaultConfig()
	if *configFile != "" {
		cfg, err = evaluation.LoadConfig(*configFile)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	store, err := dataset.Load(*annotations)
	if err != nil {
		logger.Fatal("failed to load annotations", zap.Error(err))
	}
	store.PathPrefix = *prefix

	recorded, err := detector.LoadPredictions(*predictions)
	if err != nil {
		logger.Fatal("failed to load predictions", zap.Error(err))
	}
	det, err := detector.NewFileDetector(recorded)
	if err != nil {
		logger.Fatal("invalid predictions", zap.Error(err))
	}
	det.AllowMissing = *allowMissing

	classes := models.NewClassManager(store.ClassSet(models.TaxonomyEvaluation))

	if *mapByName {
		predicted := det.ClassSet(models.TaxonomyPredicted)
		if predicted == nil {
			logger.Fatal("-map-by-name needs categories in the predictions file")
		}
		classes.Register(predicted)
		byName, err := classes.ClassMapByName(models.TaxonomyPredicted, models.TaxonomyEvaluation)
		if err != nil {
			logger.Fatal("failed to map classes", zap.Error(err))
		}
		// Explicit id_map entries win over name matches.
		for k, v := range cfg.ClassMap {
			byName[k] = v
		}
		cfg.ClassMap = byName
		logger.Debug("class map", zap.Any("id_map", cfg.ClassMap))
	}

	if *exclude != "" {
		ids, err := classes.Indices(models.TaxonomyEvaluation, strings.Split(*exclude, ",")...)
		if err != nil {
			logger.Fatal("invalid -exclude", zap.Error(err))
		}
		cfg.ExcludeIDs = append(cfg.ExcludeIDs, ids...)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := evaluation.EvaluateModel(ctx, *category, store, det, cfg, evaluation.WithLogger(logger))
	if err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}

	fmt.Println(summary.String())
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Scores recorded detections against COCO annotations.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(
			os.Stderr,
			"  %s -annotations ./instances_val.json -predictions ./preds.json -category trash -config ./eval.yaml\n",
			filepath.Base(os.Args[0]),
		)
	}
}
