package main

import (
	"fmt"
	"log"

	"github.com/nvr-ai/go-eval/benchmark"
	"github.com/nvr-ai/go-eval/evaluation"
	"github.com/nvr-ai/go-eval/models"
)

// Example program to create and save evaluation scenarios
func main() {
	predefined := &benchmark.PredefinedScenarios{}

	// TrashCAN: the detector's "trash" class covers every fine-grained trash label.
	base := evaluation.DefaultConfig()
	base.ClassMap = models.ClassMap{0: 8}
	base.ExcludeIDs = []int{1}

	quick := predefined.GetQuickScenarios(base)
	if err := benchmark.SaveScenarioSet(quick, "quick_scenarios.json"); err != nil {
		log.Fatalf("Failed to save quick scenarios: %v", err)
	}
	fmt.Printf("Saved %d quick scenarios\n", len(quick.Scenarios))

	sweep := predefined.GetThresholdSweepScenarios(base, 0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95)
	if err := benchmark.SaveScenarioSet(sweep, "threshold_scenarios.yaml"); err != nil {
		log.Fatalf("Failed to save threshold scenarios: %v", err)
	}
	fmt.Printf("Saved %d threshold scenarios\n", len(sweep.Scenarios))

	scales := predefined.GetScaleComparisonScenarios(base, map[string]float64{
		"bicubic": 2,
		"lanczos": 4,
		"edsr":    4,
	})
	if err := benchmark.SaveScenarioSet(scales, "scale_scenarios.json"); err != nil {
		log.Fatalf("Failed to save scale scenarios: %v", err)
	}
	fmt.Printf("Saved %d scale scenarios\n", len(scales.Scenarios))

	merge := predefined.GetMergeComparisonScenarios(base, 8, 8, 9, 10, 11, 12, 13, 14, 15, 16)
	if err := benchmark.SaveScenarioSet(merge, "merge_scenarios.json"); err != nil {
		log.Fatalf("Failed to save merge scenarios: %v", err)
	}
	fmt.Printf("Saved %d merge scenarios\n", len(merge.Scenarios))

	// Custom scenario using builder
	custom := benchmark.NewScenarioBuilder("custom_strict_x4").
		WithDescription("Strict IoU on x4 super-resolved frames").
		From(base).
		WithIoUThreshold(0.75).
		WithScale(4, 4).
		WithWorkers(4).
		Build()

	customSet := &benchmark.ScenarioSet{
		Name:        "Custom Strict x4",
		Description: "Strict IoU threshold on x4 upsampled images",
		Scenarios:   []benchmark.Scenario{custom},
	}
	if err := benchmark.SaveScenarioSet(customSet, "custom_scenarios.json"); err != nil {
		log.Fatalf("Failed to save custom scenarios: %v", err)
	}
	fmt.Printf("Saved %d custom scenarios\n", len(customSet.Scenarios))

	fmt.Println("All scenario files created successfully!")
}
