package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/nvr-ai/go-eval/evaluation"
	"github.com/nvr-ai/go-eval/models"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario is one named evaluation configuration.
type Scenario struct {
	Name        string            `json:"name"                  yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Config      evaluation.Config `json:"config"                yaml:"config"`
}

// UnmarshalJSON decodes a scenario over evaluation.DefaultConfig so omitted
// options keep their defaults.
func (s *Scenario) UnmarshalJSON(data []byte) error {
	type plain Scenario
	p := plain{Config: evaluation.DefaultConfig()}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Scenario(p)
	return nil
}

// UnmarshalYAML decodes a scenario over evaluation.DefaultConfig so omitted
// options keep their defaults.
func (s *Scenario) UnmarshalYAML(node *yaml.Node) error {
	type plain Scenario
	p := plain{Config: evaluation.DefaultConfig()}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Scenario(p)
	return nil
}

// Validate checks the scenario has a name and a valid configuration.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	return errors.Wrapf(s.Config.Validate(), "scenario %s", s.Name)
}

// ScenarioBuilder helps build scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder starting from the
// evaluation defaults.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:   name,
			Config: evaluation.DefaultConfig(),
		},
	}
}

// From replaces the configuration built so far with a copy of cfg.
func (sb *ScenarioBuilder) From(cfg evaluation.Config) *ScenarioBuilder {
	sb.scenario.Config = cloneConfig(cfg)
	return sb
}

// WithDescription sets the description
func (sb *ScenarioBuilder) WithDescription(description string) *ScenarioBuilder {
	sb.scenario.Description = description
	return sb
}

// WithIoUThreshold sets the true positive IoU threshold
func (sb *ScenarioBuilder) WithIoUThreshold(threshold float64) *ScenarioBuilder {
	sb.scenario.Config.IoUThreshold = threshold
	return sb
}

// WithScale sets the truth rescaling factors
func (sb *ScenarioBuilder) WithScale(x, y float64) *ScenarioBuilder {
	sb.scenario.Config.XScale = x
	sb.scenario.Config.YScale = y
	return sb
}

// WithClassMap sets the predicted to evaluation class mapping
func (sb *ScenarioBuilder) WithClassMap(m models.ClassMap) *ScenarioBuilder {
	sb.scenario.Config.ClassMap = m
	return sb
}

// WithMerge enables the coarse/fine merge rule
func (sb *ScenarioBuilder) WithMerge(one int, many ...int) *ScenarioBuilder {
	sb.scenario.Config.Merge = models.NewMergeRule(one, many...)
	return sb
}

// WithExcludeIDs sets the truth classes dropped before matching
func (sb *ScenarioBuilder) WithExcludeIDs(ids ...int) *ScenarioBuilder {
	sb.scenario.Config.ExcludeIDs = ids
	return sb
}

// WithLimit caps the number of evaluated images
func (sb *ScenarioBuilder) WithLimit(n int) *ScenarioBuilder {
	sb.scenario.Config.Limit = n
	return sb
}

// WithWorkers sets the number of matching goroutines
func (sb *ScenarioBuilder) WithWorkers(workers int) *ScenarioBuilder {
	sb.scenario.Config.Workers = workers
	return sb
}

// Build returns the configured scenario
func (sb *ScenarioBuilder) Build() Scenario {
	s := sb.scenario
	s.Config = cloneConfig(s.Config)
	return s
}

func cloneConfig(cfg evaluation.Config) evaluation.Config {
	out := cfg
	out.ClassMap = make(models.ClassMap, len(cfg.ClassMap))
	for k, v := range cfg.ClassMap {
		out.ClassMap[k] = v
	}
	out.ExcludeIDs = append([]int{}, cfg.ExcludeIDs...)
	if cfg.Merge.One != nil {
		out.Merge = models.NewMergeRule(*cfg.Merge.One, append([]int(nil), cfg.Merge.Many...)...)
	}
	return out
}

// ScenarioSet represents a collection of related scenarios
type ScenarioSet struct {
	Name        string     `json:"name"        yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios"   yaml:"scenarios"`
}

// PredefinedScenarios contains common scenario sets
type PredefinedScenarios struct{}

// GetQuickScenarios scores base at the two customary IoU thresholds.
func (ps *PredefinedScenarios) GetQuickScenarios(base evaluation.Config) *ScenarioSet {
	set := ps.GetThresholdSweepScenarios(base, 0.5, 0.75)
	set.Name = "Quick Evaluation"
	set.Description = "IoU 0.50 and 0.75 on the base configuration"
	return set
}

// GetThresholdSweepScenarios varies the IoU threshold of base.
func (ps *PredefinedScenarios) GetThresholdSweepScenarios(base evaluation.Config, thresholds ...float64) *ScenarioSet {
	scenarios := make([]Scenario, 0, len(thresholds))
	for _, t := range thresholds {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("iou_%.2f", t)).
			From(base).
			WithIoUThreshold(t).
			Build())
	}

	return &ScenarioSet{
		Name:        "IoU Threshold Sweep",
		Description: "Compares true positive IoU thresholds on one configuration",
		Scenarios:   scenarios,
	}
}

// GetScaleComparisonScenarios evaluates base once per upsampling factor,
// keyed by technique name. Scenarios are ordered by name.
func (ps *PredefinedScenarios) GetScaleComparisonScenarios(base evaluation.Config, factors map[string]float64) *ScenarioSet {
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	scenarios := make([]Scenario, 0, len(names))
	for _, name := range names {
		f := factors[name]
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("scale_%s", name)).
			WithDescription(fmt.Sprintf("%s upsampling, factor %g", name, f)).
			From(base).
			WithScale(f, f).
			Build())
	}

	return &ScenarioSet{
		Name:        "Upsampling Comparison",
		Description: "Compares detections on images upsampled by different techniques",
		Scenarios:   scenarios,
	}
}

// GetMergeComparisonScenarios evaluates base with and without a merge rule.
func (ps *PredefinedScenarios) GetMergeComparisonScenarios(base evaluation.Config, one int, many ...int) *ScenarioSet {
	off := NewScenarioBuilder("merge_off").From(base).Build()
	off.Config.Merge = models.MergeRule{}

	on := NewScenarioBuilder("merge_on").
		WithDescription(fmt.Sprintf("class %d matches %v", one, many)).
		From(base).
		WithMerge(one, many...).
		Build()

	return &ScenarioSet{
		Name:        "Merge Rule Comparison",
		Description: "Compares a coarse class scored strictly and merged with its fine classes",
		Scenarios:   []Scenario{off, on},
	}
}

// SaveScenarioSet saves a scenario set as JSON, or YAML for a .yaml/.yml file.
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(scenarioSet)
	} else {
		data, err = json.MarshalIndent(scenarioSet, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scenario file")
	}

	return nil
}

// LoadScenarioSet loads and validates a scenario set written by SaveScenarioSet.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	var scenarioSet ScenarioSet
	if isYAML(filename) {
		err = yaml.Unmarshal(data, &scenarioSet)
	} else {
		err = json.Unmarshal(data, &scenarioSet)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal scenario set %s", filename)
	}

	for _, s := range scenarioSet.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return &scenarioSet, nil
}

func isYAML(filename string) bool {
	ext := filepath.Ext(filename)
	return ext == ".yaml" || ext == ".yml"
}

// Config represents the overall benchmark configuration
type Config struct {
	OutputDir       string `json:"output_dir"       yaml:"output_dir"`
	AnnotationsPath string `json:"annotations_path" yaml:"annotations_path"`
	PredictionsPath string `json:"predictions_path" yaml:"predictions_path"`
	Category        string `json:"category"         yaml:"category"`
	PathPrefix      string `json:"path_prefix"      yaml:"path_prefix"`
	AllowMissing    bool   `json:"allow_missing"    yaml:"allow_missing"`
	TimeoutSeconds  int    `json:"timeout_seconds"  yaml:"timeout_seconds"`
}

// DefaultConfig returns a default benchmark configuration
func DefaultConfig() *Config {
	return &Config{
		OutputDir:      "./benchmark_results",
		TimeoutSeconds: 3600, // 1 hour
	}
}

// SaveConfig saves the benchmark configuration to a JSON file
func (c *Config) SaveConfig(filename string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// LoadConfig loads benchmark configuration from a YAML or JSON file over the
// defaults.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return config, nil
}
