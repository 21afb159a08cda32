// Package config loads the benchmark run configuration from YAML.
package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/pkg/log"
)

// Algorithm names accepted in ModelConfig.Algorithm.
const (
	DecisionTree       = "decision_tree"
	RandomForest       = "random_forest"
	LogisticRegression = "logistic_regression"
	SVC                = "svc"
	GaussianNB         = "gaussian_nb"
	KNN                = "knn"
	XGBoost            = "xgboost"
)

// Algorithms lists every supported algorithm.
var Algorithms = []string{DecisionTree, RandomForest, LogisticRegression, SVC, GaussianNB, KNN, XGBoost}

// Config captures one benchmark run.
type Config struct {
	Data            DataConfig     `yaml:"data"`
	Balance         BalanceConfig  `yaml:"balance"`
	Scale           ScaleConfig    `yaml:"scale"`
	Split           SplitConfig    `yaml:"split"`
	KNNSweep        SweepConfig    `yaml:"knn_sweep"`
	Models          []ModelConfig  `yaml:"models"`
	Artifact        ArtifactConfig `yaml:"artifact"`
	Report          ReportConfig   `yaml:"report"`
	Logging         LoggingConfig  `yaml:"logging"`
	IsolateFailures bool           `yaml:"isolate_failures"`
	NJobs           int            `yaml:"n_jobs"`
}

// DataConfig locates and describes the input CSV.
type DataConfig struct {
	Source      string `yaml:"source"`
	CachePath   string `yaml:"cache_path"`
	IDColumn    string `yaml:"id_column"`
	LabelColumn string `yaml:"label_column"`
}

// BalanceConfig controls SMOTE oversampling.
type BalanceConfig struct {
	KNeighbors  int    `yaml:"k_neighbors"`
	RandomState uint64 `yaml:"random_state"`
}

// ScaleConfig controls min-max scaling.
type ScaleConfig struct {
	FeatureRange [2]float64 `yaml:"feature_range"`
}

// SplitConfig controls the train/test partition.
type SplitConfig struct {
	TestSize    float64 `yaml:"test_size"`
	RandomState uint64  `yaml:"random_state"`
}

// SweepConfig is the neighbour range of the KNN diagnostic sweep. MaxK == 0
// disables the sweep.
type SweepConfig struct {
	MinK int `yaml:"min_k"`
	MaxK int `yaml:"max_k"`
}

// ModelConfig is one column of the comparison table.
type ModelConfig struct {
	Name      string                   `yaml:"name"`
	Algorithm string                   `yaml:"algorithm"`
	Params    map[string]interface{}   `yaml:"params"`
	Tune      bool                     `yaml:"tune"`
	Grid      map[string][]interface{} `yaml:"grid"`
	CV        int                      `yaml:"cv"`
	Scoring   string                   `yaml:"scoring"`
}

// ArtifactConfig selects the grid search persisted at the end of a run.
// An empty Model disables persistence.
type ArtifactConfig struct {
	Model string `yaml:"model"`
	Path  string `yaml:"path"`
}

// ReportConfig lists optional report outputs; empty paths are skipped.
type ReportConfig struct {
	CSVPath      string `yaml:"csv_path"`
	PlotDir      string `yaml:"plot_dir"`
	TextfilePath string `yaml:"textfile_path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads path over Default and applies environment overrides. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PDBENCH_CONFIG")
	}
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errors.Wrapf(err, "config file %s not found", path)
			}
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PDBENCH_DATA_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
	if v := os.Getenv("PDBENCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PDBENCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("PDBENCH_N_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NJobs = n
		}
	}
}

// Validate checks the configuration and returns a ConfigurationError for the
// first problem found.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Data.Source) == "":
		return errors.NewConfigurationError("data.source", "must not be empty", c.Data.Source)
	case c.Data.LabelColumn == "":
		return errors.NewConfigurationError("data.label_column", "must not be empty", c.Data.LabelColumn)
	case c.Balance.KNeighbors < 1:
		return errors.NewConfigurationError("balance.k_neighbors", "must be at least 1", c.Balance.KNeighbors)
	case !(c.Scale.FeatureRange[0] < c.Scale.FeatureRange[1]):
		return errors.NewConfigurationError("scale.feature_range", "min must be below max", c.Scale.FeatureRange)
	case !(c.Split.TestSize > 0 && c.Split.TestSize < 1):
		return errors.NewConfigurationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	case c.KNNSweep.MaxK != 0 && (c.KNNSweep.MinK < 1 || c.KNNSweep.MaxK < c.KNNSweep.MinK):
		return errors.NewConfigurationError("knn_sweep", "need 1 <= min_k <= max_k", c.KNNSweep)
	case len(c.Models) == 0:
		return errors.NewConfigurationError("models", "at least one model is required", nil)
	case c.NJobs < 0:
		return errors.NewConfigurationError("n_jobs", "must be non-negative", c.NJobs)
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Models))
	for i := range c.Models {
		m := &c.Models[i]
		if err := m.validate(); err != nil {
			return err
		}
		if seen[m.Name] {
			return errors.NewConfigurationError("models.name", "duplicate model name", m.Name)
		}
		seen[m.Name] = true
	}

	if c.Artifact.Model != "" {
		m := c.Model(c.Artifact.Model)
		if m == nil || !m.Tune {
			return errors.NewConfigurationError("artifact.model", "must name a tuned model", c.Artifact.Model)
		}
		if c.Artifact.Path == "" {
			return errors.NewConfigurationError("artifact.path", "must not be empty", c.Artifact.Path)
		}
	}
	return nil
}

func (m *ModelConfig) validate() error {
	if m.Name == "" {
		return errors.NewConfigurationError("models.name", "must not be empty", m.Name)
	}
	known := false
	for _, a := range Algorithms {
		known = known || a == m.Algorithm
	}
	if !known {
		return errors.NewConfigurationError("models."+m.Name+".algorithm",
			"must be one of "+strings.Join(Algorithms, ", "), m.Algorithm)
	}
	if !m.Tune {
		return nil
	}
	if len(m.Grid) == 0 {
		return errors.NewConfigurationError("models."+m.Name+".grid", "tuned model needs a grid", nil)
	}
	for k, values := range m.Grid {
		if len(values) == 0 {
			return errors.NewConfigurationError("models."+m.Name+".grid."+k, "parameter has no candidate values", values)
		}
	}
	if m.CV < 2 {
		return errors.NewConfigurationError("models."+m.Name+".cv", "must be at least 2", m.CV)
	}
	switch m.Scoring {
	case "", "accuracy", "f1", "precision", "recall":
	default:
		return errors.NewConfigurationError("models."+m.Name+".scoring",
			`must be one of "accuracy", "f1", "precision", "recall"`, m.Scoring)
	}
	return nil
}

// Model returns the model named name, or nil.
func (c *Config) Model(name string) *ModelConfig {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i]
		}
	}
	return nil
}
