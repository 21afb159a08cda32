package config

import "github.com/YuminosukeSato/pdbench/dataset"

// Default returns the reference benchmark: the UCI dataset balanced with
// SMOTE(k=5, seed 300), scaled to [-1, 1], split 80/20 with seed 20 and the
// seven model families with their reference grids.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source:      dataset.DefaultSource,
			CachePath:   "data.csv",
			IDColumn:    dataset.DefaultOptions().IDColumn,
			LabelColumn: dataset.DefaultOptions().LabelColumn,
		},
		Balance:  BalanceConfig{KNeighbors: 5, RandomState: 300},
		Scale:    ScaleConfig{FeatureRange: [2]float64{-1, 1}},
		Split:    SplitConfig{TestSize: 0.2, RandomState: 20},
		KNNSweep: SweepConfig{MinK: 2, MaxK: 9},
		Models:   DefaultModels(),
		Artifact: ArtifactConfig{Model: "XGB", Path: "SVM_model.gob"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// DefaultModels returns the reference model list in table order.
func DefaultModels() []ModelConfig {
	return []ModelConfig{
		{
			Name:      "DT",
			Algorithm: DecisionTree,
			Tune:      true,
			Grid: map[string][]interface{}{
				"max_features": {"sqrt", "log2"},
				"max_depth":    intRange(1, 10, 1),
				"random_state": intRange(30, 210, 30),
				"criterion":    {"gini", "entropy"},
			},
			CV:      5,
			Scoring: "accuracy",
		},
		{
			Name:      "RF",
			Algorithm: RandomForest,
			Tune:      true,
			Grid: map[string][]interface{}{
				"n_estimators": intRange(100, 300, 25),
				"max_features": {"sqrt", "log2"},
				"max_depth":    intRange(1, 10, 1),
				"random_state": intRange(100, 250, 50),
				"criterion":    {"gini", "entropy"},
			},
			CV:      5,
			Scoring: "accuracy",
		},
		{
			Name:      "LR",
			Algorithm: LogisticRegression,
			Grid: map[string][]interface{}{
				"C": {0.01, 0.1, 1.0, 10.0, 100.0},
			},
			CV: 5,
		},
		{
			Name:      "SVM",
			Algorithm: SVC,
			Params:    map[string]interface{}{"kernel": "linear"},
			Tune:      true,
			Grid: map[string][]interface{}{
				"kernel": {"linear", "rbf", "poly"},
				"C":      {0.5, 1.0, 10.0, 100.0},
				"gamma":  {1.0, 0.1, 0.01, 0.001, 0.0001},
			},
			CV:      5,
			Scoring: "f1",
		},
		{
			Name:      "NB",
			Algorithm: GaussianNB,
			Grid: map[string][]interface{}{
				"var_smoothing": {1e-9, 1e-8, 1e-7},
			},
			CV: 5,
		},
		{
			Name:      "KNN",
			Algorithm: KNN,
			Params:    map[string]interface{}{"n_neighbors": 5},
			Grid: map[string][]interface{}{
				"n_neighbors": intRange(2, 10, 1),
			},
			CV: 5,
		},
		{
			Name:      "XGB",
			Algorithm: XGBoost,
			Tune:      true,
			Grid: map[string][]interface{}{
				"max_depth":    intRange(4, 8, 1),
				"eta":          {0.1, 0.2, 0.3, 0.4, 0.5},
				"reg_lambda":   {0.8, 0.9, 1.0, 1.1, 1.2},
				"random_state": {300, 600, 900},
			},
			CV:      3,
			Scoring: "f1",
		},
	}
}

// intRange returns start, start+step, ... below stop.
func intRange(start, stop, step int) []interface{} {
	var out []interface{}
	for v := start; v < stop; v += step {
		out = append(out, v)
	}
	return out
}
