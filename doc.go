// Package pdbench benchmarks binary classifiers on the UCI Parkinson's
// voice-measurement dataset.
//
// A run loads the CSV (downloading and caching it when the source is a URL),
// balances the classes with SMOTE, scales every feature into [-1, 1] and
// holds out a stratification-free test split. Seven classifiers are then
// fitted with their configured hyperparameters, four of them are optionally
// tuned with grid search cross-validation, and every model is scored on the
// held-out split:
//
//	Accuracy  F1-Score  Recall  Precision  R2-Score
//
// The scores are gathered into one table with a column per model.
//
// # Packages
//
//   - dataset: CSV loading, duplicate-row removal and download caching
//   - sampling: SMOTE oversampling
//   - preprocessing: min-max scaling
//   - model_selection: train/test split, k-fold and grid search
//   - sklearn/...: the classifiers (tree, ensemble, linear_model, svm,
//     naive_bayes, neighbors, boosting)
//   - metrics: classification metrics, ROC and AUC
//   - report: comparison table, plots and Prometheus textfile export
//   - pipeline: the end-to-end run and the persisted grid-search artifact
//   - config: YAML configuration with environment overrides
//
// # Quick Start
//
//	cfg := config.Default()
//	res, err := pipeline.Run(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	res.Table.Render(os.Stdout)
//
// The pdbench command in cmd/pdbench wraps the same call.
package pdbench
