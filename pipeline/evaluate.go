package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/metrics"
	"github.com/YuminosukeSato/pdbench/model_selection"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/pkg/log"
	"github.com/YuminosukeSato/pdbench/report"
	"github.com/YuminosukeSato/pdbench/sklearn/neighbors"
)

// Evaluate scores a fitted model on held-out data. ROC and AUC use column 1
// of PredictProba when the model is probabilistic and the hard predicted
// labels otherwise; Report.ScoreSource records which.
func Evaluate(m model.Classifier, X mat.Matrix, y []int) (metrics.Report, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return metrics.Report{}, errors.Wrap(err, "predict")
	}
	var scores []float64
	if p, ok := m.(model.ProbabilisticClassifier); ok {
		proba, err := p.PredictProba(X)
		if err != nil {
			return metrics.Report{}, errors.Wrap(err, "predict proba")
		}
		scores = mat.Col(nil, 1, proba)
	}
	return metrics.NewReport(y, pred, scores)
}

// KNNSweep fits a uniform k-nearest-neighbours classifier for every k in
// [minK, maxK] on the training split and records its test accuracy.
func KNNSweep(split *model_selection.Split, minK, maxK, nJobs int) ([]report.SweepPoint, error) {
	if minK < 1 || maxK < minK {
		return nil, errors.NewConfigurationError("knn_sweep", "need 1 <= min_k <= max_k", [2]int{minK, maxK})
	}
	logger := log.GetLoggerWithName("pipeline")
	sweep := make([]report.SweepPoint, 0, maxK-minK+1)
	for k := minK; k <= maxK; k++ {
		knn := neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(k), neighbors.WithNJobs(nJobs))
		if err := knn.Fit(split.XTrain, split.YTrain); err != nil {
			return nil, errors.Wrapf(err, "knn sweep k=%d", k)
		}
		pred, err := knn.Predict(split.XTest)
		if err != nil {
			return nil, errors.Wrapf(err, "knn sweep k=%d", k)
		}
		acc, err := metrics.Accuracy(split.YTest, pred)
		if err != nil {
			return nil, err
		}
		sweep = append(sweep, report.SweepPoint{K: k, Accuracy: acc})
		logger.Debug("KNN sweep point", log.OperationKey, log.OperationSweep, "k", k, log.AccuracyKey, acc)
	}
	return sweep, nil
}
