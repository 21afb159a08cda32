package model_selection

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/core/parallel"
	"github.com/YuminosukeSato/pdbench/metrics"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/pkg/log"
)

// ParamGrid maps a hyperparameter name to the values to try.
type ParamGrid map[string][]interface{}

// Candidates expands the grid into its Cartesian product. Keys are taken in
// sorted order and the last key varies fastest.
func (g ParamGrid) Candidates() ([]map[string]interface{}, error) {
	if len(g) == 0 {
		return nil, errors.NewConfigurationError("param_grid", "grid is empty", nil)
	}
	keys := make([]string, 0, len(g))
	for k, values := range g {
		if len(values) == 0 {
			return nil, errors.NewConfigurationError(k, "parameter has no candidate values", values)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []map[string]interface{}{{}}
	for _, k := range keys {
		next := make([]map[string]interface{}, 0, len(out)*len(g[k]))
		for _, partial := range out {
			for _, v := range g[k] {
				c := model.CopyParams(partial)
				c[k] = v
				next = append(next, c)
			}
		}
		out = next
	}
	return out, nil
}

// Size returns the number of candidates without expanding the grid.
func (g ParamGrid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, values := range g {
		n *= len(values)
	}
	return n
}

// ScoreFunc scores hard predictions against true labels; higher is better.
type ScoreFunc func(yTrue, yPred []int) (float64, error)

// Scorer resolves a scoring name. The empty name means accuracy.
func Scorer(name string) (ScoreFunc, error) {
	switch name {
	case "", "accuracy":
		return metrics.Accuracy, nil
	case "f1":
		return metrics.F1, nil
	case "precision":
		return metrics.Precision, nil
	case "recall":
		return metrics.Recall, nil
	}
	return nil, errors.NewConfigurationError("scoring", `must be one of "accuracy", "f1", "precision", "recall"`, name)
}

// CVResult is the cross-validation outcome of one candidate.
type CVResult struct {
	Params    map[string]interface{}
	Scores    []float64
	MeanScore float64
	StdScore  float64
	Rank      int
}

// GridSearchCV exhaustively evaluates every candidate of a ParamGrid by
// stratified k-fold cross-validation and refits the best one on all data.
type GridSearchCV struct {
	estimator model.Classifier
	grid      ParamGrid
	cv        int
	splitter  Splitter
	scoring   string
	nJobs     int

	BestParams    map[string]interface{}
	BestScore     float64
	BestIndex     int
	BestEstimator model.Classifier
	CVResults     []CVResult
}

// GridSearchOption configures a GridSearchCV.
type GridSearchOption func(*GridSearchCV)

// WithCV sets the number of stratified folds (default 5).
func WithCV(k int) GridSearchOption {
	return func(g *GridSearchCV) { g.cv = k }
}

// WithSplitter replaces the default unshuffled StratifiedKFold.
func WithSplitter(s Splitter) GridSearchOption {
	return func(g *GridSearchCV) { g.splitter = s }
}

// WithScoring sets the scoring name: accuracy, f1, precision or recall.
func WithScoring(name string) GridSearchOption {
	return func(g *GridSearchCV) { g.scoring = name }
}

// WithNJobs sets the number of candidates evaluated concurrently (0 = NumCPU).
func WithNJobs(n int) GridSearchOption {
	return func(g *GridSearchCV) { g.nJobs = n }
}

// NewGridSearchCV creates a grid search over estimator. The estimator itself
// is never fitted; every candidate and fold works on a clone.
func NewGridSearchCV(estimator model.Classifier, grid ParamGrid, opts ...GridSearchOption) *GridSearchCV {
	g := &GridSearchCV{
		estimator: estimator,
		grid:      grid,
		cv:        5,
		scoring:   "accuracy",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Scoring returns the configured scoring name.
func (g *GridSearchCV) Scoring() string { return g.scoring }

// Fit runs the search. Ties on the mean score go to the earliest candidate.
func (g *GridSearchCV) Fit(X mat.Matrix, y []int) error {
	const op = "GridSearchCV.Fit"
	if _, _, err := model.CheckFitInput(op, X, y); err != nil {
		return err
	}
	score, err := Scorer(g.scoring)
	if err != nil {
		return err
	}
	candidates, err := g.grid.Candidates()
	if err != nil {
		return err
	}
	splitter := g.splitter
	if splitter == nil {
		splitter = NewStratifiedKFold(g.cv, false, 0)
	}
	folds, err := splitter.Split(X, y)
	if err != nil {
		return err
	}

	// パラメータの妥当性は並列評価の前にまとめて検証する
	for _, params := range candidates {
		if err := g.estimator.Clone().SetParams(params); err != nil {
			return err
		}
	}

	logger := log.GetLoggerWithName("model_selection")
	start := time.Now()
	logger.Debug("Grid search started",
		log.OperationKey, log.OperationTune,
		log.CandidatesKey, len(candidates),
		log.FoldsKey, len(folds),
		"scoring", g.scoring,
	)

	foldData := make([]struct {
		XTrain, XTest *mat.Dense
		yTrain, yTest []int
	}, len(folds))
	for i, f := range folds {
		foldData[i].XTrain = SelectRows(X, f.TrainIndices)
		foldData[i].XTest = SelectRows(X, f.TestIndices)
		foldData[i].yTrain = SelectLabels(y, f.TrainIndices)
		foldData[i].yTest = SelectLabels(y, f.TestIndices)
	}

	results := make([]CVResult, len(candidates))
	err = parallel.ForEach(len(candidates), g.nJobs, func(i int) error {
		scores := make([]float64, len(folds))
		for k, fd := range foldData {
			est := g.estimator.Clone()
			if err := est.SetParams(candidates[i]); err != nil {
				return err
			}
			if err := est.Fit(fd.XTrain, fd.yTrain); err != nil {
				return errors.Wrapf(err, "candidate %d fold %d", i, k)
			}
			pred, err := est.Predict(fd.XTest)
			if err != nil {
				return errors.Wrapf(err, "candidate %d fold %d", i, k)
			}
			if scores[k], err = score(fd.yTest, pred); err != nil {
				return err
			}
		}
		mean, std := stat.PopMeanStdDev(scores, nil)
		results[i] = CVResult{Params: candidates[i], Scores: scores, MeanScore: mean, StdScore: std}
		return nil
	})
	if err != nil {
		return err
	}

	best := 0
	for i := range results {
		if results[i].MeanScore > results[best].MeanScore {
			best = i
		}
	}
	for i := range results {
		rank := 1
		for j := range results {
			if results[j].MeanScore > results[i].MeanScore {
				rank++
			}
		}
		results[i].Rank = rank
	}

	refit := g.estimator.Clone()
	if err := refit.SetParams(candidates[best]); err != nil {
		return err
	}
	if err := refit.Fit(X, y); err != nil {
		return errors.Wrap(err, "refit of best candidate failed")
	}

	g.CVResults = results
	g.BestIndex = best
	g.BestParams = model.CopyParams(candidates[best])
	g.BestScore = results[best].MeanScore
	g.BestEstimator = refit

	logger.Info("Grid search finished",
		log.OperationKey, log.OperationTune,
		log.CandidatesKey, len(candidates),
		log.ScoreKey, g.BestScore,
		log.HyperParamsKey, fmt.Sprint(g.BestParams),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Predict delegates to the refitted best estimator.
func (g *GridSearchCV) Predict(X mat.Matrix) ([]int, error) {
	if g.BestEstimator == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return g.BestEstimator.Predict(X)
}

// PredictProba delegates to the best estimator when it is probabilistic.
func (g *GridSearchCV) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if g.BestEstimator == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "PredictProba")
	}
	p, ok := g.BestEstimator.(model.ProbabilisticClassifier)
	if !ok {
		return nil, errors.NewValueError("GridSearchCV.PredictProba", "best estimator does not provide probabilities")
	}
	return p.PredictProba(X)
}
