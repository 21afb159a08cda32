// Package ensemble implements a bagged random forest of CART trees.
package ensemble

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/core/parallel"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/pkg/log"
	"github.com/YuminosukeSato/pdbench/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of NEstimators
// decision trees, each grown on a bootstrap sample with random feature
// subsets at every split.
type RandomForestClassifier struct {
	State *model.StateManager

	NEstimators     int
	Criterion       string
	MaxDepth        int
	MaxFeatures     string
	MinSamplesSplit int
	MinSamplesLeaf  int
	Bootstrap       bool
	RandomState     uint64
	NJobs           int

	Estimators         []*tree.DecisionTreeClassifier
	FeatureImportances []float64
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.NEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(c string) Option {
	return func(rf *RandomForestClassifier) { rf.Criterion = c }
}

// WithMaxDepth sets the maximum tree depth (0 = unlimited).
func WithMaxDepth(d int) Option {
	return func(rf *RandomForestClassifier) { rf.MaxDepth = d }
}

// WithMaxFeatures sets the per-split feature subset size.
func WithMaxFeatures(mf string) Option {
	return func(rf *RandomForestClassifier) { rf.MaxFeatures = mf }
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.Bootstrap = b }
}

// WithRandomState sets the forest seed.
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestClassifier) { rf.RandomState = seed }
}

// WithNJobs sets the number of trees grown concurrently (0 = NumCPU).
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.NJobs = n }
}

// NewRandomForestClassifier creates a forest with scikit-learn defaults.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		State:           model.NewStateManager(),
		NEstimators:     100,
		Criterion:       "gini",
		MaxFeatures:     "sqrt",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"criterion":         rf.Criterion,
		"max_depth":         rf.MaxDepth,
		"max_features":      rf.MaxFeatures,
		"min_samples_split": rf.MinSamplesSplit,
		"min_samples_leaf":  rf.MinSamplesLeaf,
		"bootstrap":         rf.Bootstrap,
		"random_state":      int(rf.RandomState),
		"n_jobs":            rf.NJobs,
	}
}

// SetParams sets hyperparameters by name.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			rf.NEstimators, err = model.ParamInt(k, v)
		case "criterion":
			rf.Criterion, err = model.ParamString(k, v)
		case "max_depth":
			rf.MaxDepth, err = tree.ParamMaxDepth(k, v)
		case "max_features":
			rf.MaxFeatures, err = tree.ParamMaxFeatures(k, v)
		case "min_samples_split":
			rf.MinSamplesSplit, err = model.ParamInt(k, v)
		case "min_samples_leaf":
			rf.MinSamplesLeaf, err = model.ParamInt(k, v)
		case "bootstrap":
			rf.Bootstrap, err = model.ParamBool(k, v)
		case "random_state":
			var seed int64
			seed, err = model.ParamInt64(k, v)
			rf.RandomState = uint64(seed)
		case "n_jobs":
			rf.NJobs, err = model.ParamInt(k, v)
		default:
			return model.UnknownParam("RandomForestClassifier", k, v)
		}
		if err != nil {
			return err
		}
	}
	if rf.NEstimators < 1 {
		return errors.NewConfigurationError("n_estimators", "must be at least 1", rf.NEstimators)
	}
	// 木ごとの検証をここで済ませておく
	return rf.newTree(0).SetParams(map[string]interface{}{})
}

// Clone returns an unfitted copy with the same hyperparameters.
func (rf *RandomForestClassifier) Clone() model.Classifier {
	c := *rf
	c.State = model.NewStateManager()
	c.Estimators = nil
	c.FeatureImportances = nil
	return &c
}

func (rf *RandomForestClassifier) newTree(seed uint64) *tree.DecisionTreeClassifier {
	return tree.NewDecisionTreeClassifier(
		tree.WithCriterion(rf.Criterion),
		tree.WithMaxDepth(rf.MaxDepth),
		tree.WithMaxFeatures(rf.MaxFeatures),
		tree.WithMinSamplesSplit(rf.MinSamplesSplit),
		tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
		tree.WithRandomState(seed),
	)
}

// Fit grows the trees in parallel. Per-tree seeds and bootstrap indices are
// drawn up front from the forest seed, so the result does not depend on the
// number of workers.
func (rf *RandomForestClassifier) Fit(X mat.Matrix, y []int) error {
	n, p, err := model.CheckFitInput("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.SetParams(map[string]interface{}{}); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(rf.RandomState, rf.RandomState^0x5851f42d4c957f2d))
	seeds := make([]uint64, rf.NEstimators)
	samples := make([][]int, rf.NEstimators)
	for t := range seeds {
		seeds[t] = rng.Uint64()
		idx := make([]int, n)
		for i := range idx {
			if rf.Bootstrap {
				idx[i] = rng.IntN(n)
			} else {
				idx[i] = i
			}
		}
		samples[t] = idx
	}

	Xd := mat.DenseCopyOf(X)
	trees := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	err = parallel.ForEach(rf.NEstimators, rf.NJobs, func(t int) error {
		Xt := mat.NewDense(n, p, nil)
		yt := make([]int, n)
		for i, idx := range samples[t] {
			Xt.SetRow(i, Xd.RawRowView(idx))
			yt[i] = y[idx]
		}
		dt := rf.newTree(seeds[t])
		if err := dt.Fit(Xt, yt); err != nil {
			return errors.Wrapf(err, "tree %d", t)
		}
		trees[t] = dt
		return nil
	})
	if err != nil {
		return err
	}

	imp := make([]float64, p)
	for _, dt := range trees {
		for j, v := range dt.FeatureImportances {
			imp[j] += v / float64(len(trees))
		}
	}

	rf.Estimators = trees
	rf.FeatureImportances = imp
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}
	rf.State.SetFitted(p, n)

	log.GetLoggerWithName("ensemble").Debug("Random forest fitted",
		log.AlgorithmKey, "RandomForestClassifier",
		"n_estimators", rf.NEstimators,
		log.SamplesKey, n,
		log.FeaturesKey, p,
	)
	return nil
}

// PredictProba averages the tree probabilities.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if rf.State == nil || len(rf.Estimators) == 0 {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	if err := rf.State.RequireFitted("RandomForestClassifier", "PredictProba", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 2, nil)
	for _, dt := range rf.Estimators {
		proba, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		out.Add(out, proba)
	}
	out.Scale(1/float64(len(rf.Estimators)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) ([]int, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.LabelsFromProba(proba), nil
}

// GetFeatureImportances returns the mean impurity-based importances.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), rf.FeatureImportances...)
}

// String returns a short description of the classifier.
func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_features=%q, bootstrap=%t, random_state=%d)",
		rf.NEstimators, rf.MaxFeatures, rf.Bootstrap, rf.RandomState)
}
