// Package neighbors implements the k-nearest-neighbours classifier.
package neighbors

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/core/parallel"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// KNeighborsClassifier votes among the NNeighbors closest training samples
// (Euclidean distance). Equal distances are ordered by training index.
type KNeighborsClassifier struct {
	State *model.StateManager

	NNeighbors int
	Weights    string // "uniform" or "distance"
	NJobs      int

	XTrain *mat.Dense
	YTrain []int
}

// Option configures a KNeighborsClassifier.
type Option func(*KNeighborsClassifier)

// WithNNeighbors sets k.
func WithNNeighbors(k int) Option {
	return func(knn *KNeighborsClassifier) { knn.NNeighbors = k }
}

// WithWeights sets the vote weighting.
func WithWeights(w string) Option {
	return func(knn *KNeighborsClassifier) { knn.Weights = w }
}

// WithNJobs sets the number of prediction workers (0 = NumCPU).
func WithNJobs(n int) Option {
	return func(knn *KNeighborsClassifier) { knn.NJobs = n }
}

// NewKNeighborsClassifier creates a classifier with k = 5 and uniform weights.
func NewKNeighborsClassifier(opts ...Option) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		State:      model.NewStateManager(),
		NNeighbors: 5,
		Weights:    "uniform",
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// GetParams returns the hyperparameters.
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.NNeighbors,
		"weights":     knn.Weights,
		"n_jobs":      knn.NJobs,
	}
}

// SetParams sets hyperparameters by name.
func (knn *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_neighbors":
			knn.NNeighbors, err = model.ParamInt(k, v)
		case "weights":
			knn.Weights, err = model.ParamString(k, v)
		case "n_jobs":
			knn.NJobs, err = model.ParamInt(k, v)
		default:
			return model.UnknownParam("KNeighborsClassifier", k, v)
		}
		if err != nil {
			return err
		}
	}
	return knn.validate()
}

func (knn *KNeighborsClassifier) validate() error {
	if knn.NNeighbors < 1 {
		return errors.NewConfigurationError("n_neighbors", "must be at least 1", knn.NNeighbors)
	}
	return model.OneOf("weights", knn.Weights, "uniform", "distance")
}

// Clone returns an unfitted copy with the same hyperparameters.
func (knn *KNeighborsClassifier) Clone() model.Classifier {
	return &KNeighborsClassifier{
		State:      model.NewStateManager(),
		NNeighbors: knn.NNeighbors,
		Weights:    knn.Weights,
		NJobs:      knn.NJobs,
	}
}

// Fit stores a copy of the training data. k may not exceed the sample count.
func (knn *KNeighborsClassifier) Fit(X mat.Matrix, y []int) error {
	n, p, err := model.CheckFitInput("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := knn.validate(); err != nil {
		return err
	}
	if knn.NNeighbors > n {
		return errors.NewValueError("KNeighborsClassifier.Fit",
			fmt.Sprintf("n_neighbors=%d exceeds n_samples=%d", knn.NNeighbors, n))
	}
	knn.XTrain = mat.DenseCopyOf(X)
	knn.YTrain = append([]int(nil), y...)
	if knn.State == nil {
		knn.State = model.NewStateManager()
	}
	knn.State.SetFitted(p, n)
	return nil
}

type neighbor struct {
	dist  float64
	index int
}

// kNearest returns the k nearest training samples of x ordered by
// (distance, index).
func (knn *KNeighborsClassifier) kNearest(x []float64, k int) []neighbor {
	n, _ := knn.XTrain.Dims()
	all := make([]neighbor, n)
	for i := 0; i < n; i++ {
		all[i] = neighbor{dist: floats.Distance(x, knn.XTrain.RawRowView(i), 2), index: i}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
	return all[:k]
}

// vote returns P(y=1) for x. With distance weights an exact match takes
// all the weight.
func (knn *KNeighborsClassifier) vote(x []float64) float64 {
	nbrs := knn.kNearest(x, knn.NNeighbors)
	var w [2]float64
	if knn.Weights == "distance" {
		exact := false
		for _, nb := range nbrs {
			if nb.dist == 0 {
				w[knn.YTrain[nb.index]]++
				exact = true
			}
		}
		if !exact {
			for _, nb := range nbrs {
				w[knn.YTrain[nb.index]] += 1 / nb.dist
			}
		}
	} else {
		for _, nb := range nbrs {
			w[knn.YTrain[nb.index]]++
		}
	}
	return w[1] / (w[0] + w[1])
}

// PredictProba returns the (weighted) neighbour vote fractions. Rows are
// processed in parallel.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if knn.State == nil || knn.XTrain == nil {
		return nil, errors.NewNotFittedError("KNeighborsClassifier", "PredictProba")
	}
	if err := knn.State.RequireFitted("KNeighborsClassifier", "PredictProba", X); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	pos := make([]float64, n)
	parallel.ParallelizeN(n, knn.NJobs, func(start, end int) {
		row := make([]float64, p)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			pos[i] = knn.vote(row)
		}
	})
	return model.ProbaFromPositive(pos), nil
}

// Predict returns the majority vote; a tie goes to class 0.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) ([]int, error) {
	proba, err := knn.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.LabelsFromProba(proba), nil
}

// Score returns the mean accuracy on (X, y).
func (knn *KNeighborsClassifier) Score(X mat.Matrix, y []int) (float64, error) {
	pred, err := knn.Predict(X)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(y) {
		return 0, errors.NewShapeMismatchError("KNeighborsClassifier.Score", len(pred), len(y), 0)
	}
	correct := 0
	for i := range y {
		if pred[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}

// String returns a short description of the classifier.
func (knn *KNeighborsClassifier) String() string {
	return fmt.Sprintf("KNeighborsClassifier(n_neighbors=%d, weights=%s)", knn.NNeighbors, knn.Weights)
}
