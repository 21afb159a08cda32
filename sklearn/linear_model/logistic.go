// Package linear_model implements binary logistic regression.
package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// LogisticRegression implements L2-regularised logistic regression for
// binary labels. The objective is scikit-learn's
// C·Σ log-loss + ½‖w‖², minimised by full-batch gradient descent on the
// per-sample mean, so the penalty gradient is w/(C·n).
type LogisticRegression struct {
	State *model.StateManager

	// Hyperparameters
	Penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength
	FitIntercept bool
	MaxIter      int
	Tol          float64 // Stop when the largest gradient component falls below Tol

	// Model parameters
	Coef      []float64
	Intercept float64
	NIter     int
	Converged bool
}

// Option is a functional option for LogisticRegression.
type Option func(*LogisticRegression)

// WithPenalty sets the regularization type.
func WithPenalty(penalty string) Option {
	return func(lr *LogisticRegression) { lr.Penalty = penalty }
}

// WithC sets the inverse regularization strength.
func WithC(c float64) Option {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithFitIntercept sets whether to fit intercept.
func WithFitIntercept(fit bool) Option {
	return func(lr *LogisticRegression) { lr.FitIntercept = fit }
}

// WithMaxIter sets the maximum number of iterations.
func WithMaxIter(maxIter int) Option {
	return func(lr *LogisticRegression) { lr.MaxIter = maxIter }
}

// WithTol sets the tolerance for stopping criteria.
func WithTol(tol float64) Option {
	return func(lr *LogisticRegression) { lr.Tol = tol }
}

// NewLogisticRegression creates a new LogisticRegression classifier.
func NewLogisticRegression(opts ...Option) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		Penalty:      "l2",
		C:            1.0,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// GetParams returns the model hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.Penalty,
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
	}
}

// SetParams sets the model hyperparameters.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.Penalty, err = model.ParamString(key, value)
		case "C":
			lr.C, err = model.ParamFloat(key, value)
		case "fit_intercept":
			lr.FitIntercept, err = model.ParamBool(key, value)
		case "max_iter":
			lr.MaxIter, err = model.ParamInt(key, value)
		case "tol":
			lr.Tol, err = model.ParamFloat(key, value)
		default:
			return model.UnknownParam("LogisticRegression", key, value)
		}
		if err != nil {
			return err
		}
	}
	return lr.validate()
}

func (lr *LogisticRegression) validate() error {
	if err := model.OneOf("penalty", lr.Penalty, "l2", "none"); err != nil {
		return err
	}
	if !(lr.C > 0) {
		return errors.NewConfigurationError("C", "must be positive", lr.C)
	}
	if lr.MaxIter < 1 {
		return errors.NewConfigurationError("max_iter", "must be at least 1", lr.MaxIter)
	}
	if lr.Tol < 0 {
		return errors.NewConfigurationError("tol", "must be non-negative", lr.Tol)
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (lr *LogisticRegression) Clone() model.Classifier {
	return &LogisticRegression{
		State:        model.NewStateManager(),
		Penalty:      lr.Penalty,
		C:            lr.C,
		FitIntercept: lr.FitIntercept,
		MaxIter:      lr.MaxIter,
		Tol:          lr.Tol,
	}
}

// Fit trains the model by gradient descent from zero weights with the
// learning rate schedule η/(1+0.1·iter), η = min(1, 1/L). A
// ConvergenceWarning is emitted when MaxIter is reached before the gradient
// drops below Tol.
func (lr *LogisticRegression) Fit(X mat.Matrix, y []int) error {
	nSamples, nFeatures, err := model.CheckFitInput("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if err := lr.validate(); err != nil {
		return err
	}

	Xd := mat.DenseCopyOf(X)
	weights := make([]float64, nFeatures)
	intercept := 0.0
	gradWeights := make([]float64, nFeatures)
	n := float64(nSamples)

	// The step never exceeds 1/L, L bounding the curvature of the objective.
	l2 := 0.0
	if lr.Penalty == "l2" {
		l2 = 1 / (lr.C * n)
	}
	var sqNorm float64
	for i := 0; i < nSamples; i++ {
		row := Xd.RawRowView(i)
		sqNorm += floats.Dot(row, row) + 1
	}
	baseLearningRate := 1.0
	if L := 0.25*sqNorm/n + l2; L > 1 {
		baseLearningRate = 1 / L
	}

	lr.Converged = false
	for iter := 0; iter < lr.MaxIter; iter++ {
		// Compute gradients of the mean log-loss
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0
		for i := 0; i < nSamples; i++ {
			row := Xd.RawRowView(i)
			residual := errors.Sigmoid(intercept+floats.Dot(row, weights)) - float64(y[i])
			gradIntercept += residual
			floats.AddScaled(gradWeights, residual, row)
		}
		floats.Scale(1/n, gradWeights)
		gradIntercept /= n

		// Add L2 regularization gradient
		if l2 > 0 {
			floats.AddScaled(gradWeights, l2, weights)
		}

		// Adaptive learning rate
		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		floats.AddScaled(weights, -learningRate, gradWeights)
		if lr.FitIntercept {
			intercept -= learningRate * gradIntercept
		} else {
			gradIntercept = 0
		}
		lr.NIter = iter + 1

		// Check convergence
		maxGrad := math.Max(math.Abs(gradIntercept), floats.Norm(gradWeights, math.Inf(1)))
		if maxGrad < lr.Tol {
			lr.Converged = true
			break
		}
	}

	if err := errors.CheckVector("LogisticRegression.Fit", "weight", weights, lr.NIter); err != nil {
		return err
	}
	if !lr.Converged {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.NIter,
			fmt.Sprintf("gradient still above tol=%g", lr.Tol)))
	}

	lr.Coef = weights
	lr.Intercept = intercept
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.State.SetFitted(nFeatures, nSamples)
	return nil
}

// DecisionFunction returns the linear score w·x + b for every sample.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if lr.State == nil {
		return nil, errors.NewNotFittedError("LogisticRegression", "DecisionFunction")
	}
	if err := lr.State.RequireFitted("LogisticRegression", "DecisionFunction", X); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	scores := make([]float64, nSamples)
	for i := 0; i < nSamples; i++ {
		z := lr.Intercept
		for j := 0; j < nFeatures; j++ {
			z += X.At(i, j) * lr.Coef[j]
		}
		scores[i] = z
	}
	return scores, nil
}

// PredictProba returns [P(y=0), P(y=1)] for every sample.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	for i, z := range scores {
		scores[i] = errors.Sigmoid(z)
	}
	return model.ProbaFromPositive(scores), nil
}

// Predict returns 1 where the decision function is positive.
func (lr *LogisticRegression) Predict(X mat.Matrix) ([]int, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	pred := make([]int, len(scores))
	for i, z := range scores {
		if z > 0 {
			pred[i] = 1
		}
	}
	return pred, nil
}

// String returns a short description of the classifier.
func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%g, max_iter=%d)", lr.Penalty, lr.C, lr.MaxIter)
}
