// Package svm implements a binary C-support vector classifier trained with
// sequential minimal optimisation.
package svm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/pkg/log"
)

const (
	// GammaScale selects gamma = 1 / (n_features * X.var()).
	GammaScale = 0.0
	// GammaAuto selects gamma = 1 / n_features.
	GammaAuto = -1.0

	// solverIterationCap bounds the solver when MaxIter is -1.
	solverIterationCap = 10_000_000
	tau                = 1e-12
)

// SVC is a C-support vector classifier. It exposes DecisionFunction but no
// probability estimates, as scikit-learn's SVC(probability=False).
type SVC struct {
	State *model.StateManager

	// Hyperparameters
	Kernel  string  // "linear", "rbf" or "poly"
	C       float64 // Regularization parameter
	Gamma   float64 // Kernel coefficient; GammaScale or GammaAuto select a data-driven value
	Degree  int     // Degree of the polynomial kernel
	Coef0   float64 // Independent term of the polynomial kernel
	Tol     float64 // Tolerance on the maximal KKT violation
	MaxIter int     // -1 = no limit

	// Learned state
	SupportVectors *mat.Dense
	DualCoef       []float64 // α_i·y_i of each support vector, y in {-1, +1}
	Intercept      float64
	GammaValue     float64 // resolved gamma used by the kernel
	NIter          int
}

// Option configures an SVC.
type Option func(*SVC)

// WithKernel sets the kernel type.
func WithKernel(k string) Option { return func(s *SVC) { s.Kernel = k } }

// WithC sets the regularization parameter.
func WithC(c float64) Option { return func(s *SVC) { s.C = c } }

// WithGamma sets the kernel coefficient.
func WithGamma(g float64) Option { return func(s *SVC) { s.Gamma = g } }

// WithDegree sets the polynomial degree.
func WithDegree(d int) Option { return func(s *SVC) { s.Degree = d } }

// WithCoef0 sets the polynomial independent term.
func WithCoef0(c float64) Option { return func(s *SVC) { s.Coef0 = c } }

// WithTol sets the stopping tolerance.
func WithTol(tol float64) Option { return func(s *SVC) { s.Tol = tol } }

// WithMaxIter sets the iteration limit (-1 = no limit).
func WithMaxIter(n int) Option { return func(s *SVC) { s.MaxIter = n } }

// NewSVC creates an SVC with scikit-learn defaults (rbf, C=1, gamma="scale").
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		State:   model.NewStateManager(),
		Kernel:  "rbf",
		C:       1.0,
		Gamma:   GammaScale,
		Degree:  3,
		Tol:     1e-3,
		MaxIter: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetParams returns the hyperparameters. Data-driven gamma modes are
// reported by name.
func (s *SVC) GetParams() map[string]interface{} {
	var gamma interface{} = s.Gamma
	switch s.Gamma {
	case GammaScale:
		gamma = "scale"
	case GammaAuto:
		gamma = "auto"
	}
	return map[string]interface{}{
		"kernel":   s.Kernel,
		"C":        s.C,
		"gamma":    gamma,
		"degree":   s.Degree,
		"coef0":    s.Coef0,
		"tol":      s.Tol,
		"max_iter": s.MaxIter,
	}
}

// SetParams sets hyperparameters by name. gamma accepts a positive number,
// "scale" or "auto".
func (s *SVC) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "kernel":
			s.Kernel, err = model.ParamString(k, v)
		case "C":
			s.C, err = model.ParamFloat(k, v)
		case "gamma":
			s.Gamma, err = paramGamma(v)
		case "degree":
			s.Degree, err = model.ParamInt(k, v)
		case "coef0":
			s.Coef0, err = model.ParamFloat(k, v)
		case "tol":
			s.Tol, err = model.ParamFloat(k, v)
		case "max_iter":
			s.MaxIter, err = model.ParamInt(k, v)
		default:
			return model.UnknownParam("SVC", k, v)
		}
		if err != nil {
			return err
		}
	}
	return s.validate()
}

func paramGamma(v interface{}) (float64, error) {
	if str, ok := v.(string); ok {
		switch str {
		case "scale":
			return GammaScale, nil
		case "auto":
			return GammaAuto, nil
		}
		return 0, errors.NewConfigurationError("gamma", `must be a positive number, "scale" or "auto"`, v)
	}
	g, err := model.ParamFloat("gamma", v)
	if err != nil {
		return 0, err
	}
	if g < 0 {
		return 0, errors.NewConfigurationError("gamma", `must be a positive number, "scale" or "auto"`, v)
	}
	return g, nil
}

func (s *SVC) validate() error {
	if err := model.OneOf("kernel", s.Kernel, "linear", "rbf", "poly"); err != nil {
		return err
	}
	if !(s.C > 0) {
		return errors.NewConfigurationError("C", "must be positive", s.C)
	}
	if s.Gamma < 0 && s.Gamma != GammaAuto {
		return errors.NewConfigurationError("gamma", `must be a positive number, "scale" or "auto"`, s.Gamma)
	}
	if s.Degree < 0 {
		return errors.NewConfigurationError("degree", "must be non-negative", s.Degree)
	}
	if !(s.Tol > 0) {
		return errors.NewConfigurationError("tol", "must be positive", s.Tol)
	}
	if s.MaxIter == 0 || s.MaxIter < -1 {
		return errors.NewConfigurationError("max_iter", "must be positive or -1", s.MaxIter)
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (s *SVC) Clone() model.Classifier {
	return &SVC{
		State:   model.NewStateManager(),
		Kernel:  s.Kernel,
		C:       s.C,
		Gamma:   s.Gamma,
		Degree:  s.Degree,
		Coef0:   s.Coef0,
		Tol:     s.Tol,
		MaxIter: s.MaxIter,
	}
}

// resolveGamma returns the gamma used by the kernel for training data X.
func (s *SVC) resolveGamma(X *mat.Dense) float64 {
	_, p := X.Dims()
	switch s.Gamma {
	case GammaAuto:
		return 1 / float64(p)
	case GammaScale:
		v := stat.PopVariance(X.RawMatrix().Data, nil)
		if v == 0 {
			return 1
		}
		return 1 / (float64(p) * v)
	}
	return s.Gamma
}

// kernelFromDot maps a dot product (and the two squared norms, used by rbf)
// to the kernel value.
func (s *SVC) kernelFromDot(dot, sqA, sqB float64) float64 {
	switch s.Kernel {
	case "linear":
		return dot
	case "poly":
		return math.Pow(s.GammaValue*dot+s.Coef0, float64(s.Degree))
	default:
		return math.Exp(-s.GammaValue * math.Max(0, sqA+sqB-2*dot))
	}
}

func rowSqNorms(X *mat.Dense) []float64 {
	n, _ := X.Dims()
	out := make([]float64, n)
	for i := range out {
		row := X.RawRowView(i)
		out[i] = floats.Dot(row, row)
	}
	return out
}

// gram returns the kernel matrix of the training data.
func (s *SVC) gram(X *mat.Dense) *mat.SymDense {
	n, _ := X.Dims()
	var dots mat.SymDense
	dots.SymOuterK(1, X)
	sq := rowSqNorms(X)
	K := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			K.SetSym(i, j, s.kernelFromDot(dots.At(i, j), sq[i], sq[j]))
		}
	}
	return K
}

// Fit solves the dual problem
//
//	min ½ αᵀQα − eᵀα  s.t. 0 ≤ α ≤ C, yᵀα = 0,  Q_ij = y_i y_j K(x_i, x_j)
//
// with second-order working set selection. Both classes must be present.
func (s *SVC) Fit(X mat.Matrix, y []int) error {
	const op = "SVC.Fit"
	n, p, err := model.CheckFitInput(op, X, y)
	if err != nil {
		return err
	}
	if err := s.validate(); err != nil {
		return err
	}
	neg, pos := model.ClassCounts(y)
	if neg == 0 {
		return errors.NewInsufficientSamplesError(op, 0, 0, 1)
	}
	if pos == 0 {
		return errors.NewInsufficientSamplesError(op, 1, 0, 1)
	}

	Xd := mat.DenseCopyOf(X)
	s.GammaValue = s.resolveGamma(Xd)
	K := s.gram(Xd)

	ys := make([]float64, n)
	for i, label := range y {
		ys[i] = float64(2*label - 1)
	}
	alpha := make([]float64, n)
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}

	maxIter := s.MaxIter
	if maxIter < 0 {
		maxIter = solverIterationCap
	}
	converged := false
	iter := 0
	for ; iter < maxIter; iter++ {
		i, j, ok := s.selectWorkingSet(K, ys, alpha, grad)
		if !ok {
			converged = true
			break
		}
		s.updatePair(K, ys, alpha, grad, i, j)
	}
	s.NIter = iter
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("SVC", iter, "solver stopped before the KKT gap closed; consider increasing max_iter"))
	}

	rho := calculateRho(ys, alpha, grad, s.C)
	var support []int
	for i, a := range alpha {
		if a > 0 {
			support = append(support, i)
		}
	}
	if len(support) == 0 {
		return errors.NewValueError(op, "solver returned no support vectors")
	}
	s.SupportVectors = mat.NewDense(len(support), p, nil)
	s.DualCoef = make([]float64, len(support))
	for k, i := range support {
		s.SupportVectors.SetRow(k, Xd.RawRowView(i))
		s.DualCoef[k] = alpha[i] * ys[i]
	}
	s.Intercept = -rho

	if s.State == nil {
		s.State = model.NewStateManager()
	}
	s.State.SetFitted(p, n)

	log.GetLoggerWithName("svm").Debug("SVC fitted",
		log.AlgorithmKey, "SVC",
		"kernel", s.Kernel,
		"support_vectors", len(support),
		log.IterationKey, iter,
	)
	return nil
}

// selectWorkingSet picks i as the maximal violating index in I_up and j by
// maximal second-order gain in I_low. ok is false once the KKT gap is below Tol.
func (s *SVC) selectWorkingSet(K *mat.SymDense, ys, alpha, grad []float64) (int, int, bool) {
	gmax := math.Inf(-1)
	i := -1
	for t := range alpha {
		if (ys[t] > 0 && alpha[t] < s.C) || (ys[t] < 0 && alpha[t] > 0) {
			if v := -ys[t] * grad[t]; i < 0 || v > gmax {
				gmax = v
				i = t
			}
		}
	}

	gmin := math.Inf(1)
	j := -1
	objMin := math.Inf(1)
	for t := range alpha {
		if !((ys[t] > 0 && alpha[t] > 0) || (ys[t] < 0 && alpha[t] < s.C)) {
			continue
		}
		v := -ys[t] * grad[t]
		if v < gmin {
			gmin = v
		}
		if i < 0 {
			continue
		}
		b := gmax - v
		if b > 0 {
			a := K.At(i, i) + K.At(t, t) - 2*K.At(i, t)
			if a <= 0 {
				a = tau
			}
			if obj := -(b * b) / a; obj < objMin {
				objMin = obj
				j = t
			}
		}
	}

	if i < 0 || j < 0 || gmax-gmin < s.Tol {
		return 0, 0, false
	}
	return i, j, true
}

// updatePair solves the two-variable subproblem analytically, clips to the
// box and updates the gradient.
func (s *SVC) updatePair(K *mat.SymDense, ys, alpha, grad []float64, i, j int) {
	C := s.C
	oldI, oldJ := alpha[i], alpha[j]
	quad := K.At(i, i) + K.At(j, j) - 2*K.At(i, j)
	if quad <= 0 {
		quad = tau
	}

	if ys[i] != ys[j] {
		delta := (-grad[i] - grad[j]) / quad
		diff := alpha[i] - alpha[j]
		alpha[i] += delta
		alpha[j] += delta
		if diff > 0 {
			if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = diff
			}
		} else if alpha[i] < 0 {
			alpha[i] = 0
			alpha[j] = -diff
		}
		if diff > 0 {
			if alpha[i] > C {
				alpha[i] = C
				alpha[j] = C - diff
			}
		} else if alpha[j] > C {
			alpha[j] = C
			alpha[i] = C + diff
		}
	} else {
		delta := (grad[i] - grad[j]) / quad
		sum := alpha[i] + alpha[j]
		alpha[i] -= delta
		alpha[j] += delta
		if sum > C {
			if alpha[i] > C {
				alpha[i] = C
				alpha[j] = sum - C
			}
		} else if alpha[j] < 0 {
			alpha[j] = 0
			alpha[i] = sum
		}
		if sum > C {
			if alpha[j] > C {
				alpha[j] = C
				alpha[i] = sum - C
			}
		} else if alpha[i] < 0 {
			alpha[i] = 0
			alpha[j] = sum
		}
	}

	dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
	for t := range grad {
		grad[t] += ys[t] * (ys[i]*K.At(t, i)*dI + ys[j]*K.At(t, j)*dJ)
	}
}

// calculateRho averages y·G over free support vectors, falling back to the
// midpoint of the feasible interval when none is free.
func calculateRho(ys, alpha, grad []float64, C float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var sumFree float64
	nFree := 0
	for t := range alpha {
		yG := ys[t] * grad[t]
		switch {
		case alpha[t] >= C:
			if ys[t] < 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case alpha[t] <= 0:
			if ys[t] > 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

// DecisionFunction returns Σ α_i y_i K(x_i, x) + b for every row of X.
// Positive values predict class 1.
func (s *SVC) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if s.State == nil || s.SupportVectors == nil {
		return nil, errors.NewNotFittedError("SVC", "DecisionFunction")
	}
	if err := s.State.RequireFitted("SVC", "DecisionFunction", X); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	nSV, _ := s.SupportVectors.Dims()
	svSq := rowSqNorms(s.SupportVectors)
	out := make([]float64, n)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		sq := floats.Dot(row, row)
		f := s.Intercept
		for k := 0; k < nSV; k++ {
			sv := s.SupportVectors.RawRowView(k)
			f += s.DualCoef[k] * s.kernelFromDot(floats.Dot(row, sv), sq, svSq[k])
		}
		out[i] = f
	}
	return out, nil
}

// Predict returns 1 where the decision function is positive.
func (s *SVC) Predict(X mat.Matrix) ([]int, error) {
	scores, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	pred := make([]int, len(scores))
	for i, f := range scores {
		if f > 0 {
			pred[i] = 1
		}
	}
	return pred, nil
}

// NSupport returns the number of support vectors.
func (s *SVC) NSupport() int {
	if s.SupportVectors == nil {
		return 0
	}
	n, _ := s.SupportVectors.Dims()
	return n
}

// String returns a short description of the classifier.
func (s *SVC) String() string {
	return fmt.Sprintf("SVC(kernel=%s, C=%g, gamma=%v)", s.Kernel, s.C, s.GetParams()["gamma"])
}
