package linear_model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// 前処理後と同じく [-1, 1] に収まるデータ
func separable() (*mat.Dense, []int) {
	X := mat.NewDense(8, 2, []float64{
		-0.9, -0.7,
		-0.6, -0.8,
		-0.5, -0.3,
		-0.2, -0.6,
		0.3, 0.5,
		0.6, 0.2,
		0.7, 0.9,
		0.9, 0.6,
	})
	return X, []int{0, 0, 0, 0, 1, 1, 1, 1}
}

func TestLogisticRegression_FitPredict(t *testing.T) {
	X, y := separable()
	lr := NewLogisticRegression(WithMaxIter(1000))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	pred, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := range y {
		if pred[i] != y[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, y[i], pred[i])
		}
	}
	if lr.Coef[0] <= 0 || lr.Coef[1] <= 0 {
		t.Errorf("coefficients should be positive, got %v", lr.Coef)
	}
}

func TestLogisticRegression_PredictProba(t *testing.T) {
	X, y := separable()
	lr := NewLogisticRegression(WithMaxIter(500))
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	proba, err := lr.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	scores, _ := lr.DecisionFunction(X)
	for i := range y {
		p1 := proba.At(i, 1)
		if math.Abs(proba.At(i, 0)+p1-1) > 1e-12 {
			t.Errorf("row %d does not sum to 1", i)
		}
		if want := 1 / (1 + math.Exp(-scores[i])); math.Abs(p1-want) > 1e-12 {
			t.Errorf("P(y=1) = %v, want sigmoid(decision) = %v", p1, want)
		}
		if (p1 > 0.5) != (y[i] == 1) {
			t.Errorf("row %d: P(y=1) = %v for label %d", i, p1, y[i])
		}
	}
}

func TestLogisticRegression_Regularization(t *testing.T) {
	X, y := separable()
	norm := func(c float64) float64 {
		lr := NewLogisticRegression(WithC(c), WithMaxIter(300))
		if err := lr.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		return math.Hypot(lr.Coef[0], lr.Coef[1])
	}
	if strong, weak := norm(0.05), norm(100); strong >= weak {
		t.Errorf("|w| with C=0.05 (%v) should be smaller than with C=100 (%v)", strong, weak)
	}
}

func TestLogisticRegression_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	errors.SetZerologWarnFunc(nil)
	defer errors.SetWarningHandler(func(error) {})

	X, y := separable()
	lr := NewLogisticRegression(WithMaxIter(1), WithTol(1e-12))
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if lr.Converged || lr.NIter != 1 {
		t.Errorf("Converged=%v NIter=%d", lr.Converged, lr.NIter)
	}
	var cw *errors.ConvergenceWarning
	if len(warnings) != 1 || !errors.As(warnings[0], &cw) {
		t.Errorf("expected one ConvergenceWarning, got %v", warnings)
	}
}

func TestLogisticRegression_NoIntercept(t *testing.T) {
	X, y := separable()
	lr := NewLogisticRegression(WithFitIntercept(false))
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if lr.Intercept != 0 {
		t.Errorf("intercept = %v, want 0", lr.Intercept)
	}
}

func TestLogisticRegression_Params(t *testing.T) {
	lr := NewLogisticRegression()
	if err := lr.SetParams(map[string]interface{}{"C": 10, "max_iter": float64(200), "penalty": "none"}); err != nil {
		t.Fatal(err)
	}
	params := lr.Clone().GetParams()
	if params["C"] != 10.0 || params["max_iter"] != 200 || params["penalty"] != "none" {
		t.Errorf("params = %v", params)
	}

	for name, params := range map[string]map[string]interface{}{
		"unknown": {"solver": "lbfgs"},
		"penalty": {"penalty": "l1"},
		"C":       {"C": 0.0},
		"type":    {"fit_intercept": 1},
	} {
		var cfgErr *errors.ConfigurationError
		if err := NewLogisticRegression().SetParams(params); !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected ConfigurationError, got %v", name, err)
		}
	}
}

func TestLogisticRegression_Errors(t *testing.T) {
	X, y := separable()
	lr := NewLogisticRegression()
	var nfErr *errors.NotFittedError
	if _, err := lr.Predict(X); !errors.As(err, &nfErr) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
	var shapeErr *errors.ShapeMismatchError
	if err := lr.Fit(X, y[:3]); !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError, got %v", err)
	}
}
