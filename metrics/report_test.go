package metrics

import (
	"testing"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

func TestNewReportPerfectPredictions(t *testing.T) {
	y := []int{0, 1, 1, 0, 1, 0}
	r, err := NewReport(y, y, []float64{0.1, 0.9, 0.8, 0.2, 0.7, 0.3})
	if err != nil {
		t.Fatal(err)
	}
	for _, metric := range []string{"Accuracy", "F1-Score", "Recall", "Precision", "R2-Score", "AUC"} {
		if v, ok := r.Value(metric); !ok || v != 1 {
			t.Errorf("%s = %v, want 1", metric, v)
		}
	}
	if r.ScoreSource != ScoreSourceProbability {
		t.Errorf("ScoreSource = %q", r.ScoreSource)
	}
}

func TestNewReportFromLabels(t *testing.T) {
	yTrue := []int{0, 0, 1, 1}
	yPred := []int{0, 1, 1, 1}
	r, err := NewReport(yTrue, yPred, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.ScoreSource != ScoreSourceLabels {
		t.Errorf("ScoreSource = %q, want labels", r.ScoreSource)
	}
	if r.AUC != 0.75 {
		t.Errorf("AUC = %v, want 0.75", r.AUC)
	}
	if len(r.FPR) != 3 || len(r.TPR) != 3 {
		t.Errorf("hard labels give a 3-point ROC curve, got %d", len(r.FPR))
	}
	if _, ok := r.Value("Unknown"); ok {
		t.Error("Value should reject unknown metric names")
	}
}

func TestNewReportErrors(t *testing.T) {
	_, err := NewReport([]int{0, 1}, []int{0, 1}, []float64{0.5})
	var shapeErr *errors.ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError, got %v", err)
	}
}
