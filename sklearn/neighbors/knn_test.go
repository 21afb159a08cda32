package neighbors

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

func lineData() (*mat.Dense, []int) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	return X, []int{0, 0, 0, 1, 1, 1}
}

func TestKNeighborsClassifier_Predict(t *testing.T) {
	X, y := lineData()
	tests := []struct {
		name  string
		opts  []Option
		query []float64
		want  []int
		proba []float64
	}{
		{"k=1", []Option{WithNNeighbors(1)}, []float64{0.4, 10.6}, []int{0, 1}, []float64{0, 1}},
		{"k=3 uniform", []Option{WithNNeighbors(3)}, []float64{5, 8}, []int{0, 1}, []float64{0, 1}},
		{"k=5 uniform", []Option{WithNNeighbors(5)}, []float64{3}, []int{0}, []float64{2.0 / 5}},
		// 2 対 2 の同票はクラス0
		{"k=4 tie", []Option{WithNNeighbors(4)}, []float64{6}, []int{0}, []float64{0.5}},
		{"distance exact match", []Option{WithNNeighbors(5), WithWeights("distance")}, []float64{10}, []int{1}, []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			knn := NewKNeighborsClassifier(tt.opts...)
			if err := knn.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			Q := mat.NewDense(len(tt.query), 1, tt.query)
			pred, err := knn.Predict(Q)
			if err != nil {
				t.Fatal(err)
			}
			proba, _ := knn.PredictProba(Q)
			for i := range tt.want {
				if pred[i] != tt.want[i] {
					t.Errorf("query %v: got %d, want %d", tt.query[i], pred[i], tt.want[i])
				}
				if math.Abs(proba.At(i, 1)-tt.proba[i]) > 1e-12 {
					t.Errorf("query %v: P(1) = %v, want %v", tt.query[i], proba.At(i, 1), tt.proba[i])
				}
			}
		})
	}
}

func TestKNeighborsClassifier_DistanceWeights(t *testing.T) {
	X, y := lineData()
	knn := NewKNeighborsClassifier(WithNNeighbors(4), WithWeights("distance"))
	if err := knn.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	// 近傍は 2 (d=1), 1 (d=2), 0 (d=3), 10 (d=7)
	proba, err := knn.PredictProba(mat.NewDense(1, 1, []float64{3}))
	if err != nil {
		t.Fatal(err)
	}
	w0 := 1.0 + 1.0/2 + 1.0/3
	w1 := 1.0 / 7
	if want := w1 / (w0 + w1); math.Abs(proba.At(0, 1)-want) > 1e-12 {
		t.Errorf("P(1) = %v, want %v", proba.At(0, 1), want)
	}
}

func TestKNeighborsClassifier_ParallelMatchesSerial(t *testing.T) {
	n := 50
	X := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%7))
		X.Set(i, 1, float64((i*3)%11))
		y[i] = (i / 5) % 2
	}
	predict := func(jobs int) []int {
		knn := NewKNeighborsClassifier(WithNJobs(jobs))
		if err := knn.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		pred, err := knn.Predict(X)
		if err != nil {
			t.Fatal(err)
		}
		return pred
	}
	serial, par := predict(1), predict(8)
	for i := range serial {
		if serial[i] != par[i] {
			t.Fatalf("row %d: serial %d, parallel %d", i, serial[i], par[i])
		}
	}
}

func TestKNeighborsClassifier_Score(t *testing.T) {
	X, y := lineData()
	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	if err := knn.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	score, err := knn.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if score != 1 {
		t.Errorf("Score = %v, want 1", score)
	}
}

func TestKNeighborsClassifier_Errors(t *testing.T) {
	X, y := lineData()

	var nfErr *errors.NotFittedError
	if _, err := NewKNeighborsClassifier().Predict(X); !errors.As(err, &nfErr) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	var valErr *errors.ValueError
	if err := NewKNeighborsClassifier(WithNNeighbors(7)).Fit(X, y); !errors.As(err, &valErr) {
		t.Errorf("expected ValueError for k > n, got %v", err)
	}
	if err := NewKNeighborsClassifier().Fit(X, []int{0, 0, 0, 1, 1, 2}); !errors.As(err, &valErr) {
		t.Errorf("expected ValueError for label 2, got %v", err)
	}

	var shapeErr *errors.ShapeMismatchError
	if err := NewKNeighborsClassifier().Fit(X, y[:4]); !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError, got %v", err)
	}

	for name, params := range map[string]map[string]interface{}{
		"zero k":  {"n_neighbors": 0},
		"weights": {"weights": "gaussian"},
		"unknown": {"metric": "manhattan"},
	} {
		var cfgErr *errors.ConfigurationError
		if err := NewKNeighborsClassifier().SetParams(params); !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected ConfigurationError, got %v", name, err)
		}
	}
}
