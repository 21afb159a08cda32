package tree

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

func quadrantData() (*mat.Dense, []int) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	return X, []int{0, 0, 0, 0, 1, 1, 1, 1}
}

func TestDecisionTreeClassifier_FitPredict(t *testing.T) {
	X, y := quadrantData()
	for _, criterion := range []string{"gini", "entropy"} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion), WithMaxDepth(5))
			if err := dt.Fit(X, y); err != nil {
				t.Fatalf("Failed to fit model: %v", err)
			}
			pred, err := dt.Predict(X)
			if err != nil {
				t.Fatalf("Failed to predict: %v", err)
			}
			for i := range y {
				if pred[i] != y[i] {
					t.Errorf("Sample %d: expected %d, got %d", i, y[i], pred[i])
				}
			}

			XTest := mat.NewDense(2, 2, []float64{0.5, 0.5, 3.5, 3.5})
			pred, _ = dt.Predict(XTest)
			if pred[0] != 0 || pred[1] != 1 {
				t.Errorf("unseen predictions = %v, want [0 1]", pred)
			}

			// 1回の分割で完全に分離できる
			if dt.GetDepth() != 1 || dt.GetNLeaves() != 2 {
				t.Errorf("depth=%d leaves=%d, want 1 and 2", dt.GetDepth(), dt.GetNLeaves())
			}
			// 最初の最良分割 (特徴量0, 閾値 1 と 3 の中点) が採用される
			root := dt.Nodes[0]
			if root.Feature != 0 || root.Threshold != 2 {
				t.Errorf("root split = (%d, %v), want (0, 2)", root.Feature, root.Threshold)
			}
		})
	}
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	y := []int{0, 0, 1, 1, 1, 1}

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	proba, err := dt.PredictProba(mat.NewDense(2, 1, []float64{0, 1}))
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]float64{{2.0 / 3, 1.0 / 3}, {0, 1}}
	for i := range want {
		for j := 0; j < 2; j++ {
			if math.Abs(proba.At(i, j)-want[i][j]) > 1e-12 {
				t.Errorf("proba[%d][%d] = %v, want %v", i, j, proba.At(i, j), want[i][j])
			}
		}
		if math.Abs(proba.At(i, 0)+proba.At(i, 1)-1) > 1e-12 {
			t.Errorf("row %d does not sum to 1", i)
		}
	}
}

func TestDecisionTreeClassifier_Score(t *testing.T) {
	X, y := quadrantData()
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if score != 1 {
		t.Errorf("Score = %v, want 1", score)
	}
}

func TestDecisionTreeClassifier_FeatureImportances(t *testing.T) {
	// 特徴量0のみがラベルを決める
	n := 40
	X := mat.NewDense(n, 3, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64((i*7)%5))
		X.Set(i, 2, 1)
		if i >= n/2 {
			y[i] = 1
		}
	}
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	imp := dt.GetFeatureImportances()
	var sum float64
	for _, v := range imp {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("importances sum to %v, want 1", sum)
	}
	if imp[0] != 1 || imp[2] != 0 {
		t.Errorf("importances = %v, want all weight on feature 0", imp)
	}
}

func TestDecisionTreeClassifier_Constraints(t *testing.T) {
	n := 60
	X := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%10))
		X.Set(i, 1, float64(i/10))
		y[i] = (i / 3) % 2
	}

	tests := []struct {
		name  string
		opts  []Option
		check func(t *testing.T, dt *DecisionTreeClassifier)
	}{
		{
			name: "max depth",
			opts: []Option{WithMaxDepth(2)},
			check: func(t *testing.T, dt *DecisionTreeClassifier) {
				if d := dt.GetDepth(); d > 2 {
					t.Errorf("depth = %d, want <= 2", d)
				}
			},
		},
		{
			name: "min samples leaf",
			opts: []Option{WithMinSamplesSplit(5), WithMinSamplesLeaf(4)},
			check: func(t *testing.T, dt *DecisionTreeClassifier) {
				for i, node := range dt.Nodes {
					if node.Feature < 0 && node.NSamples < 4 {
						t.Errorf("leaf %d has %d samples", i, node.NSamples)
					}
				}
			},
		},
		{
			name: "stump",
			opts: []Option{WithMaxDepth(1)},
			check: func(t *testing.T, dt *DecisionTreeClassifier) {
				if dt.GetNLeaves() > 2 {
					t.Errorf("leaves = %d, want <= 2", dt.GetNLeaves())
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opts...)
			if err := dt.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			tt.check(t, dt)
		})
	}
}

func TestArgsortColumns(t *testing.T) {
	order := argsortColumns([][]float64{
		{3, 1, 2, 1, 0},
		{5, 5, 5, 5, 5},
	})
	want := [][]int{{4, 1, 3, 2, 0}, {0, 1, 2, 3, 4}}
	for j := range want {
		for k := range want[j] {
			if order[j][k] != want[j][k] {
				t.Fatalf("column %d order = %v, want %v", j, order[j], want[j])
			}
		}
	}
}

func TestDecisionTreeClassifier_NodeSampleCounts(t *testing.T) {
	// tied values on both columns
	n := 60
	X := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%10))
		X.Set(i, 1, float64(i/10))
		y[i] = (i / 3) % 2
	}
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	reached := make([]int, len(dt.Nodes))
	for i := 0; i < n; i++ {
		id := 0
		for {
			reached[id]++
			node := dt.Nodes[id]
			if node.Feature < 0 {
				break
			}
			if X.At(i, node.Feature) <= node.Threshold {
				id = node.Left
			} else {
				id = node.Right
			}
		}
	}
	for id, node := range dt.Nodes {
		if reached[id] != node.NSamples {
			t.Errorf("node %d: %d training rows route here, NSamples = %d", id, reached[id], node.NSamples)
		}
	}
	if acc, _ := dt.Score(X, y); acc != 1 {
		t.Errorf("unpruned training accuracy = %v, want 1", acc)
	}
}

func BenchmarkDecisionTreeClassifier_Fit(b *testing.B) {
	n, p := 294, 22
	X := mat.NewDense(n, p, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, float64((i*(j+3)*7919)%1000)/1000)
		}
		y[i] = (i * 31 % 7) % 2
	}
	for i := 0; i < b.N; i++ {
		if err := NewDecisionTreeClassifier().Fit(X, y); err != nil {
			b.Fatal(err)
		}
	}
}

func TestDecisionTreeClassifier_MaxFeaturesDeterministic(t *testing.T) {
	n, p := 50, 9
	X := mat.NewDense(n, p, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, float64((i*(j+3))%11))
		}
		y[i] = i % 2
	}
	fit := func(seed uint64) *DecisionTreeClassifier {
		dt := NewDecisionTreeClassifier(WithMaxFeatures("sqrt"), WithRandomState(seed))
		if err := dt.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		return dt
	}
	a, b := fit(7), fit(7)
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("same seed produced %d and %d nodes", len(a.Nodes), len(b.Nodes))
	}
	for i := range a.Nodes {
		if a.Nodes[i] != b.Nodes[i] {
			t.Fatalf("node %d differs between identical fits", i)
		}
	}
}

func TestResolveMaxFeatures(t *testing.T) {
	tests := []struct {
		value   string
		p       int
		want    int
		wantErr bool
	}{
		{"", 22, 22, false},
		{"sqrt", 22, 4, false},
		{"auto", 22, 4, false},
		{"log2", 22, 4, false},
		{"3", 22, 3, false},
		{"50", 22, 22, false},
		{"sqrt", 1, 1, false},
		{"0", 22, 0, true},
		{"half", 22, 0, true},
	}
	for _, tt := range tests {
		got, err := ResolveMaxFeatures(tt.value, tt.p)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveMaxFeatures(%q, %d) error = %v", tt.value, tt.p, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ResolveMaxFeatures(%q, %d) = %d, want %d", tt.value, tt.p, got, tt.want)
		}
	}
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	params := dt.GetParams()
	if params["criterion"] != "gini" || params["min_samples_split"] != 2 || params["max_depth"] != 0 {
		t.Errorf("unexpected defaults: %v", params)
	}

	err := dt.SetParams(map[string]interface{}{
		"criterion":    "entropy",
		"max_depth":    float64(4), // YAML から来る整数値
		"max_features": "log2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if dt.Criterion != "entropy" || dt.MaxDepth != 4 || dt.MaxFeatures != "log2" {
		t.Errorf("SetParams not applied: %+v", dt.GetParams())
	}
	if err := dt.SetParams(map[string]interface{}{"max_depth": nil}); err != nil || dt.MaxDepth != 0 {
		t.Errorf("nil max_depth should mean unlimited, got %d (%v)", dt.MaxDepth, err)
	}

	clone := dt.Clone().(*DecisionTreeClassifier)
	if clone.Criterion != "entropy" || clone.State.IsFitted() {
		t.Error("Clone must copy params and be unfitted")
	}

	for name, params := range map[string]map[string]interface{}{
		"unknown":   {"splitter": "best"},
		"criterion": {"criterion": "mse"},
		"type":      {"max_depth": "deep"},
		"leaf":      {"min_samples_leaf": 0},
		"features":  {"max_features": "most"},
	} {
		var cfgErr *errors.ConfigurationError
		if err := NewDecisionTreeClassifier().SetParams(params); !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected ConfigurationError, got %v", name, err)
		}
	}
}

func TestDecisionTreeClassifier_Errors(t *testing.T) {
	X, y := quadrantData()
	dt := NewDecisionTreeClassifier()

	var nfErr *errors.NotFittedError
	if _, err := dt.Predict(X); !errors.As(err, &nfErr) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	var shapeErr *errors.ShapeMismatchError
	if err := dt.Fit(X, y[:5]); !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError, got %v", err)
	}

	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if _, err := dt.Predict(mat.NewDense(1, 3, nil)); !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError for wrong feature count, got %v", err)
	}
}

func TestDecisionTreeClassifier_Persistence(t *testing.T) {
	X, y := quadrantData()
	dt := NewDecisionTreeClassifier(WithMaxDepth(3))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	path := t.TempDir() + "/tree.gob"
	if err := model.SaveModel(dt, path); err != nil {
		t.Fatal(err)
	}
	loaded := &DecisionTreeClassifier{}
	if err := model.LoadModel(loaded, path); err != nil {
		t.Fatal(err)
	}
	pred, err := loaded.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	for i := range y {
		if pred[i] != y[i] {
			t.Fatalf("loaded tree mispredicts row %d", i)
		}
	}
}
