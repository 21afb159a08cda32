package sampling

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

func imbalanced(nMaj, nMin int) (*mat.Dense, []int) {
	n := nMaj + nMin
	X := mat.NewDense(n, 2, nil)
	y := make([]int, n)
	for i := 0; i < nMaj; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		y[i] = 1
	}
	for i := 0; i < nMin; i++ {
		X.Set(nMaj+i, 0, 100+float64(i))
		X.Set(nMaj+i, 1, -float64(i))
		y[nMaj+i] = 0
	}
	return X, y
}

func TestFitResampleBalances(t *testing.T) {
	tests := []struct {
		name      string
		nMaj      int
		nMin      int
		wantTotal int
	}{
		{"parkinsons proportions", 147, 48, 294},
		{"small", 10, 6, 20},
		{"already balanced", 8, 8, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			X, y := imbalanced(tt.nMaj, tt.nMin)
			s := NewSMOTE(WithKNeighbors(5), WithRandomState(300))

			Xr, yr, err := s.FitResample(X, y)
			if err != nil {
				t.Fatalf("FitResample failed: %v", err)
			}
			rows, _ := Xr.Dims()
			if rows != tt.wantTotal || len(yr) != tt.wantTotal {
				t.Fatalf("got %d rows / %d labels, want %d", rows, len(yr), tt.wantTotal)
			}

			var counts [2]int
			for _, label := range yr {
				counts[label]++
			}
			if counts[0] != counts[1] {
				t.Errorf("class counts not equal: %v", counts)
			}

			// 元の行が先頭にそのまま残る
			n, _ := X.Dims()
			for i := 0; i < n; i++ {
				if yr[i] != y[i] || Xr.At(i, 0) != X.At(i, 0) {
					t.Fatalf("original row %d was modified", i)
				}
			}
		})
	}
}

func TestSyntheticSamplesLieBetweenMinorityPoints(t *testing.T) {
	X, y := imbalanced(20, 7)
	Xr, yr, err := NewSMOTE(WithRandomState(1)).FitResample(X, y)
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := Xr.Dims()
	for i := 27; i < rows; i++ {
		if yr[i] != 0 {
			t.Fatalf("synthetic row %d labelled %d", i, yr[i])
		}
		// 少数クラスは x0 ∈ [100,106], x1 ∈ [-6,0] の凸包内
		x0, x1 := Xr.At(i, 0), Xr.At(i, 1)
		if x0 < 100 || x0 > 106 || x1 < -6 || x1 > 0 {
			t.Errorf("synthetic row %d = (%v, %v) outside minority hull", i, x0, x1)
		}
	}
}

func TestFitResampleDeterministic(t *testing.T) {
	X, y := imbalanced(30, 9)
	a, _, err := NewSMOTE(WithRandomState(300)).FitResample(X, y)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := NewSMOTE(WithRandomState(300)).FitResample(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(a, b) {
		t.Error("same seed must produce identical output")
	}
	c, _, _ := NewSMOTE(WithRandomState(301)).FitResample(X, y)
	if mat.Equal(a, c) {
		t.Error("different seeds should produce different synthetic rows")
	}
}

func TestFitResampleErrors(t *testing.T) {
	t.Run("minority not larger than k", func(t *testing.T) {
		X, y := imbalanced(10, 5)
		_, _, err := NewSMOTE(WithKNeighbors(5)).FitResample(X, y)
		var insErr *errors.InsufficientSamplesError
		if !errors.As(err, &insErr) {
			t.Fatalf("expected InsufficientSamplesError, got %v", err)
		}
		if insErr.Have != 5 || insErr.Need != 6 || insErr.Class != 0 {
			t.Errorf("unexpected fields: %+v", insErr)
		}
	})

	t.Run("single class", func(t *testing.T) {
		X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
		_, _, err := NewSMOTE().FitResample(X, []int{1, 1, 1, 1})
		var insErr *errors.InsufficientSamplesError
		if !errors.As(err, &insErr) {
			t.Fatalf("expected InsufficientSamplesError, got %v", err)
		}
	})

	t.Run("label count mismatch", func(t *testing.T) {
		X, _ := imbalanced(10, 7)
		_, _, err := NewSMOTE().FitResample(X, []int{0, 1})
		var shapeErr *errors.ShapeMismatchError
		if !errors.As(err, &shapeErr) {
			t.Fatalf("expected ShapeMismatchError, got %v", err)
		}
	})

	t.Run("non-binary label", func(t *testing.T) {
		X := mat.NewDense(2, 1, []float64{1, 2})
		_, _, err := NewSMOTE().FitResample(X, []int{0, 3})
		var schemaErr *errors.SchemaError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("expected SchemaError, got %v", err)
		}
	})
}

func TestNearestNeighborsTieBreaking(t *testing.T) {
	rows := [][]float64{{0}, {1}, {-1}, {2}}
	nn := nearestNeighbors(rows, 2)
	// 行0からは行1と行2が等距離。添字の小さい方が先
	if nn[0][0] != 1 || nn[0][1] != 2 {
		t.Errorf("neighbours of row 0 = %v, want [1 2]", nn[0])
	}
	if d := math.Abs(rows[nn[3][0]][0] - 2); d != 1 {
		t.Errorf("nearest of row 3 should be row 1, got %v", nn[3])
	}
}
