// Package model_selection provides the train/test split, k-fold splitters and
// exhaustive grid search with cross-validation.
package model_selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// Split is a disjoint train/test partition.
type Split struct {
	XTrain *mat.Dense
	XTest  *mat.Dense
	YTrain []int
	YTest  []int

	TrainIndices []int
	TestIndices  []int
}

// TrainTestSplit shuffles the row indices with a PCG source seeded by seed and
// puts the first ceil(testSize*n) of them into the test set. The split is not
// stratified.
func TrainTestSplit(X mat.Matrix, y []int, testSize float64, seed uint64) (*Split, error) {
	const op = "TrainTestSplit"
	n, _ := X.Dims()
	if len(y) != n {
		return nil, errors.NewShapeMismatchError(op, n, len(y), 0)
	}
	if !(testSize > 0 && testSize < 1) {
		return nil, errors.NewConfigurationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, errors.NewConfigurationError("test_size",
			"leaves an empty train or test set", testSize)
	}

	perm := Permutation(n, seed)
	test := append([]int(nil), perm[:nTest]...)
	train := append([]int(nil), perm[nTest:]...)

	return &Split{
		XTrain:       SelectRows(X, train),
		XTest:        SelectRows(X, test),
		YTrain:       SelectLabels(y, train),
		YTest:        SelectLabels(y, test),
		TrainIndices: train,
		TestIndices:  test,
	}, nil
}

// Permutation returns a seeded permutation of [0, n).
func Permutation(n int, seed uint64) []int {
	r := rand.New(rand.NewPCG(seed, seed))
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	r.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	return indices
}

// SelectRows copies the given rows of X into a new matrix.
func SelectRows(X mat.Matrix, indices []int) *mat.Dense {
	_, p := X.Dims()
	out := mat.NewDense(len(indices), p, nil)
	for i, idx := range indices {
		for j := 0; j < p; j++ {
			out.Set(i, j, X.At(idx, j))
		}
	}
	return out
}

// SelectLabels copies the given entries of y.
func SelectLabels(y []int, indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = y[idx]
	}
	return out
}
