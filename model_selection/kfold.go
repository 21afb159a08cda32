package model_selection

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// Fold holds the indices of one cross-validation split.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter generates cross-validation folds.
type Splitter interface {
	Split(X mat.Matrix, y []int) ([]Fold, error)
	GetNSplits() int
}

// KFold splits samples into consecutive folds.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a new KFold splitter.
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int { return kf.NSplits }

// Split generates train/test indices. The first n % k folds get one extra sample.
func (kf *KFold) Split(X mat.Matrix, _ []int) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if kf.NSplits < 2 {
		return nil, errors.NewConfigurationError("cv", "must be at least 2", kf.NSplits)
	}
	if kf.NSplits > nSamples {
		return nil, errors.NewConfigurationError("cv", "cannot exceed the number of samples", kf.NSplits)
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		indices = Permutation(nSamples, kf.RandomSeed)
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		inTest := make(map[int]bool, testSize)
		test := make([]int, testSize)
		copy(test, indices[current:current+testSize])
		for _, idx := range test {
			inTest[idx] = true
		}

		train := make([]int, 0, nSamples-testSize)
		for _, idx := range indices {
			if !inTest[idx] {
				train = append(train, idx)
			}
		}
		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds, nil
}

// StratifiedKFold preserves the class proportions in every fold.
// Classes are processed in ascending label order so the folds are deterministic.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewStratifiedKFold creates a new StratifiedKFold splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed uint64) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (skf *StratifiedKFold) GetNSplits() int { return skf.NSplits }

// Split generates stratified train/test indices. Each class must have at
// least NSplits members.
func (skf *StratifiedKFold) Split(X mat.Matrix, y []int) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if len(y) != nSamples {
		return nil, errors.NewShapeMismatchError("StratifiedKFold.Split", nSamples, len(y), 0)
	}
	if skf.NSplits < 2 {
		return nil, errors.NewConfigurationError("cv", "must be at least 2", skf.NSplits)
	}

	var classIndices [2][]int
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, errors.NewValueError("StratifiedKFold.Split", "labels must be 0 or 1")
		}
		classIndices[label] = append(classIndices[label], i)
	}
	for class, indices := range classIndices {
		if len(indices) > 0 && len(indices) < skf.NSplits {
			return nil, errors.NewInsufficientSamplesError("StratifiedKFold.Split", class, len(indices), skf.NSplits)
		}
	}

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(skf.RandomSeed, skf.RandomSeed))
		for _, indices := range classIndices {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
	}

	inTest := make([][]bool, skf.NSplits)
	for i := range inTest {
		inTest[i] = make([]bool, nSamples)
	}
	for _, indices := range classIndices {
		nClass := len(indices)
		foldSize := nClass / skf.NSplits
		remainder := nClass % skf.NSplits

		current := 0
		for i := 0; i < skf.NSplits; i++ {
			testSize := foldSize
			if i < remainder {
				testSize++
			}
			for j := 0; j < testSize && current < nClass; j++ {
				inTest[i][indices[current]] = true
				current++
			}
		}
	}

	// 各フォールドの添字は昇順
	folds := make([]Fold, skf.NSplits)
	for i := range folds {
		for j := 0; j < nSamples; j++ {
			if inTest[i][j] {
				folds[i].TestIndices = append(folds[i].TestIndices, j)
			} else {
				folds[i].TrainIndices = append(folds[i].TrainIndices, j)
			}
		}
	}
	return folds, nil
}
