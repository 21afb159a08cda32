// Package sampling balances binary class distributions by synthetic minority
// oversampling (SMOTE).
package sampling

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/pkg/log"
)

// SMOTE generates synthetic minority samples by interpolating between a
// minority sample and one of its k nearest minority neighbours.
type SMOTE struct {
	kNeighbors  int
	randomState uint64
}

// Option configures a SMOTE balancer.
type Option func(*SMOTE)

// WithKNeighbors sets the number of nearest neighbours used for interpolation.
func WithKNeighbors(k int) Option {
	return func(s *SMOTE) { s.kNeighbors = k }
}

// WithRandomState sets the seed of the sample and gap draws.
func WithRandomState(seed uint64) Option {
	return func(s *SMOTE) { s.randomState = seed }
}

// NewSMOTE creates a balancer with k=5 and seed 0.
func NewSMOTE(opts ...Option) *SMOTE {
	s := &SMOTE{kNeighbors: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KNeighbors returns the configured neighbour count.
func (s *SMOTE) KNeighbors() int { return s.kNeighbors }

// FitResample returns a balanced copy of (X, y). The original rows come
// first, followed by the synthetic minority rows. Output is deterministic for
// a given seed.
func (s *SMOTE) FitResample(X mat.Matrix, y []int) (*mat.Dense, []int, error) {
	const op = "SMOTE.FitResample"
	if s.kNeighbors < 1 {
		return nil, nil, errors.NewConfigurationError("k_neighbors", "must be at least 1", s.kNeighbors)
	}
	n, p := X.Dims()
	if len(y) != n {
		return nil, nil, errors.NewShapeMismatchError(op, n, len(y), 0)
	}
	if n == 0 {
		return nil, nil, errors.NewValueError(op, "empty input")
	}

	var idx [2][]int
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, nil, errors.NewSchemaError("status", i+1, "label is not binary")
		}
		idx[label] = append(idx[label], i)
	}

	minority := 1
	if len(idx[0]) < len(idx[1]) {
		minority = 0
	}
	majority := 1 - minority
	nMin, nMaj := len(idx[minority]), len(idx[majority])

	outX := mat.NewDense(n, p, nil)
	outX.Copy(X)
	outY := append([]int(nil), y...)
	if nMin == nMaj {
		return outX, outY, nil
	}
	if nMin <= s.kNeighbors {
		return nil, nil, errors.NewInsufficientSamplesError(op, minority, nMin, s.kNeighbors+1)
	}

	rows := make([][]float64, nMin)
	for i, r := range idx[minority] {
		rows[i] = mat.Row(nil, r, X)
	}
	neighbors := nearestNeighbors(rows, s.kNeighbors)

	nNew := nMaj - nMin
	rng := rand.New(rand.NewPCG(s.randomState, s.randomState^0x9e3779b97f4a7c15))
	synthetic := mat.NewDense(nNew, p, nil)
	diff := make([]float64, p)
	for i := 0; i < nNew; i++ {
		base := rng.IntN(nMin)
		nn := neighbors[base][rng.IntN(s.kNeighbors)]
		gap := rng.Float64()

		floats.SubTo(diff, rows[nn], rows[base])
		row := synthetic.RawRowView(i)
		floats.AddScaledTo(row, rows[base], gap, diff)
	}

	result := mat.NewDense(n+nNew, p, nil)
	result.Stack(outX, synthetic)
	for i := 0; i < nNew; i++ {
		outY = append(outY, minority)
	}

	log.GetLoggerWithName("sampling").Debug("SMOTE resampled",
		log.OperationKey, log.OperationBalance,
		"minority_class", minority,
		"synthetic", nNew,
		log.SamplesKey, n+nNew,
	)
	return result, outY, nil
}

// nearestNeighbors returns, for each row, the indices of its k nearest other
// rows by Euclidean distance. Ties are broken by index.
func nearestNeighbors(rows [][]float64, k int) [][]int {
	n := len(rows)
	out := make([][]int, n)
	order := make([]int, 0, n-1)
	dist := make([]float64, n)
	for i := range rows {
		order = order[:0]
		for j := range rows {
			if j == i {
				continue
			}
			dist[j] = floats.Distance(rows[i], rows[j], 2)
			order = append(order, j)
		}
		sort.SliceStable(order, func(a, b int) bool {
			return dist[order[a]] < dist[order[b]]
		})
		out[i] = append([]int(nil), order[:k]...)
	}
	return out
}
