// Package tree implements a CART decision tree classifier compatible with
// scikit-learn's DecisionTreeClassifier for binary labels.
package tree

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// Node is one node of the fitted tree. Leaves have Feature == -1.
// Samples with X[Feature] <= Threshold go to Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     [2]float64 // class fractions at this node
	NSamples  int
	Impurity  float64
}

// DecisionTreeClassifier is a CART classifier. Fields are exported for gob
// persistence; use the options or SetParams to configure it.
type DecisionTreeClassifier struct {
	State *model.StateManager

	// Hyperparameters
	Criterion       string // "gini" or "entropy"
	MaxDepth        int    // 0 = unlimited
	MaxFeatures     string // "", "sqrt", "log2", "auto" or an integer
	MinSamplesSplit int
	MinSamplesLeaf  int
	RandomState     uint64

	// Learned state
	Nodes              []Node
	FeatureImportances []float64
}

// Option is a functional option for DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the split quality measure.
func WithCriterion(c string) Option {
	return func(t *DecisionTreeClassifier) { t.Criterion = c }
}

// WithMaxDepth sets the maximum depth (0 = unlimited).
func WithMaxDepth(d int) Option {
	return func(t *DecisionTreeClassifier) { t.MaxDepth = d }
}

// WithMaxFeatures sets the number of features considered per split.
func WithMaxFeatures(mf string) Option {
	return func(t *DecisionTreeClassifier) { t.MaxFeatures = mf }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples required in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}

// WithRandomState sets the seed of the feature sampling.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	t := &DecisionTreeClassifier{
		State:           model.NewStateManager(),
		Criterion:       "gini",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetParams returns the hyperparameters.
func (t *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         t.Criterion,
		"max_depth":         t.MaxDepth,
		"max_features":      t.MaxFeatures,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"random_state":      int(t.RandomState),
	}
}

// SetParams sets hyperparameters by name.
func (t *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "criterion":
			t.Criterion, err = model.ParamString(k, v)
		case "max_depth":
			t.MaxDepth, err = ParamMaxDepth(k, v)
		case "max_features":
			t.MaxFeatures, err = ParamMaxFeatures(k, v)
		case "min_samples_split":
			t.MinSamplesSplit, err = model.ParamInt(k, v)
		case "min_samples_leaf":
			t.MinSamplesLeaf, err = model.ParamInt(k, v)
		case "random_state":
			var seed int64
			seed, err = model.ParamInt64(k, v)
			t.RandomState = uint64(seed)
		default:
			return model.UnknownParam("DecisionTreeClassifier", k, v)
		}
		if err != nil {
			return err
		}
	}
	return t.validate()
}

func (t *DecisionTreeClassifier) validate() error {
	if err := model.OneOf("criterion", t.Criterion, "gini", "entropy"); err != nil {
		return err
	}
	if t.MaxDepth < 0 {
		return errors.NewConfigurationError("max_depth", "must be non-negative (0 = unlimited)", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return errors.NewConfigurationError("min_samples_split", "must be at least 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewConfigurationError("min_samples_leaf", "must be at least 1", t.MinSamplesLeaf)
	}
	if _, err := ResolveMaxFeatures(t.MaxFeatures, 1); err != nil {
		return err
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (t *DecisionTreeClassifier) Clone() model.Classifier {
	return &DecisionTreeClassifier{
		State:           model.NewStateManager(),
		Criterion:       t.Criterion,
		MaxDepth:        t.MaxDepth,
		MaxFeatures:     t.MaxFeatures,
		MinSamplesSplit: t.MinSamplesSplit,
		MinSamplesLeaf:  t.MinSamplesLeaf,
		RandomState:     t.RandomState,
	}
}

// ParamMaxDepth accepts an integer or nil (unlimited).
func ParamMaxDepth(name string, v interface{}) (int, error) {
	if v == nil {
		return 0, nil
	}
	return model.ParamInt(name, v)
}

// ParamMaxFeatures accepts "sqrt", "log2", "auto", "", nil or an integer.
func ParamMaxFeatures(name string, v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	}
	n, err := model.ParamInt(name, v)
	if err != nil {
		return "", errors.NewConfigurationError(name, `must be "sqrt", "log2", "auto", "" or an integer`, v)
	}
	return strconv.Itoa(n), nil
}

// ResolveMaxFeatures returns how many features to consider per split.
func ResolveMaxFeatures(value string, nFeatures int) (int, error) {
	var k int
	switch value {
	case "", "none", "None":
		k = nFeatures
	case "sqrt", "auto":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	default:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return 0, errors.NewConfigurationError("max_features", `must be "sqrt", "log2", "auto", "" or a positive integer`, value)
		}
		k = n
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k, nil
}

// Fit builds the tree from the training data.
func (t *DecisionTreeClassifier) Fit(X mat.Matrix, y []int) error {
	n, p, err := model.CheckFitInput("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := t.validate(); err != nil {
		return err
	}
	mf, err := ResolveMaxFeatures(t.MaxFeatures, p)
	if err != nil {
		return err
	}

	cols := columns(X)
	b := &builder{
		cols:     cols,
		y:        y,
		maxDepth: t.MaxDepth,
		minSplit: t.MinSamplesSplit,
		minLeaf:  t.MinSamplesLeaf,
		mf:       mf,
		rng:      rand.New(rand.NewPCG(t.RandomState, t.RandomState^0xda3e39cb94b95bdb)),
		entropy:  t.Criterion == "entropy",
		imp:      make([]float64, p),
		goLeft:   make([]bool, n),
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	b.build(idx, argsortColumns(cols), 0)

	var total float64
	for _, v := range b.imp {
		total += v
	}
	if total > 0 {
		for j := range b.imp {
			b.imp[j] /= total
		}
	}

	t.Nodes = b.nodes
	t.FeatureImportances = b.imp
	if t.State == nil {
		t.State = model.NewStateManager()
	}
	t.State.SetFitted(p, n)
	return nil
}

func columns(X mat.Matrix) [][]float64 {
	n, p := X.Dims()
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			cols[j][i] = X.At(i, j)
		}
	}
	return cols
}

// argsortColumns returns, per column, the row indices in ascending value
// order. Equal values keep ascending row order.
func argsortColumns(cols [][]float64) [][]int {
	order := make([][]int, len(cols))
	for j, col := range cols {
		order[j] = make([]int, len(col))
		floats.ArgsortStable(append([]float64(nil), col...), order[j])
	}
	return order
}

type builder struct {
	cols     [][]float64
	goLeft   []bool
	y        []int
	maxDepth int
	minSplit int
	minLeaf  int
	mf       int
	rng      *rand.Rand
	entropy  bool
	nodes    []Node
	imp      []float64
	nRoot    float64
}

func (b *builder) impurity(n0, n1 float64) float64 {
	n := n0 + n1
	if n == 0 {
		return 0
	}
	p0, p1 := n0/n, n1/n
	if b.entropy {
		var h float64
		if p0 > 0 {
			h -= p0 * math.Log2(p0)
		}
		if p1 > 0 {
			h -= p1 * math.Log2(p1)
		}
		return h
	}
	return 1 - p0*p0 - p1*p1
}

// build grows the subtree over idx. sorted[f] holds the same rows ordered by
// feature f and is partitioned, not re-sorted, on every split.
func (b *builder) build(idx []int, sorted [][]int, depth int) int {
	var n1 int
	for _, i := range idx {
		n1 += b.y[i]
	}
	n := len(idx)
	n0 := n - n1
	if depth == 0 {
		b.nRoot = float64(n)
	}
	imp := b.impurity(float64(n0), float64(n1))

	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Feature:  -1,
		Value:    [2]float64{float64(n0) / float64(n), float64(n1) / float64(n)},
		NSamples: n,
		Impurity: imp,
	})

	if (b.maxDepth > 0 && depth >= b.maxDepth) || n < b.minSplit || n < 2*b.minLeaf || imp <= 1e-12 {
		return id
	}
	feature, threshold, childImp, ok := b.bestSplit(sorted, n0, n1)
	if !ok {
		return id
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, i := range idx {
		b.goLeft[i] = b.cols[feature][i] <= threshold
		if b.goLeft[i] {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	leftSorted := make([][]int, len(sorted))
	rightSorted := make([][]int, len(sorted))
	for f, rows := range sorted {
		l := make([]int, 0, len(left))
		r := make([]int, 0, len(right))
		for _, i := range rows {
			if b.goLeft[i] {
				l = append(l, i)
			} else {
				r = append(r, i)
			}
		}
		leftSorted[f], rightSorted[f] = l, r
	}
	b.imp[feature] += (float64(n)*imp - childImp) / b.nRoot

	l := b.build(left, leftSorted, depth+1)
	r := b.build(right, rightSorted, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit returns the split minimising the weighted child impurity
// nL*impL + nR*impR. Features are drawn in random order when mf < p; constant
// features do not count towards mf. The first best split found wins ties.
func (b *builder) bestSplit(sortedRows [][]int, n0, n1 int) (feature int, threshold, score float64, ok bool) {
	p := len(b.cols)
	var order []int
	if b.mf < p {
		order = b.rng.Perm(p)
	} else {
		order = make([]int, p)
		for j := range order {
			order[j] = j
		}
	}

	n := n0 + n1
	score = math.Inf(1)
	visited := 0
	for _, f := range order {
		if visited >= b.mf {
			break
		}
		col := b.cols[f]
		sorted := sortedRows[f]
		if col[sorted[0]] == col[sorted[n-1]] {
			continue
		}
		visited++

		var l0, l1 int
		for i := 1; i < n; i++ {
			if b.y[sorted[i-1]] == 1 {
				l1++
			} else {
				l0++
			}
			if i < b.minLeaf || n-i < b.minLeaf {
				continue
			}
			lo, hi := col[sorted[i-1]], col[sorted[i]]
			if lo == hi {
				continue
			}
			r0, r1 := n0-l0, n1-l1
			s := float64(i)*b.impurity(float64(l0), float64(l1)) + float64(n-i)*b.impurity(float64(r0), float64(r1))
			if s < score {
				score = s
				feature = f
				threshold = lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				ok = true
			}
		}
	}
	return feature, threshold, score, ok
}

func (t *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *Node {
	node := &t.Nodes[0]
	for node.Feature >= 0 {
		if X.At(i, node.Feature) <= node.Threshold {
			node = &t.Nodes[node.Left]
		} else {
			node = &t.Nodes[node.Right]
		}
	}
	return node
}

func (t *DecisionTreeClassifier) checkFitted(method string, X mat.Matrix) error {
	if t.State == nil || len(t.Nodes) == 0 {
		return errors.NewNotFittedError("DecisionTreeClassifier", method)
	}
	return t.State.RequireFitted("DecisionTreeClassifier", method, X)
}

// PredictProba returns the class fractions of the leaf each sample falls in.
func (t *DecisionTreeClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if err := t.checkFitted("PredictProba", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		v := t.leaf(X, i).Value
		out.Set(i, 0, v[0])
		out.Set(i, 1, v[1])
	}
	return out, nil
}

// Predict returns the majority class of each sample's leaf.
func (t *DecisionTreeClassifier) Predict(X mat.Matrix) ([]int, error) {
	proba, err := t.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.LabelsFromProba(proba), nil
}

// Score returns the mean accuracy on (X, y).
func (t *DecisionTreeClassifier) Score(X mat.Matrix, y []int) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	if len(pred) != len(y) {
		return 0, errors.NewShapeMismatchError("DecisionTreeClassifier.Score", len(pred), len(y), 0)
	}
	correct := 0
	for i := range y {
		if pred[i] == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y)), nil
}

// GetFeatureImportances returns the normalised impurity decrease per feature.
func (t *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), t.FeatureImportances...)
}

// GetDepth returns the depth of the fitted tree (a single leaf has depth 0).
func (t *DecisionTreeClassifier) GetDepth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var depth func(i int) int
	depth = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(0)
}

// GetNLeaves returns the number of leaves.
func (t *DecisionTreeClassifier) GetNLeaves() int {
	leaves := 0
	for _, n := range t.Nodes {
		if n.Feature < 0 {
			leaves++
		}
	}
	return leaves
}

// String returns a short description of the classifier.
func (t *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, max_features=%q, random_state=%d)",
		t.Criterion, t.MaxDepth, t.MaxFeatures, t.RandomState)
}
