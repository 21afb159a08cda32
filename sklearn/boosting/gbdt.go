// Package boosting implements a gradient boosted decision tree classifier
// with XGBoost's regularised second-order objective and its defaults.
package boosting

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/pkg/log"
)

// Node is a node of a boosted regression tree. Leaves have Feature == -1 and
// carry the already shrunk leaf weight in Value.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Gain      float64
	Cover     float64 // hessian sum
}

// Tree is one boosting round.
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		if x[t.Nodes[i].Feature] <= t.Nodes[i].Threshold {
			i = t.Nodes[i].Left
		} else {
			i = t.Nodes[i].Right
		}
	}
	return t.Nodes[i].Value
}

// GradientBoostingClassifier is a binary:logistic booster.
type GradientBoostingClassifier struct {
	State *model.StateManager

	// Hyperparameters (XGBoost names and defaults)
	NEstimators     int
	MaxDepth        int
	LearningRate    float64 // eta
	RegLambda       float64 // L2 penalty on leaf weights
	Gamma           float64 // minimum loss reduction to split
	MinChildWeight  float64 // minimum hessian sum in a child
	Subsample       float64
	ColsampleBytree float64
	BaseScore       float64 // initial P(y=1)
	RandomState     uint64

	// Learned state
	Trees       []Tree
	InitMargin  float64
	LossHistory []float64 // training log-loss after each round
	Importances []float64 // total gain per feature
}

// Option configures a GradientBoostingClassifier.
type Option func(*GradientBoostingClassifier)

// WithNEstimators sets the number of boosting rounds.
func WithNEstimators(n int) Option {
	return func(g *GradientBoostingClassifier) { g.NEstimators = n }
}

// WithMaxDepth sets the maximum tree depth.
func WithMaxDepth(d int) Option {
	return func(g *GradientBoostingClassifier) { g.MaxDepth = d }
}

// WithLearningRate sets eta.
func WithLearningRate(eta float64) Option {
	return func(g *GradientBoostingClassifier) { g.LearningRate = eta }
}

// WithRegLambda sets the L2 regularization on leaf weights.
func WithRegLambda(lambda float64) Option {
	return func(g *GradientBoostingClassifier) { g.RegLambda = lambda }
}

// WithGamma sets the minimum split loss reduction.
func WithGamma(gamma float64) Option {
	return func(g *GradientBoostingClassifier) { g.Gamma = gamma }
}

// WithMinChildWeight sets the minimum hessian sum of a child.
func WithMinChildWeight(w float64) Option {
	return func(g *GradientBoostingClassifier) { g.MinChildWeight = w }
}

// WithSubsample sets the per-round row sampling ratio.
func WithSubsample(r float64) Option {
	return func(g *GradientBoostingClassifier) { g.Subsample = r }
}

// WithColsampleBytree sets the per-round column sampling ratio.
func WithColsampleBytree(r float64) Option {
	return func(g *GradientBoostingClassifier) { g.ColsampleBytree = r }
}

// WithRandomState sets the sampling seed.
func WithRandomState(seed uint64) Option {
	return func(g *GradientBoostingClassifier) { g.RandomState = seed }
}

// NewGradientBoostingClassifier creates a booster with XGBoost defaults.
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	g := &GradientBoostingClassifier{
		State:           model.NewStateManager(),
		NEstimators:     100,
		MaxDepth:        6,
		LearningRate:    0.3,
		RegLambda:       1,
		MinChildWeight:  1,
		Subsample:       1,
		ColsampleBytree: 1,
		BaseScore:       0.5,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GetParams returns the hyperparameters.
func (g *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     g.NEstimators,
		"max_depth":        g.MaxDepth,
		"eta":              g.LearningRate,
		"reg_lambda":       g.RegLambda,
		"gamma":            g.Gamma,
		"min_child_weight": g.MinChildWeight,
		"subsample":        g.Subsample,
		"colsample_bytree": g.ColsampleBytree,
		"base_score":       g.BaseScore,
		"random_state":     int(g.RandomState),
	}
}

// SetParams sets hyperparameters by name. learning_rate is accepted as an
// alias of eta.
func (g *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			g.NEstimators, err = model.ParamInt(k, v)
		case "max_depth":
			g.MaxDepth, err = model.ParamInt(k, v)
		case "eta", "learning_rate":
			g.LearningRate, err = model.ParamFloat(k, v)
		case "reg_lambda":
			g.RegLambda, err = model.ParamFloat(k, v)
		case "gamma":
			g.Gamma, err = model.ParamFloat(k, v)
		case "min_child_weight":
			g.MinChildWeight, err = model.ParamFloat(k, v)
		case "subsample":
			g.Subsample, err = model.ParamFloat(k, v)
		case "colsample_bytree":
			g.ColsampleBytree, err = model.ParamFloat(k, v)
		case "base_score":
			g.BaseScore, err = model.ParamFloat(k, v)
		case "random_state":
			var seed int64
			seed, err = model.ParamInt64(k, v)
			g.RandomState = uint64(seed)
		default:
			return model.UnknownParam("GradientBoostingClassifier", k, v)
		}
		if err != nil {
			return err
		}
	}
	return g.validate()
}

func (g *GradientBoostingClassifier) validate() error {
	switch {
	case g.NEstimators < 1:
		return errors.NewConfigurationError("n_estimators", "must be at least 1", g.NEstimators)
	case g.MaxDepth < 1:
		return errors.NewConfigurationError("max_depth", "must be at least 1", g.MaxDepth)
	case !(g.LearningRate > 0 && g.LearningRate <= 1):
		return errors.NewConfigurationError("eta", "must be in (0, 1]", g.LearningRate)
	case g.RegLambda < 0:
		return errors.NewConfigurationError("reg_lambda", "must be non-negative", g.RegLambda)
	case g.Gamma < 0:
		return errors.NewConfigurationError("gamma", "must be non-negative", g.Gamma)
	case g.MinChildWeight < 0:
		return errors.NewConfigurationError("min_child_weight", "must be non-negative", g.MinChildWeight)
	case !(g.Subsample > 0 && g.Subsample <= 1):
		return errors.NewConfigurationError("subsample", "must be in (0, 1]", g.Subsample)
	case !(g.ColsampleBytree > 0 && g.ColsampleBytree <= 1):
		return errors.NewConfigurationError("colsample_bytree", "must be in (0, 1]", g.ColsampleBytree)
	case !(g.BaseScore > 0 && g.BaseScore < 1):
		return errors.NewConfigurationError("base_score", "must be in (0, 1)", g.BaseScore)
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters.
func (g *GradientBoostingClassifier) Clone() model.Classifier {
	c := *g
	c.State = model.NewStateManager()
	c.Trees = nil
	c.LossHistory = nil
	c.Importances = nil
	return &c
}

// trainer holds the per-fit working state.
type trainer struct {
	params *GradientBoostingClassifier
	X      *mat.Dense
	y      []int

	cols   [][]float64 // column-major copy of X
	order  [][]int     // per column, all rows in ascending value order
	inUse  []bool      // rows drawn for the current round
	goLeft []bool

	margins   []float64
	gradients []float64
	hessians  []float64
	features  []int // columns available in the current round
	rng       *rand.Rand
}

// SplitInfo contains information about a candidate split.
type SplitInfo struct {
	Feature   int
	Threshold float64
	Gain      float64
	LeftGrad  float64
	LeftHess  float64
	RightGrad float64
	RightHess float64
}

// Fit runs NEstimators boosting rounds on the logistic loss.
func (g *GradientBoostingClassifier) Fit(X mat.Matrix, y []int) error {
	n, p, err := model.CheckFitInput("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := g.validate(); err != nil {
		return err
	}

	t := &trainer{
		params:    g,
		X:         mat.DenseCopyOf(X),
		y:         y,
		margins:   make([]float64, n),
		gradients: make([]float64, n),
		hessians:  make([]float64, n),
		rng:       rand.New(rand.NewPCG(g.RandomState, g.RandomState^0x2545f4914f6cdd1d)),
		inUse:     make([]bool, n),
		goLeft:    make([]bool, n),
	}
	t.presort()
	g.InitMargin = math.Log(g.BaseScore / (1 - g.BaseScore))
	for i := range t.margins {
		t.margins[i] = g.InitMargin
	}

	logger := log.GetLoggerWithName("boosting")
	g.Trees = make([]Tree, 0, g.NEstimators)
	g.LossHistory = make([]float64, 0, g.NEstimators)
	g.Importances = make([]float64, p)
	for iter := 0; iter < g.NEstimators; iter++ {
		t.calculateGradients()
		rows := t.sampleRows()
		t.features = t.sampleColumns()

		tree := Tree{}
		t.buildNode(&tree, rows, t.roundOrder(rows), 0, g.Importances)
		g.Trees = append(g.Trees, tree)
		t.updatePredictions(&tree)

		loss := t.calculateLoss()
		g.LossHistory = append(g.LossHistory, loss)
		if iter%10 == 0 {
			logger.Debug("Training progress", log.IterationKey, iter, "loss", loss)
		}
	}

	if g.State == nil {
		g.State = model.NewStateManager()
	}
	g.State.SetFitted(p, n)
	return nil
}

// presort copies X by column and sorts every column once. Equal values keep
// ascending row order.
func (t *trainer) presort() {
	n, p := t.X.Dims()
	t.cols = make([][]float64, p)
	t.order = make([][]int, p)
	for j := 0; j < p; j++ {
		t.cols[j] = mat.Col(nil, j, t.X)
		t.order[j] = make([]int, n)
		floats.ArgsortStable(append([]float64(nil), t.cols[j]...), t.order[j])
	}
}

// roundOrder restricts the presorted columns of the round's features to rows.
// Columns outside the round stay nil.
func (t *trainer) roundOrder(rows []int) [][]int {
	for _, i := range rows {
		t.inUse[i] = true
	}
	sorted := make([][]int, len(t.order))
	for _, j := range t.features {
		kept := make([]int, 0, len(rows))
		for _, i := range t.order[j] {
			if t.inUse[i] {
				kept = append(kept, i)
			}
		}
		sorted[j] = kept
	}
	for _, i := range rows {
		t.inUse[i] = false
	}
	return sorted
}

// calculateGradients computes the logistic gradients and hessians.
func (t *trainer) calculateGradients() {
	for i, m := range t.margins {
		prob := errors.Sigmoid(m)
		t.gradients[i] = prob - float64(t.y[i])
		t.hessians[i] = prob * (1 - prob)
	}
}

// sampleRows draws round(subsample·n) rows without replacement.
func (t *trainer) sampleRows() []int {
	n := len(t.y)
	if t.params.Subsample >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	k := max(1, int(math.Round(t.params.Subsample*float64(n))))
	rows := t.rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

// sampleColumns draws round(colsample_bytree·p) columns without replacement.
func (t *trainer) sampleColumns() []int {
	_, p := t.X.Dims()
	if t.params.ColsampleBytree >= 1 {
		cols := make([]int, p)
		for j := range cols {
			cols[j] = j
		}
		return cols
	}
	k := max(1, int(math.Round(t.params.ColsampleBytree*float64(p))))
	cols := t.rng.Perm(p)[:k]
	sort.Ints(cols)
	return cols
}

// buildNode recursively builds tree nodes and accumulates split gains into
// importances. sorted[j] holds indices ordered by feature j.
func (t *trainer) buildNode(tree *Tree, indices []int, sorted [][]int, depth int, importances []float64) int {
	nodeIdx := len(tree.Nodes)
	sumGrad, sumHess := t.sums(indices)
	tree.Nodes = append(tree.Nodes, Node{
		Feature: -1,
		Value:   t.calculateLeafValue(sumGrad, sumHess),
		Cover:   sumHess,
	})

	if depth >= t.params.MaxDepth || len(indices) < 2 {
		return nodeIdx
	}
	best := t.findBestSplit(sorted, sumGrad, sumHess)
	// XGBoost prunes splits whose loss reduction does not exceed gamma
	if best.Feature < 0 || best.Gain <= 0 {
		return nodeIdx
	}

	leftIndices, rightIndices := t.splitData(indices, best)
	leftSorted, rightSorted := t.partition(sorted, len(leftIndices), len(rightIndices))
	importances[best.Feature] += best.Gain
	left := t.buildNode(tree, leftIndices, leftSorted, depth+1, importances)
	right := t.buildNode(tree, rightIndices, rightSorted, depth+1, importances)

	node := &tree.Nodes[nodeIdx]
	node.Feature = best.Feature
	node.Threshold = best.Threshold
	node.Gain = best.Gain
	node.Left = left
	node.Right = right
	return nodeIdx
}

func (t *trainer) sums(indices []int) (sumGrad, sumHess float64) {
	for _, idx := range indices {
		sumGrad += t.gradients[idx]
		sumHess += t.hessians[idx]
	}
	return sumGrad, sumHess
}

// findBestSplit finds the best split over the round's columns. Ties keep the
// first candidate found.
func (t *trainer) findBestSplit(sorted [][]int, totalGrad, totalHess float64) SplitInfo {
	best := SplitInfo{Feature: -1, Gain: math.Inf(-1)}
	for _, j := range t.features {
		if split := t.findBestSplitForFeature(sorted[j], j, totalGrad, totalHess); split.Gain > best.Gain {
			best = split
		}
	}
	return best
}

// findBestSplitForFeature scans the rows of one feature in value order.
func (t *trainer) findBestSplitForFeature(sorted []int, feature int, totalGrad, totalHess float64) SplitInfo {
	col := t.cols[feature]
	best := SplitInfo{Feature: -1, Gain: math.Inf(-1)}
	leftGrad, leftHess := 0.0, 0.0
	for i := 0; i < len(sorted)-1; i++ {
		idx := sorted[i]
		leftGrad += t.gradients[idx]
		leftHess += t.hessians[idx]

		// Skip if same value
		lo, hi := col[idx], col[sorted[i+1]]
		if lo == hi {
			continue
		}
		rightGrad := totalGrad - leftGrad
		rightHess := totalHess - leftHess
		if leftHess < t.params.MinChildWeight || rightHess < t.params.MinChildWeight {
			continue
		}

		gain := t.calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess)
		if gain > best.Gain {
			best = SplitInfo{
				Feature:   feature,
				Threshold: lo + (hi-lo)/2,
				Gain:      gain,
				LeftGrad:  leftGrad,
				LeftHess:  leftHess,
				RightGrad: rightGrad,
				RightHess: rightHess,
			}
		}
	}
	return best
}

// calculateSplitGain is XGBoost's structure score improvement minus gamma.
func (t *trainer) calculateSplitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	lambda := t.params.RegLambda
	leftScore := (leftGrad * leftGrad) / (leftHess + lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + lambda)
	return 0.5*(leftScore+rightScore-totalScore) - t.params.Gamma
}

// splitData splits indices based on a split decision and records the side
// of every row in goLeft.
func (t *trainer) splitData(indices []int, split SplitInfo) ([]int, []int) {
	var leftIndices, rightIndices []int
	col := t.cols[split.Feature]
	for _, idx := range indices {
		t.goLeft[idx] = col[idx] <= split.Threshold
		if t.goLeft[idx] {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}
	return leftIndices, rightIndices
}

// partition splits every sorted column by the sides splitData recorded,
// keeping value order.
func (t *trainer) partition(sorted [][]int, nLeft, nRight int) (left, right [][]int) {
	left = make([][]int, len(sorted))
	right = make([][]int, len(sorted))
	for j, rows := range sorted {
		if rows == nil {
			continue
		}
		l := make([]int, 0, nLeft)
		r := make([]int, 0, nRight)
		for _, i := range rows {
			if t.goLeft[i] {
				l = append(l, i)
			} else {
				r = append(r, i)
			}
		}
		left[j], right[j] = l, r
	}
	return left, right
}

// calculateLeafValue returns the shrunk optimal leaf weight -eta·G/(H+λ).
func (t *trainer) calculateLeafValue(sumGrad, sumHess float64) float64 {
	denom := sumHess + t.params.RegLambda
	if denom < 1e-10 {
		denom = 1e-10
	}
	return -t.params.LearningRate * sumGrad / denom
}

// updatePredictions adds the new tree to the cached margins of all rows.
func (t *trainer) updatePredictions(tree *Tree) {
	n, _ := t.X.Dims()
	for i := 0; i < n; i++ {
		t.margins[i] += tree.predict(t.X.RawRowView(i))
	}
}

// calculateLoss returns the mean training log-loss.
func (t *trainer) calculateLoss() float64 {
	var loss float64
	for i, m := range t.margins {
		// log(1+e^m) - y·m
		loss += math.Max(m, 0) + math.Log1p(math.Exp(-math.Abs(m))) - float64(t.y[i])*m
	}
	return loss / float64(len(t.margins))
}

// DecisionFunction returns the raw margin (log-odds) of every sample.
func (g *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) ([]float64, error) {
	if g.State == nil || len(g.Trees) == 0 {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "DecisionFunction")
	}
	if err := g.State.RequireFitted("GradientBoostingClassifier", "DecisionFunction", X); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	out := make([]float64, n)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		m := g.InitMargin
		for k := range g.Trees {
			m += g.Trees[k].predict(row)
		}
		out[i] = m
	}
	return out, nil
}

// PredictProba returns [P(y=0), P(y=1)] for every sample.
func (g *GradientBoostingClassifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	margins, err := g.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	for i, m := range margins {
		margins[i] = errors.Sigmoid(m)
	}
	return model.ProbaFromPositive(margins), nil
}

// Predict returns 1 where P(y=1) > 0.5.
func (g *GradientBoostingClassifier) Predict(X mat.Matrix) ([]int, error) {
	margins, err := g.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	pred := make([]int, len(margins))
	for i, m := range margins {
		if m > 0 {
			pred[i] = 1
		}
	}
	return pred, nil
}

// GetFeatureImportances returns the total split gain per feature normalised
// to sum to one.
func (g *GradientBoostingClassifier) GetFeatureImportances() []float64 {
	out := append([]float64(nil), g.Importances...)
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// String returns a short description of the classifier.
func (g *GradientBoostingClassifier) String() string {
	return fmt.Sprintf("GradientBoostingClassifier(n_estimators=%d, max_depth=%d, eta=%g, reg_lambda=%g)",
		g.NEstimators, g.MaxDepth, g.LearningRate, g.RegLambda)
}
