// Package metrics は分類器の評価指標を提供します。
// 比較表の R2-Score 行のため、ラベルを実数とみなした決定係数も含みます。
package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewShapeMismatchError("MSE", n, yPred.Len(), 0)
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var diff mat.VecDense
	diff.SubVec(yTrue, yPred)
	return mat.Dot(&diff, &diff) / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
// yTrue が全て同じ値の場合は scikit-learn と同様に、完全一致なら 1.0、そうでなければ 0.0 を返す
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("R2Score", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewShapeMismatchError("R2Score", n, yPred.Len(), 0)
	}

	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	rss := mse * float64(n)

	yMean := mat.Sum(yTrue) / float64(n)
	var tss float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yMean
		tss += d * d
	}

	if tss == 0 {
		if rss == 0 {
			return 1, nil
		}
		return 0, nil
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// R2ScoreLabels は 0/1 ラベルを実数とみなして R² を計算する
func R2ScoreLabels(yTrue, yPred []int) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("R2Score", "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return 0, errors.NewShapeMismatchError("R2Score", len(yTrue), len(yPred), 0)
	}
	return R2Score(mat.NewVecDense(len(yTrue), LabelsAsScores(yTrue)), mat.NewVecDense(len(yPred), LabelsAsScores(yPred)))
}
