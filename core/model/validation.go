package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// CheckFitInput は学習データを検証し、サンプル数と特徴量数を返す。
// 行数とラベル数の不一致は ShapeMismatchError、空データ・非有限値・0/1以外のラベルは ValueError。
func CheckFitInput(op string, X mat.Matrix, y []int) (nSamples, nFeatures int, err error) {
	if X == nil {
		return 0, 0, errors.NewValueError(op, "nil feature matrix")
	}
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewValueError(op, "empty training data")
	}
	if len(y) != nSamples {
		return 0, 0, errors.NewShapeMismatchError(op, nSamples, len(y), 0)
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return 0, 0, errors.NewValueError(op, fmt.Sprintf("labels must be 0 or 1, got %d at index %d", label, i))
		}
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return 0, 0, err
	}
	return nSamples, nFeatures, nil
}

// ClassCounts は 0/1 ラベルの件数を返す。
func ClassCounts(y []int) (neg, pos int) {
	for _, label := range y {
		if label == 1 {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}

// ProbaFromPositive は P(y=1) から n×2 の確率行列を作る。
func ProbaFromPositive(p []float64) *mat.Dense {
	out := mat.NewDense(len(p), 2, nil)
	for i, v := range p {
		v = math.Max(0, math.Min(1, v))
		out.Set(i, 0, 1-v)
		out.Set(i, 1, v)
	}
	return out
}

// LabelsFromProba は列1の確率が 0.5 を超える行を 1 とする。
// 同点は先のクラス (0) を選ぶ。
func LabelsFromProba(proba *mat.Dense) []int {
	n, _ := proba.Dims()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		if proba.At(i, 1) > proba.At(i, 0) {
			out[i] = 1
		}
	}
	return out
}
