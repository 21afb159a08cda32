// Package naive_bayes implements the Gaussian naive Bayes classifier.
package naive_bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// GaussianNB は各特徴量がクラスごとに独立な正規分布に従うと仮定する分類器。
// scikit-learn と同様に、全特徴量の最大分散に VarSmoothing を掛けた値を
// すべての分散に加えて数値的に安定させる。
type GaussianNB struct {
	State *model.StateManager

	// ハイパーパラメータ
	VarSmoothing float64

	// 学習結果
	ClassPrior [2]float64
	ClassCount [2]float64
	Theta      [2][]float64 // クラスごとの平均
	Var        [2][]float64 // クラスごとの分散 (平滑化済み)
	Epsilon    float64
}

// NewGaussianNB は既定値 var_smoothing=1e-9 の GaussianNB を作成する。
func NewGaussianNB() *GaussianNB {
	return &GaussianNB{State: model.NewStateManager(), VarSmoothing: 1e-9}
}

// GetParams はハイパーパラメータを返す。
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{"var_smoothing": nb.VarSmoothing}
}

// SetParams はハイパーパラメータを設定する。
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "var_smoothing":
			s, err := model.ParamFloat(k, v)
			if err != nil {
				return err
			}
			nb.VarSmoothing = s
		default:
			return model.UnknownParam("GaussianNB", k, v)
		}
	}
	if nb.VarSmoothing < 0 {
		return errors.NewConfigurationError("var_smoothing", "must be non-negative", nb.VarSmoothing)
	}
	return nil
}

// Clone はハイパーパラメータのみを引き継いだ未学習のコピーを返す。
func (nb *GaussianNB) Clone() model.Classifier {
	return &GaussianNB{State: model.NewStateManager(), VarSmoothing: nb.VarSmoothing}
}

// Fit はクラスごとの平均・分散・事前確率を推定する。
// 片方のクラスしか存在しない場合、そのクラスの事前確率が1になる。
// エラー時は学習結果を書き換えない。
func (nb *GaussianNB) Fit(X mat.Matrix, y []int) error {
	nSamples, nFeatures, err := model.CheckFitInput("GaussianNB.Fit", X, y)
	if err != nil {
		return err
	}

	cols := make([][]float64, nFeatures)
	var maxVar float64
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
		if v := stat.PopVariance(cols[j], nil); v > maxVar {
			maxVar = v
		}
	}
	eps := nb.VarSmoothing * maxVar

	var (
		members      [2][]int
		count, prior [2]float64
		theta, vars  [2][]float64
	)
	for i, label := range y {
		members[label] = append(members[label], i)
	}
	for c := 0; c < 2; c++ {
		count[c] = float64(len(members[c]))
		prior[c] = count[c] / float64(nSamples)
		theta[c] = make([]float64, nFeatures)
		vars[c] = make([]float64, nFeatures)
		if len(members[c]) == 0 {
			continue
		}
		values := make([]float64, len(members[c]))
		for j := 0; j < nFeatures; j++ {
			for k, i := range members[c] {
				values[k] = cols[j][i]
			}
			mean, variance := stat.PopMeanVariance(values, nil)
			// 全特徴量が定数だと分散が0になり尤度が定義できない
			if variance+eps <= 0 {
				return errors.NewValueError("GaussianNB.Fit",
					fmt.Sprintf("zero variance for feature %d of class %d; increase var_smoothing", j, c))
			}
			theta[c][j] = mean
			vars[c][j] = variance + eps
		}
	}

	nb.ClassCount, nb.ClassPrior = count, prior
	nb.Theta, nb.Var = theta, vars
	nb.Epsilon = eps
	if nb.State == nil {
		nb.State = model.NewStateManager()
	}
	nb.State.SetFitted(nFeatures, nSamples)
	return nil
}

// jointLogLikelihood は log P(c) + Σ log N(x_j | θ_cj, σ²_cj) を返す。
// 学習データに存在しないクラスは -Inf。
func (nb *GaussianNB) jointLogLikelihood(x []float64) [2]float64 {
	var jll [2]float64
	for c := 0; c < 2; c++ {
		if nb.ClassCount[c] == 0 {
			jll[c] = math.Inf(-1)
			continue
		}
		ll := math.Log(nb.ClassPrior[c])
		for j, xj := range x {
			v := nb.Var[c][j]
			d := xj - nb.Theta[c][j]
			ll -= 0.5*math.Log(2*math.Pi*v) + d*d/(2*v)
		}
		jll[c] = ll
	}
	return jll
}

// PredictProba は事後確率を log-sum-exp で正規化して返す。
func (nb *GaussianNB) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if nb.State == nil {
		return nil, errors.NewNotFittedError("GaussianNB", "PredictProba")
	}
	if err := nb.State.RequireFitted("GaussianNB", "PredictProba", X); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	out := mat.NewDense(n, 2, nil)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		jll := nb.jointLogLikelihood(row)
		norm := floats.LogSumExp(jll[:])
		out.Set(i, 0, math.Exp(jll[0]-norm))
		out.Set(i, 1, math.Exp(jll[1]-norm))
	}
	return out, nil
}

// Predict は事後確率が最大のクラスを返す。
func (nb *GaussianNB) Predict(X mat.Matrix) ([]int, error) {
	proba, err := nb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.LabelsFromProba(proba), nil
}

// String は分類器の簡単な説明を返す。
func (nb *GaussianNB) String() string {
	return fmt.Sprintf("GaussianNB(var_smoothing=%g)", nb.VarSmoothing)
}
