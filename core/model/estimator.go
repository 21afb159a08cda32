// Package model は全ての分類器が満たす共通の契約と、学習状態・パラメータ・永続化の
// 共通処理を提供します。
package model

import "gonum.org/v1/gonum/mat"

// Classifier は二値分類器のインターフェース。
// ラベルは 0 (healthy) と 1 (disease) の整数で表す。
type Classifier interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X mat.Matrix, y []int) error

	// Predict は入力データに対するクラスラベルを予測する
	Predict(X mat.Matrix) ([]int, error)

	// GetParams はハイパーパラメータを返す
	GetParams() map[string]interface{}

	// SetParams はハイパーパラメータを設定する。未知の名前や型の誤りは ConfigurationError
	SetParams(params map[string]interface{}) error

	// Clone は同じハイパーパラメータを持つ未学習のインスタンスを作成する
	Clone() Classifier
}

// ProbabilisticClassifier はクラス確率を出力できる分類器。
type ProbabilisticClassifier interface {
	Classifier

	// PredictProba は n×2 の行列を返す。列1が P(status=1)
	PredictProba(X mat.Matrix) (*mat.Dense, error)
}
