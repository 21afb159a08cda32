// Package preprocessing は特徴量のスケーリングを提供します。
package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// 各特徴量を学習データの最小値・最大値に基づいて指定範囲（デフォルト[-1,1]）へ線形変換する。
//
// 学習データで一定値だった特徴量は、どの入力値も範囲の中点 (lo+hi)/2 に写す。
// この列の逆変換は学習時の定数を返すため、中点以外の値については可逆ではない。
type MinMaxScaler struct {
	State *model.StateManager

	// DataMin は学習データの最小値
	DataMin []float64

	// DataMax は学習データの最大値
	DataMax []float64

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{-1, 1})
//	XScaled, err := scaler.FitTransform(X)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		State:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault は[-1,1]範囲のMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{-1.0, 1.0})
}

func (m *MinMaxScaler) validateRange() error {
	if !(m.FeatureRange[0] < m.FeatureRange[1]) {
		return errors.NewConfigurationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}
	return nil
}

// Fit は訓練データから各特徴量の最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	if err := m.validateRange(); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("MinMaxScaler.Fit", X); err != nil {
		return err
	}

	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	for j := 0; j < c; j++ {
		lo, hi := X.At(0, j), X.At(0, j)
		for i := 1; i < r; i++ {
			v := X.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi
	}

	if m.State == nil {
		m.State = model.NewStateManager()
	}
	m.State.SetFitted(c, r)
	return nil
}

func (m *MinMaxScaler) check(method string, X mat.Matrix) error {
	if m.State == nil {
		return errors.NewNotFittedError("MinMaxScaler", method)
	}
	return m.State.RequireFitted("MinMaxScaler", method, X)
}

// Transform は学習済みの最小値・最大値を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if err := m.check("Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	mid := (lo + hi) / 2
	for j := 0; j < c; j++ {
		dataRange := m.DataMax[j] - m.DataMin[j]
		for i := 0; i < r; i++ {
			if dataRange == 0 {
				result.Set(i, j, mid)
				continue
			}
			// X_scaled = (X - X.min) / (X.max - X.min) * (hi - lo) + lo
			result.Set(i, j, (X.At(i, j)-m.DataMin[j])/dataRange*(hi-lo)+lo)
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
// 一定値だった列は学習時の定数に戻る
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := m.check("InverseTransform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	for j := 0; j < c; j++ {
		dataRange := m.DataMax[j] - m.DataMin[j]
		for i := 0; i < r; i++ {
			if dataRange == 0 {
				result.Set(i, j, m.DataMin[j])
				continue
			}
			result.Set(i, j, (X.At(i, j)-lo)/(hi-lo)*dataRange+m.DataMin[j])
		}
	}
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=(%g, %g))", m.FeatureRange[0], m.FeatureRange[1])
}
