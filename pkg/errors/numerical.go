package errors

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// NumericalInstabilityError は NaN / Inf を検出した場合のエラーです。
// 入力行列の検査と、学習中に重みが発散した場合の両方で使います。
type NumericalInstabilityError struct {
	Operation string  // 検出した処理（例: "MinMaxScaler.Fit"）
	Location  string  // 値の位置（例: "row 3, column 7", "weight 2"）
	Value     float64 // 最初に見つかった非有限値
	Iteration int     // 学習の反復回数。入力検査では 0
}

func (e *NumericalInstabilityError) Error() string {
	msg := fmt.Sprintf("pdbench: %s: non-finite value %v at %s", e.Operation, e.Value, e.Location)
	if e.Iteration > 0 {
		msg += fmt.Sprintf(" (iteration %d)", e.Iteration)
	}
	return msg
}

// MarshalZerologObject は zerolog のログイベントに検出位置を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Str("location", e.Location).
		Float64("value", e.Value).
		Int("iteration", e.Iteration)
}

// NewNumericalInstabilityError はスタックトレース付きの NumericalInstabilityError を返します。
func NewNumericalInstabilityError(operation, location string, value float64, iteration int) error {
	return WithStack(&NumericalInstabilityError{
		Operation: operation,
		Location:  location,
		Value:     value,
		Iteration: iteration,
	})
}

// CheckMatrix は行列を走査し、最初の NaN / Inf を NumericalInstabilityError として返します。
func CheckMatrix(operation string, m interface {
	Dims() (int, int)
	At(int, int) float64
}) error {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return NewNumericalInstabilityError(operation, fmt.Sprintf("row %d, column %d", i, j), v, 0)
			}
		}
	}
	return nil
}

// CheckVector は CheckMatrix のスライス版です。
func CheckVector(operation, name string, v []float64, iteration int) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return NewNumericalInstabilityError(operation, fmt.Sprintf("%s %d", name, i), x, iteration)
		}
	}
	return nil
}

// Sigmoid は 1/(1+exp(-z)) を |z| が大きくてもオーバーフローせずに計算します。
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}
