package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// PanicError は推定器の Fit / Predict 内で発生した panic を変換したエラーです。
// 1 モデルの panic が実行全体を落とさないよう、パイプラインは各モデルの学習を
// SafeExecute で囲みます。
type PanicError struct {
	Operation string      // panic を回収した処理名（例: "pipeline.Train.SVM"）
	Value     interface{} // panic() に渡された値
	Stack     string      // 回収時点のスタックトレース
	Prior     error       // panic 前に関数が既に返そうとしていたエラー
}

func (e *PanicError) Error() string {
	if e.Prior != nil {
		return fmt.Sprintf("panic in %s: %v (after error: %v)", e.Operation, e.Value, e.Prior)
	}
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.Value)
}

// Unwrap は panic 値がエラーであればそれを、加えて Prior を返します。
func (e *PanicError) Unwrap() []error {
	var errs []error
	if err, ok := e.Value.(error); ok {
		errs = append(errs, err)
	}
	if e.Prior != nil {
		errs = append(errs, e.Prior)
	}
	return errs
}

// MarshalZerologObject は zerolog のログイベントに panic 情報を追加します。
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "PanicError").
		Str("operation", e.Operation).
		Str("panic", fmt.Sprint(e.Value))
}

// Recover は defer で使用し、panic を *err に代入される PanicError へ変換します。
//
//	func (c *SVC) Fit(X mat.Matrix, y []int) (err error) {
//	    defer errors.Recover(&err, "SVC.Fit")
//	    ...
//	}
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	*err = &PanicError{
		Operation: operation,
		Value:     r,
		Stack:     string(debug.Stack()),
		Prior:     *err,
	}
}

// SafeExecute は fn を実行し、panic を PanicError として返します。
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
