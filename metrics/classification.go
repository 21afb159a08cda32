package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// 二値分類の評価指標。ラベルは 0/1、陽性クラスは 1。
// 分母が0になる指標は scikit-learn の zero_division=0 と同様に 0 を返し、
// UndefinedMetricWarning を発生させる。

// ConfusionMatrix は二値分類の混同行列
type ConfusionMatrix struct {
	TN, FP, FN, TP int
}

// Total はサンプル数を返す
func (c ConfusionMatrix) Total() int { return c.TN + c.FP + c.FN + c.TP }

func checkLabels(op string, yTrue, yPred []int) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty label vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewShapeMismatchError(op, len(yTrue), len(yPred), 0)
	}
	for i := range yTrue {
		if (yTrue[i] != 0 && yTrue[i] != 1) || (yPred[i] != 0 && yPred[i] != 1) {
			return errors.NewValueError(op, fmt.Sprintf("labels must be 0 or 1 (index %d)", i))
		}
	}
	return nil
}

// NewConfusionMatrix は正解ラベルと予測ラベルから混同行列を作る
func NewConfusionMatrix(yTrue, yPred []int) (ConfusionMatrix, error) {
	var c ConfusionMatrix
	if err := checkLabels("ConfusionMatrix", yTrue, yPred); err != nil {
		return c, err
	}
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			c.TP++
		case yTrue[i] == 0 && yPred[i] == 1:
			c.FP++
		case yTrue[i] == 1 && yPred[i] == 0:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred []int) (float64, error) {
	c, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return float64(c.TP+c.TN) / float64(c.Total()), nil
}

// Precision は陽性クラスの適合率 TP/(TP+FP) を計算する
func Precision(yTrue, yPred []int) (float64, error) {
	c, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return c.precision(), nil
}

// Recall は陽性クラスの再現率 TP/(TP+FN) を計算する
func Recall(yTrue, yPred []int) (float64, error) {
	c, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return c.recall(), nil
}

// F1 は適合率と再現率の調和平均 2TP/(2TP+FP+FN) を計算する
func F1(yTrue, yPred []int) (float64, error) {
	c, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return c.f1(), nil
}

func (c ConfusionMatrix) precision() float64 {
	if c.TP+c.FP == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

func (c ConfusionMatrix) recall() float64 {
	if c.TP+c.FN == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

func (c ConfusionMatrix) f1() float64 {
	den := 2*c.TP + c.FP + c.FN
	if den == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("f1", "no true nor predicted samples", 0))
		return 0
	}
	return float64(2*c.TP) / float64(den)
}

// ROCCurve は陽性クラスのスコアから ROC 曲線を計算する。
// しきい値はスコアの降順に並んだ異なる値で、先頭に +Inf 相当の点 (0,0) を置く。
// 同じスコアのサンプルは一つの点にまとめる。
func ROCCurve(yTrue []int, scores []float64) (fpr, tpr, thresholds []float64, err error) {
	const op = "ROCCurve"
	if len(yTrue) == 0 {
		return nil, nil, nil, errors.NewValueError(op, "empty label vector")
	}
	if len(scores) != len(yTrue) {
		return nil, nil, nil, errors.NewShapeMismatchError(op, len(yTrue), len(scores), 0)
	}
	var nPos, nNeg int
	for i, y := range yTrue {
		switch y {
		case 1:
			nPos++
		case 0:
			nNeg++
		default:
			return nil, nil, nil, errors.NewValueError(op, fmt.Sprintf("labels must be 0 or 1 (index %d)", i))
		}
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	first := scores[order[0]] + 1
	fpr = []float64{0}
	tpr = []float64{0}
	thresholds = []float64{first}

	var tp, fp int
	for k, idx := range order {
		if yTrue[idx] == 1 {
			tp++
		} else {
			fp++
		}
		if k+1 < len(order) && scores[order[k+1]] == scores[idx] {
			continue
		}
		fpr = append(fpr, ratio(fp, nNeg))
		tpr = append(tpr, ratio(tp, nPos))
		thresholds = append(thresholds, scores[idx])
	}
	if nPos == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("tpr", "no positive samples in y_true", 0))
	}
	if nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("fpr", "no negative samples in y_true", 0))
	}
	return fpr, tpr, thresholds, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// AUC は ROC 曲線下面積を台形則で計算する。
// y_true が片方のクラスしか含まない場合は定義できないため 0.5 を返す。
func AUC(yTrue []int, scores []float64) (float64, error) {
	var nPos int
	for _, y := range yTrue {
		if y == 1 {
			nPos++
		}
	}
	if len(yTrue) > 0 && len(scores) == len(yTrue) && (nPos == 0 || nPos == len(yTrue)) {
		for _, y := range yTrue {
			if y != 0 && y != 1 {
				return 0, errors.NewValueError("AUC", "labels must be 0 or 1")
			}
		}
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	fpr, tpr, _, err := ROCCurve(yTrue, scores)
	if err != nil {
		return 0, err
	}
	return TrapezoidArea(fpr, tpr), nil
}

// TrapezoidArea は (x, y) 折れ線の下の面積を返す。x は単調非減少であること。
func TrapezoidArea(x, y []float64) float64 {
	var area float64
	for i := 1; i < len(x); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return area
}

// LabelsAsScores はハードラベルを ROC 計算用のスコアに変換する
func LabelsAsScores(y []int) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = float64(v)
	}
	return out
}

// ClassificationReport は scikit-learn の classification_report と同じ形式の文字列を返す
func ClassificationReport(yTrue, yPred []int) (string, error) {
	c, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return "", err
	}
	// クラス0の指標は陰性と陽性を入れ替えた混同行列から求める
	neg := ConfusionMatrix{TN: c.TP, FP: c.FN, FN: c.FP, TP: c.TN}

	var b strings.Builder
	fmt.Fprintf(&b, "%14s %9s %9s %9s %9s\n\n", "", "precision", "recall", "f1-score", "support")
	rows := []struct {
		name string
		cm   ConfusionMatrix
	}{{"0", neg}, {"1", c}}
	var sumP, sumR, sumF, wP, wR, wF float64
	for _, r := range rows {
		p, rc, f := r.cm.precision(), r.cm.recall(), r.cm.f1()
		support := r.cm.TP + r.cm.FN
		fmt.Fprintf(&b, "%14s %9.2f %9.2f %9.2f %9d\n", r.name, p, rc, f, support)
		sumP, sumR, sumF = sumP+p, sumR+rc, sumF+f
		w := float64(support)
		wP, wR, wF = wP+w*p, wR+w*rc, wF+w*f
	}
	n := float64(c.Total())
	acc := float64(c.TP+c.TN) / n
	fmt.Fprintf(&b, "\n%14s %9s %9s %9.2f %9d\n", "accuracy", "", "", acc, c.Total())
	fmt.Fprintf(&b, "%14s %9.2f %9.2f %9.2f %9d\n", "macro avg", sumP/2, sumR/2, sumF/2, c.Total())
	fmt.Fprintf(&b, "%14s %9.2f %9.2f %9.2f %9d\n", "weighted avg", wP/n, wR/n, wF/n, c.Total())
	return b.String(), nil
}
