package metrics

import "github.com/YuminosukeSato/pdbench/pkg/errors"

// スコアの出所
const (
	ScoreSourceProbability = "probability"
	ScoreSourceLabels      = "labels"
)

// Report はテストデータ上での一つのモデルの評価結果
type Report struct {
	Accuracy  float64
	F1        float64
	Recall    float64
	Precision float64
	R2        float64

	// ROC 曲線と AUC。ScoreSource が "labels" の場合はハードラベルから計算した値
	FPR         []float64
	TPR         []float64
	AUC         float64
	ScoreSource string

	Confusion ConfusionMatrix
}

// NewReport は予測ラベルと陽性クラスのスコアから Report を作る。
// scores が nil の場合は予測ラベルをスコアとして使い、ScoreSource を "labels" とする。
func NewReport(yTrue, yPred []int, scores []float64) (Report, error) {
	var r Report
	cm, err := NewConfusionMatrix(yTrue, yPred)
	if err != nil {
		return r, err
	}
	r.Confusion = cm
	r.Accuracy = float64(cm.TP+cm.TN) / float64(cm.Total())
	r.Precision = cm.precision()
	r.Recall = cm.recall()
	r.F1 = cm.f1()

	if r.R2, err = R2ScoreLabels(yTrue, yPred); err != nil {
		return r, err
	}

	r.ScoreSource = ScoreSourceProbability
	if scores == nil {
		scores = LabelsAsScores(yPred)
		r.ScoreSource = ScoreSourceLabels
	}
	if len(scores) != len(yTrue) {
		return r, errors.NewShapeMismatchError("NewReport", len(yTrue), len(scores), 0)
	}
	if r.AUC, err = AUC(yTrue, scores); err != nil {
		return r, err
	}
	if r.FPR, r.TPR, _, err = ROCCurve(yTrue, scores); err != nil {
		return r, err
	}
	return r, nil
}

// Value は比較表の行名に対応する値を返す
func (r Report) Value(metric string) (float64, bool) {
	switch metric {
	case "Accuracy":
		return r.Accuracy, true
	case "F1-Score":
		return r.F1, true
	case "Recall":
		return r.Recall, true
	case "Precision":
		return r.Precision, true
	case "R2-Score":
		return r.R2, true
	case "AUC":
		return r.AUC, true
	}
	return 0, false
}
