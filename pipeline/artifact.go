package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/model_selection"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/preprocessing"
)

// Artifact is the persisted outcome of one grid search: the refitted best
// estimator with its search metadata and the scaler needed to feed it raw
// features.
type Artifact struct {
	RunID     string
	Name      string
	Algorithm string
	Scoring   string

	BestParams    map[string]interface{}
	BestScore     float64
	BestIndex     int
	CVResults     []model_selection.CVResult
	BestEstimator model.Classifier

	Scaler       *preprocessing.MinMaxScaler
	FeatureNames []string
}

// NewArtifact captures a fitted grid search.
func NewArtifact(runID string, mc ModelResult, scaler *preprocessing.MinMaxScaler, featureNames []string) (*Artifact, error) {
	if mc.Search == nil || mc.Search.BestEstimator == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "NewArtifact")
	}
	return &Artifact{
		RunID:         runID,
		Name:          mc.Name,
		Algorithm:     mc.Algorithm,
		Scoring:       mc.Search.Scoring(),
		BestParams:    model.CopyParams(mc.Search.BestParams),
		BestScore:     mc.Search.BestScore,
		BestIndex:     mc.Search.BestIndex,
		CVResults:     mc.Search.CVResults,
		BestEstimator: mc.Search.BestEstimator,
		Scaler:        scaler,
		FeatureNames:  append([]string(nil), featureNames...),
	}, nil
}

// SaveArtifact writes a to path with gob.
func SaveArtifact(path string, a *Artifact) error {
	return model.SaveModel(a, path)
}

// LoadArtifact reads an artifact written by SaveArtifact.
func LoadArtifact(path string) (*Artifact, error) {
	var a Artifact
	if err := model.LoadModel(&a, path); err != nil {
		return nil, err
	}
	if a.BestEstimator == nil {
		return nil, errors.NewValueError("LoadArtifact", "artifact has no estimator")
	}
	return &a, nil
}

// Predict scales raw feature rows with the stored scaler and classifies them.
func (a *Artifact) Predict(X mat.Matrix) ([]int, error) {
	if a.Scaler == nil {
		return a.BestEstimator.Predict(X)
	}
	Xs, err := a.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return a.BestEstimator.Predict(Xs)
}
