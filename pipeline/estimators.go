package pipeline

import (
	"encoding/gob"

	"github.com/YuminosukeSato/pdbench/config"
	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/sklearn/boosting"
	"github.com/YuminosukeSato/pdbench/sklearn/ensemble"
	"github.com/YuminosukeSato/pdbench/sklearn/linear_model"
	"github.com/YuminosukeSato/pdbench/sklearn/naive_bayes"
	"github.com/YuminosukeSato/pdbench/sklearn/neighbors"
	"github.com/YuminosukeSato/pdbench/sklearn/svm"
	"github.com/YuminosukeSato/pdbench/sklearn/tree"
)

func init() {
	// Artifact.BestEstimator is an interface; gob needs the concrete types.
	gob.Register(&tree.DecisionTreeClassifier{})
	gob.Register(&ensemble.RandomForestClassifier{})
	gob.Register(&linear_model.LogisticRegression{})
	gob.Register(&svm.SVC{})
	gob.Register(&naive_bayes.GaussianNB{})
	gob.Register(&neighbors.KNeighborsClassifier{})
	gob.Register(&boosting.GradientBoostingClassifier{})
}

// NewEstimator creates an unfitted classifier for algorithm with its default
// hyperparameters overridden by params.
func NewEstimator(algorithm string, params map[string]interface{}) (model.Classifier, error) {
	var est model.Classifier
	switch algorithm {
	case config.DecisionTree:
		est = tree.NewDecisionTreeClassifier()
	case config.RandomForest:
		est = ensemble.NewRandomForestClassifier()
	case config.LogisticRegression:
		est = linear_model.NewLogisticRegression()
	case config.SVC:
		est = svm.NewSVC()
	case config.GaussianNB:
		est = naive_bayes.NewGaussianNB()
	case config.KNN:
		est = neighbors.NewKNeighborsClassifier()
	case config.XGBoost:
		est = boosting.NewGradientBoostingClassifier()
	default:
		return nil, errors.NewConfigurationError("algorithm", "unknown algorithm", algorithm)
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	if err := est.SetParams(params); err != nil {
		return nil, errors.Wrapf(err, "%s params", algorithm)
	}
	return est, nil
}
