// Package pipeline runs the model comparison benchmark: load, balance, scale,
// split, train and tune every configured model, evaluate on the held-out
// split and aggregate the results into one table.
//
// Every stage returns a new value; nothing is mutated after it has been
// handed to the next stage.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/pdbench/config"
	"github.com/YuminosukeSato/pdbench/core/model"
	"github.com/YuminosukeSato/pdbench/dataset"
	"github.com/YuminosukeSato/pdbench/metrics"
	"github.com/YuminosukeSato/pdbench/model_selection"
	"github.com/YuminosukeSato/pdbench/pkg/errors"
	"github.com/YuminosukeSato/pdbench/pkg/log"
	"github.com/YuminosukeSato/pdbench/preprocessing"
	"github.com/YuminosukeSato/pdbench/report"
	"github.com/YuminosukeSato/pdbench/sampling"
)

// Prepared is the output of the preprocessing stages.
type Prepared struct {
	Dataset        *dataset.Dataset
	BalancedCounts map[int]int
	Scaler         *preprocessing.MinMaxScaler
	Split          *model_selection.Split
}

// ModelResult is the outcome of one configured model.
type ModelResult struct {
	Name      string
	Algorithm string

	// DefaultReport scores the fit with the configured params.
	DefaultReport metrics.Report
	// Report is the tuned score when the model is tuned, else DefaultReport.
	Report metrics.Report

	Model  model.Classifier
	Search *model_selection.GridSearchCV
}

// Failure records a model skipped under Config.IsolateFailures.
type Failure struct {
	Name string
	Err  error
}

// Result is everything a run produces.
type Result struct {
	RunID        string
	Prepared     *Prepared
	Models       []ModelResult
	Failures     []Failure
	Sweep        []report.SweepPoint
	Table        *report.Table
	ArtifactPath string
}

// Run executes the whole benchmark. ctx is checked between stages and
// between models.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID)
	start := time.Now()
	logger.Info("Run started", log.SourceKey, cfg.Data.Source, "models", len(cfg.Models))

	ds, err := dataset.Load(ctx, cfg.Data.Source, cfg.Data.CachePath, dataset.Options{
		IDColumn:    cfg.Data.IDColumn,
		LabelColumn: cfg.Data.LabelColumn,
	})
	if err != nil {
		return nil, err
	}
	if logger.Enabled(ctx, log.LevelDebug) {
		for _, s := range ds.Describe() {
			logger.Debug("Feature summary", log.PhaseKey, log.PhasePreprocessing, log.FeatureKey, s.Name,
				"min", s.Min, "max", s.Max, "mean", s.Mean, "std", s.Std)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prep, err := Prepare(ds, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Data prepared",
		log.PhaseKey, log.PhasePreprocessing,
		log.ClassCountsKey, fmt.Sprint(prep.BalancedCounts),
		"train", len(prep.Split.YTrain),
		"test", len(prep.Split.YTest),
	)

	res := &Result{RunID: runID, Prepared: prep}
	for _, mc := range cfg.Models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var mr ModelResult
		err := errors.SafeExecute("pipeline.Train."+mc.Name, func() error {
			var err error
			mr, err = TrainModel(mc, prep.Split, cfg.NJobs)
			return err
		})
		if err != nil {
			if !cfg.IsolateFailures {
				return nil, errors.Wrapf(err, "model %s", mc.Name)
			}
			logger.Error("Model failed, continuing", log.ModelNameKey, mc.Name, log.ErrorKey, err)
			res.Failures = append(res.Failures, Failure{Name: mc.Name, Err: err})
			continue
		}
		res.Models = append(res.Models, mr)
	}

	if cfg.KNNSweep.MaxK > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res.Sweep, err = KNNSweep(prep.Split, cfg.KNNSweep.MinK, cfg.KNNSweep.MaxK, cfg.NJobs); err != nil {
			return nil, err
		}
	}

	entries := make([]report.Entry, len(res.Models))
	for i, mr := range res.Models {
		entries[i] = report.Entry{Name: mr.Name, Report: mr.Report}
	}
	if res.Table, err = report.Compare(entries); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res.ArtifactPath, err = persist(cfg, res, ds.FeatureNames()); err != nil {
		return nil, err
	}
	if err := writeReports(cfg.Report, res); err != nil {
		return nil, err
	}

	logger.Info("Run finished",
		"models", len(res.Models),
		"failures", len(res.Failures),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Prepare balances, scales and splits ds. The scaler is fitted on the whole
// balanced matrix before the split.
func Prepare(ds *dataset.Dataset, cfg *config.Config) (*Prepared, error) {
	logger := log.GetLoggerWithName("pipeline")

	smote := sampling.NewSMOTE(
		sampling.WithKNeighbors(cfg.Balance.KNeighbors),
		sampling.WithRandomState(cfg.Balance.RandomState),
	)
	Xb, yb, err := smote.FitResample(ds.Features(), ds.Labels())
	if err != nil {
		return nil, err
	}
	neg, pos := model.ClassCounts(yb)
	logger.Debug("Classes balanced", log.OperationKey, log.OperationBalance, log.SamplesKey, len(yb))

	scaler := preprocessing.NewMinMaxScaler(cfg.Scale.FeatureRange)
	Xs, err := scaler.FitTransform(Xb)
	if err != nil {
		return nil, err
	}

	split, err := model_selection.TrainTestSplit(Xs, yb, cfg.Split.TestSize, cfg.Split.RandomState)
	if err != nil {
		return nil, err
	}
	logger.Debug("Data split", log.OperationKey, log.OperationSplit,
		"train", len(split.YTrain), "test", len(split.YTest))

	return &Prepared{
		Dataset:        ds,
		BalancedCounts: map[int]int{0: neg, 1: pos},
		Scaler:         scaler,
		Split:          split,
	}, nil
}

// TrainModel fits mc with its configured params and, when mc.Tune is set,
// runs the grid search starting from those params. Both fits are scored on
// the test split.
func TrainModel(mc config.ModelConfig, split *model_selection.Split, nJobs int) (ModelResult, error) {
	logger := log.GetLoggerWithName("pipeline").With(log.ModelNameKey, mc.Name, log.AlgorithmKey, mc.Algorithm)
	mr := ModelResult{Name: mc.Name, Algorithm: mc.Algorithm}

	est, err := NewEstimator(mc.Algorithm, mc.Params)
	if err != nil {
		return mr, err
	}
	start := time.Now()
	if err := est.Fit(split.XTrain, split.YTrain); err != nil {
		return mr, err
	}
	if mr.DefaultReport, err = Evaluate(est, split.XTest, split.YTest); err != nil {
		return mr, err
	}
	mr.Report = mr.DefaultReport
	mr.Model = est
	logger.Info("Model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.AccuracyKey, mr.Report.Accuracy,
		log.F1Key, mr.Report.F1,
		log.AUCKey, mr.Report.AUC,
		"score_source", mr.Report.ScoreSource,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	if !mc.Tune {
		return mr, nil
	}
	search := model_selection.NewGridSearchCV(est.Clone(), model_selection.ParamGrid(mc.Grid),
		model_selection.WithCV(mc.CV),
		model_selection.WithScoring(mc.Scoring),
		model_selection.WithNJobs(nJobs),
	)
	if err := search.Fit(split.XTrain, split.YTrain); err != nil {
		return mr, err
	}
	if mr.Report, err = Evaluate(search.BestEstimator, split.XTest, split.YTest); err != nil {
		return mr, err
	}
	mr.Model = search.BestEstimator
	mr.Search = search
	logger.Info("Tuned model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.HyperParamsKey, fmt.Sprint(search.BestParams),
		log.ScoreKey, search.BestScore,
		log.AccuracyKey, mr.Report.Accuracy,
		log.F1Key, mr.Report.F1,
	)
	return mr, nil
}

func persist(cfg *config.Config, res *Result, featureNames []string) (string, error) {
	if cfg.Artifact.Model == "" {
		return "", nil
	}
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, res.RunID)
	for _, mr := range res.Models {
		if mr.Name != cfg.Artifact.Model {
			continue
		}
		a, err := NewArtifact(res.RunID, mr, res.Prepared.Scaler, featureNames)
		if err != nil {
			return "", err
		}
		if err := SaveArtifact(cfg.Artifact.Path, a); err != nil {
			return "", err
		}
		logger.Info("Artifact saved", log.OperationKey, log.OperationPersist,
			log.ModelNameKey, mr.Name, "path", cfg.Artifact.Path)
		return cfg.Artifact.Path, nil
	}
	// only reachable when the model failed under IsolateFailures
	logger.Warn("Artifact model has no result, nothing persisted", log.ModelNameKey, cfg.Artifact.Model)
	return "", nil
}

func writeReports(rc config.ReportConfig, res *Result) error {
	if rc.CSVPath != "" {
		f, err := os.Create(rc.CSVPath)
		if err != nil {
			return errors.Wrapf(err, "create %s", rc.CSVPath)
		}
		if err := res.Table.WriteCSV(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "close %s", rc.CSVPath)
		}
	}
	if rc.PlotDir != "" {
		if err := os.MkdirAll(rc.PlotDir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", rc.PlotDir)
		}
		curves := make([]report.ROCSeries, len(res.Models))
		for i, mr := range res.Models {
			curves[i] = report.ROCSeries{Name: mr.Name, FPR: mr.Report.FPR, TPR: mr.Report.TPR, AUC: mr.Report.AUC}
		}
		if len(curves) > 0 {
			if err := report.PlotROC(filepath.Join(rc.PlotDir, "roc.png"), curves); err != nil {
				return err
			}
		}
		if len(res.Sweep) > 0 {
			if err := report.PlotKNNSweep(filepath.Join(rc.PlotDir, "knn_sweep.png"), res.Sweep); err != nil {
				return err
			}
		}
	}
	if rc.TextfilePath != "" {
		if err := report.ExportMetrics(rc.TextfilePath, res.RunID, res.Table); err != nil {
			return err
		}
	}
	return nil
}

// RawTestFeatures maps the held-out rows back to raw feature units, the
// input an Artifact expects.
func (p *Prepared) RawTestFeatures() (*mat.Dense, error) {
	return p.Scaler.InverseTransform(p.Split.XTest)
}
