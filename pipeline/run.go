package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/tabforest/dataset"
	"github.com/YuminosukeSato/tabforest/ledger"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
	"github.com/YuminosukeSato/tabforest/report"
	"github.com/YuminosukeSato/tabforest/sklearn/ensemble"
)

// PlotFile is the feature importance chart written when Options.Plot is set.
const PlotFile = "feature_importance.png"

// Options configures Run.
type Options struct {
	DatasetPath string
	OutputDir   string
	Encoding    string

	// Preprocess is completed with PreprocessConfig.WithDefaults, so only the
	// fields that differ from the defaults need to be set.
	Preprocess PreprocessConfig
	Forest     []ensemble.Option

	Plot bool
	// Ledger records the run when non-nil.
	Ledger *ledger.Ledger
}

// Result is everything a run produced.
type Result struct {
	RunID       string
	DatasetFile string
	Prepared    *Prepared
	Model       *ensemble.RandomForestClassifier
	Evaluation  *Evaluation
	Manifest    *Manifest
	PlotPath    string
	Duration    time.Duration
}

type runner struct {
	logger log.Logger
}

// stage runs fn as one pipeline phase. A cancelled context stops the run
// before the phase starts and a panic inside fn is returned as an error.
func (r *runner) stage(ctx context.Context, phase string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(err, "before %s", phase)
	}
	start := time.Now()
	r.logger.Debug("Stage started", log.PhaseKey, phase)
	if err := errors.SafeExecute(phase, fn); err != nil {
		r.logger.Error("Stage failed", err, log.PhaseKey, phase)
		return err
	}
	r.logger.Info("Stage completed",
		log.PhaseKey, phase,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Run loads the dataset, preprocesses it, trains and evaluates a random
// forest and saves the artifacts to opts.OutputDir.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.DatasetPath == "" {
		return nil, errors.NewValidationError("dataset_path", "is required", opts.DatasetPath)
	}
	if opts.OutputDir == "" {
		return nil, errors.NewValidationError("output_dir", "is required", opts.OutputDir)
	}
	cfg := opts.Preprocess.WithDefaults()

	started := time.Now()
	res := &Result{RunID: uuid.NewString()}
	r := &runner{logger: log.GetLoggerWithName("pipeline").With(log.RunIDKey, res.RunID)}

	var frame *dataset.Frame
	err := r.stage(ctx, log.PhaseLoad, func() error {
		var err error
		frame, res.DatasetFile, err = dataset.Load(opts.DatasetPath, dataset.WithEncoding(opts.Encoding))
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, log.PhasePreprocessing, func() error {
		var err error
		res.Prepared, err = Preprocess(frame, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}

	forestOpts := append([]ensemble.Option{ensemble.WithRandomState(cfg.RandomState)}, opts.Forest...)
	err = r.stage(ctx, log.PhaseTraining, func() error {
		var err error
		res.Model, err = Train(res.Prepared, forestOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, log.PhaseEvaluation, func() error {
		var err error
		res.Evaluation, err = Evaluate(res.Model, res.Prepared)
		return err
	})
	if err != nil {
		return nil, err
	}

	nTrain, nTest := len(res.Prepared.TrainIndex), len(res.Prepared.TestIndex)
	res.Manifest = &Manifest{
		RunID:     res.RunID,
		CreatedAt: started.UTC(),
		Dataset:   res.DatasetFile,
		Schema:    res.Prepared.Schema,
		Classes:   res.Prepared.LabelEncoder.Classes,
		Accuracy:  res.Evaluation.Accuracy,
		NTrain:    nTrain,
		NTest:     nTest,
	}
	err = r.stage(ctx, log.PhaseSave, func() error {
		err := SaveArtifacts(opts.OutputDir, &Artifacts{
			Model:        res.Model,
			Scaler:       res.Prepared.Scaler,
			LabelEncoder: res.Prepared.LabelEncoder,
			Manifest:     res.Manifest,
		})
		if err != nil || !opts.Plot {
			return err
		}
		names := make([]string, len(res.Evaluation.Importances))
		values := make([]float64, len(res.Evaluation.Importances))
		for i, fi := range res.Evaluation.Importances {
			names[i], values[i] = fi.Name, fi.Importance
		}
		res.PlotPath = filepath.Join(opts.OutputDir, PlotFile)
		return report.FeatureImportancePlot(names, values, res.PlotPath)
	})
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(started)

	if opts.Ledger != nil {
		err := opts.Ledger.Record(ctx, ledger.Run{
			ID:         res.RunID,
			Dataset:    res.DatasetFile,
			OutputDir:  opts.OutputDir,
			Target:     res.Prepared.Schema.Target,
			Samples:    nTrain + nTest,
			Features:   len(res.Prepared.Schema.FeatureNames),
			Classes:    res.Prepared.LabelEncoder.NClasses(),
			Accuracy:   res.Evaluation.Accuracy,
			StartedAt:  started,
			DurationMs: res.Duration.Milliseconds(),
		})
		if err != nil {
			return nil, errors.Wrap(err, "record run")
		}
	}

	r.logger.Info("Pipeline completed",
		log.AccuracyKey, res.Evaluation.Accuracy,
		log.DurationMsKey, res.Duration.Milliseconds(),
		log.PathKey, opts.OutputDir,
	)
	return res, nil
}
