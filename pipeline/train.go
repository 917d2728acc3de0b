package pipeline

import (
	"time"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
	"github.com/YuminosukeSato/tabforest/sklearn/ensemble"
)

// DefaultNEstimators is the number of trees the pipeline grows.
const DefaultNEstimators = 100

// Train fits a random forest on the training split. opts are applied after
// the defaults (100 trees, seed 42).
func Train(p *Prepared, opts ...ensemble.Option) (*ensemble.RandomForestClassifier, error) {
	if p == nil || p.XTrain == nil {
		return nil, errors.NewModelError("Train", "empty data", errors.ErrEmptyData)
	}

	all := append([]ensemble.Option{
		ensemble.WithNEstimators(DefaultNEstimators),
		ensemble.WithRandomState(DefaultRandomState),
	}, opts...)
	forest := ensemble.NewRandomForestClassifier(all...)

	start := time.Now()
	if err := forest.Fit(p.XTrain, p.YTrain); err != nil {
		return nil, errors.Wrap(err, "train random forest")
	}

	rows, cols := p.XTrain.Dims()
	log.GetLoggerWithName("pipeline").Info("Model trained",
		log.PhaseKey, log.PhaseTraining,
		log.ModelNameKey, "RandomForestClassifier",
		log.TreesKey, forest.NEstimators(),
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return forest, nil
}
