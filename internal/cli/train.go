package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabforest/ledger"
	"github.com/YuminosukeSato/tabforest/pipeline"
	"github.com/YuminosukeSato/tabforest/sklearn/ensemble"
)

type trainFlags struct {
	datasetPath   string
	outputDir     string
	target        string
	encoding      string
	plot          bool
	ledgerPath    string
	nEstimators   int
	randomState   uint64
	maxRows       int
	testSize      float64
	maxCategories int
}

func (c *CLI) newTrainCommand() *cobra.Command {
	var f trainFlags

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a random forest on a CSV dataset and save the artifacts",
		Args:  cobra.NoArgs,
		Example: `  tabforest train --dataset_path ./data --output_dir ./models
  tabforest train --dataset_path iris.csv --output_dir out --target species --plot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := pipeline.DefaultPreprocessConfig()
			cfg.MaxRows = f.maxRows
			cfg.TestSize = f.testSize
			cfg.MaxCategories = f.maxCategories
			cfg.RandomState = f.randomState
			cfg.Target = f.target

			opts := pipeline.Options{
				DatasetPath: f.datasetPath,
				OutputDir:   f.outputDir,
				Encoding:    f.encoding,
				Preprocess:  cfg,
				Forest: []ensemble.Option{
					ensemble.WithNEstimators(f.nEstimators),
					ensemble.WithRandomState(f.randomState),
				},
				Plot: f.plot,
			}
			if f.ledgerPath != "" {
				l, err := ledger.Open(f.ledgerPath)
				if err != nil {
					return err
				}
				defer l.Close()
				opts.Ledger = l
			}

			res, err := pipeline.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Using target column: %s\n", res.Prepared.Schema.Target)
			fmt.Fprintf(out, "Using %d feature columns: %v\n", len(res.Prepared.Schema.Features), featureColumns(res.Prepared.Schema))
			fmt.Fprint(out, res.Evaluation.String())
			fmt.Fprintf(out, "Model saved to %s\n", f.outputDir)
			if res.PlotPath != "" {
				fmt.Fprintf(out, "Feature importance plot saved to %s\n", res.PlotPath)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.datasetPath, "dataset_path", "", "CSV file or directory searched for the largest CSV")
	fl.StringVar(&f.outputDir, "output_dir", "", "Directory for the model artifacts")
	fl.StringVar(&f.target, "target", "", "Target column (default: first text column, else first column)")
	fl.StringVar(&f.encoding, "encoding", "utf-8", "Character encoding of the CSV")
	fl.BoolVar(&f.plot, "plot", false, "Write feature_importance.png to the output directory")
	fl.StringVar(&f.ledgerPath, "ledger", "", "Record the run in this SQLite ledger")
	fl.IntVar(&f.nEstimators, "n_estimators", pipeline.DefaultNEstimators, "Number of trees")
	fl.Uint64Var(&f.randomState, "random_state", pipeline.DefaultRandomState, "Seed for sampling, splitting and the forest")
	fl.IntVar(&f.maxRows, "max_rows", pipeline.DefaultMaxRows, "Row cap; larger datasets are sampled")
	fl.Float64Var(&f.testSize, "test_size", pipeline.DefaultTestSize, "Held-out fraction")
	fl.IntVar(&f.maxCategories, "max_categories", pipeline.DefaultMaxCategories, "Categories kept per categorical feature")
	cmd.MarkFlagRequired("dataset_path") //nolint:errcheck
	cmd.MarkFlagRequired("output_dir")   //nolint:errcheck
	return cmd
}

func featureColumns(s *pipeline.FeatureSchema) []string {
	cols := make([]string, len(s.Features))
	for i, f := range s.Features {
		cols[i] = f.Column
	}
	return cols
}
