package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabforest/dataset"
	"github.com/YuminosukeSato/tabforest/pipeline"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
)

func (c *CLI) newPredictCommand() *cobra.Command {
	var modelDir, input, output, encoding string

	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Predict the target of every row of a CSV with saved artifacts",
		Args:    cobra.NoArgs,
		Example: `  tabforest predict --model_dir ./models --input new.csv --output predictions.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, preds, err := pipeline.PredictFile(modelDir, input, dataset.WithEncoding(encoding))
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return errors.Wrapf(err, "create %s", output)
				}
				defer f.Close()
				w = f
			}
			return pipeline.WritePredictions(w, frame, preds)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&modelDir, "model_dir", "", "Directory written by train")
	fl.StringVar(&input, "input", "", "CSV file (or directory) to predict")
	fl.StringVar(&output, "output", "", "Output CSV (default: stdout)")
	fl.StringVar(&encoding, "encoding", "utf-8", "Character encoding of the input CSV")
	cmd.MarkFlagRequired("model_dir") //nolint:errcheck
	cmd.MarkFlagRequired("input")     //nolint:errcheck
	return cmd
}
