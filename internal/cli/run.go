package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabforest/config"
	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
)

func (c *CLI) newRunCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch the training pipeline as a child process from a YAML configuration",
		Args:  cobra.NoArgs,
		Example: `  tabforest run --config tabforest.yaml
  TABFOREST_DATASET_PATH=./data tabforest run --config tabforest.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
				return errors.Wrapf(err, "create output directory %s", cfg.Output.Dir)
			}

			exe, err := c.executable()
			if err != nil {
				return errors.Wrap(err, "locate tabforest executable")
			}
			child := exec.CommandContext(cmd.Context(), exe, trainArgs(cfg)...)
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()

			logger := log.GetLoggerWithName("cli")
			logger.Info("Starting training process",
				log.PathKey, cfg.Dataset.Path,
				"output_dir", cfg.Output.Dir,
			)
			if err := child.Run(); err != nil {
				return errors.Wrap(err, "training process failed")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Training completed successfully. Model saved to %s\n", cfg.Output.Dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	cmd.MarkFlagRequired("config") //nolint:errcheck
	return cmd
}

// trainArgs turns a configuration into the argument list of `train`.
func trainArgs(cfg *config.Config) []string {
	args := []string{
		"train",
		"--dataset_path", cfg.Dataset.Path,
		"--output_dir", cfg.Output.Dir,
		"--encoding", cfg.Dataset.Encoding,
		"--n_estimators", strconv.Itoa(cfg.Training.NEstimators),
		"--random_state", strconv.FormatUint(cfg.Training.RandomState, 10),
		"--max_rows", strconv.Itoa(cfg.Training.MaxRows),
		"--test_size", strconv.FormatFloat(cfg.Training.TestSize, 'g', -1, 64),
		"--max_categories", strconv.Itoa(cfg.Training.MaxCategories),
		"--log-level", cfg.Log.Level,
		"--log-format", cfg.Log.Format,
	}
	if cfg.Training.Target != "" {
		args = append(args, "--target", cfg.Training.Target)
	}
	if cfg.Output.Plot {
		args = append(args, "--plot")
	}
	if cfg.Ledger.Path != "" {
		args = append(args, "--ledger", cfg.Ledger.Path)
	}
	if cfg.Log.File != "" {
		args = append(args, "--log-file", cfg.Log.File)
	}
	return args
}
