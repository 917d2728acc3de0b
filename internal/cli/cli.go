// Package cli implements the tabforest command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabforest/pkg/errors"
	"github.com/YuminosukeSato/tabforest/pkg/log"
)

// CLI holds the state shared by the commands.
type CLI struct {
	stdout io.Writer
	stderr io.Writer

	logLevel  string
	logFile   string
	logFormat string
	logCloser io.Closer

	// executable locates the binary that `run` launches.
	executable func() (string, error)
}

// New returns a CLI writing results to stdout and logs to stderr.
func New(stdout, stderr io.Writer) *CLI {
	return &CLI{
		stdout:     stdout,
		stderr:     stderr,
		executable: os.Executable,
	}
}

func (c *CLI) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tabforest",
		Short:         "Train and apply random forest classifiers on CSV datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			closer, err := log.Setup(log.Options{
				Level:  c.logLevel,
				Format: c.logFormat,
				File:   c.logFile,
				Writer: c.stderr,
			})
			if err != nil {
				return err
			}
			c.logCloser = closer
			return nil
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&c.logFile, "log-file", "", "Also write JSON logs to this rotating file")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "console", "Log format: console or json")

	root.AddCommand(
		c.newTrainCommand(),
		c.newRunCommand(),
		c.newPredictCommand(),
		c.newRunsCommand(),
	)
	return root
}

// Execute runs the command line args. A failure is logged once here.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		log.GetLogger().Error("Command failed", append([]any{err}, errorFields(err)...)...)
	}
	if c.logCloser != nil {
		c.logCloser.Close() //nolint:errcheck
		c.logCloser = nil
	}
	return err
}

// errorFields classifies err into an error code and a hint for the user.
func errorFields(err error) []any {
	var (
		notFitted *errors.NotFittedError
		dim       *errors.DimensionError
		invalid   *errors.ValidationError
		value     *errors.ValueError
		code      string
		hint      string
	)
	switch {
	case errors.As(err, &notFitted):
		code, hint = log.ErrorNotFitted, "train a model first with `tabforest train`"
	case errors.As(err, &dim):
		code, hint = log.ErrorDimensionMismatch, "the input columns do not match the trained feature schema"
	case errors.Is(err, errors.ErrEmptyData):
		code, hint = log.ErrorEmptyData, "the dataset has no rows"
	case errors.As(err, &invalid), errors.As(err, &value):
		code, hint = log.ErrorInvalidInput, "check the flags and the configuration file"
	default:
		return nil
	}
	return []any{log.ErrorCodeKey, code, log.SuggestionKey, hint}
}
