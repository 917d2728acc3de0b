package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/tabforest/ledger"
)

func (c *CLI) newRunsCommand() *cobra.Command {
	var ledgerPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List training runs recorded in a ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := ledger.Open(ledgerPath)
			if err != nil {
				return err
			}
			defer l.Close()

			runs, err := l.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tDATASET\tTARGET\tSAMPLES\tCLASSES\tACCURACY\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%.4f\t%s\n",
					r.ID,
					r.StartedAt.Local().Format(time.DateTime),
					r.Dataset,
					r.Target,
					r.Samples,
					r.Classes,
					r.Accuracy,
					(time.Duration(r.DurationMs) * time.Millisecond).String(),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "SQLite ledger file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs (0 for all)")
	cmd.MarkFlagRequired("ledger") //nolint:errcheck
	return cmd
}
