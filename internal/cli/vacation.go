package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/vacatrack/internal/ir"
	"github.com/roach88/vacatrack/internal/vacation"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Start string
	End   string
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a vacation and queue it for delivery",
		Long: `Record a vacation in the local history and hand it to the delivery core.

Dates are YYYY-MM-DD; the start may not be after the end.

Example:
  vacatrack record --start 2024-06-01 --end 2024-06-10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			v, err := vacation.New(opts.Start, opts.End)
			if err != nil {
				return outputError(f, ErrCodeInvalidArgs, "invalid vacation", err, ExitCommandError)
			}

			a, err := openAgent(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			receipt, err := a.Vacations().Record(cmd.Context(), v)
			if err != nil {
				return outputError(f, classify(err), "record failed", err, ExitFailure)
			}
			if err := f.Success(receiptView(receipt)); err != nil {
				return err
			}
			if receipt.Status == ir.StatusFailed {
				return NewExitError(ExitFailure, "delivery failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history",
		Short:         "List recorded vacations, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			a, err := openAgent(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.Vacations().History(cmd.Context())
			if err != nil {
				return outputError(f, classify(err), "history failed", err, ExitFailure)
			}
			return f.Success(historyView(history))
		},
	}
}

type receiptView vacation.Receipt

func (v receiptView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Recorded %s to %s (%d day(s)): %s\n",
		v.Vacation.StartDate, v.Vacation.EndDate, v.Vacation.Days(), v.Status)
}

type historyView []vacation.Vacation

func (v historyView) RenderText(w io.Writer) {
	if len(v) == 0 {
		fmt.Fprintln(w, "No vacations recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tDAYS")
	for _, vac := range v {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", vac.StartDate, vac.EndDate, vac.Days())
	}
	tw.Flush()
}
