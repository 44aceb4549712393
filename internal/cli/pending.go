package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/vacatrack/internal/ir"
)

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <payload>",
		Short: "Hand a payload to the delivery core",
		Long: `Hand a raw payload to the delivery core.

With deferred delivery enabled the payload is stored and a delivery trigger
registered ("accepted"). Otherwise one immediate delivery is attempted and
nothing is stored ("delivered" or "failed").

Example:
  vacatrack enqueue '{"start_date":"2024-06-01","end_date":"2024-06-10"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			a, err := openAgent(rootOpts, f)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.Coordinator().EnqueueForDelivery(cmd.Context(), args[0])
			if err != nil {
				return outputError(f, classify(err), "enqueue failed", err, ExitFailure)
			}
			if err := f.Success(statusView{Status: status}); err != nil {
				return err
			}
			if status == ir.StatusFailed {
				return NewExitError(ExitFailure, "delivery failed")
			}
			return nil
		},
	}
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "pending",
		Short:         "List records waiting for delivery",
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

			records, err := a.Store().ListPending(cmd.Context())
			if err != nil {
				return outputError(f, classify(err), "list pending failed", err, ExitFailure)
			}
			if records == nil {
				records = []ir.PendingRecord{}
			}
			return f.Success(pendingView(records))
		},
	}
}

// NewFlushCommand creates the flush command.
func NewFlushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Attempt delivery of every pending record once",
		Long: `Attempt delivery of every pending record once. Delivered records are
removed; failed ones stay for the next flush. Exits 1 if any delivery failed.`,
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

			report, err := a.Coordinator().FlushAll(cmd.Context())
			if err != nil {
				return outputError(f, classify(err), "flush failed", err, ExitFailure)
			}
			if report.Failed == 0 {
				if err := a.Registry().Clear(cmd.Context(), a.Coordinator().Tag()); err != nil {
					f.VerboseLog("clear trigger registration: %v", err)
				}
			}
			if err := f.Success(flushView(report)); err != nil {
				return err
			}
			if report.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d delivery(ies) failed", report.Failed))
			}
			return nil
		},
	}
}

type statusView struct {
	Status ir.DeliveryStatus `json:"status"`
}

func (v statusView) RenderText(w io.Writer) {
	switch v.Status {
	case ir.StatusAccepted:
		fmt.Fprintln(w, "Accepted; will deliver when connectivity allows.")
	case ir.StatusDelivered:
		fmt.Fprintln(w, "Delivered.")
	default:
		fmt.Fprintln(w, "Delivery failed; nothing was stored.")
	}
}

type pendingView []ir.PendingRecord

func (v pendingView) RenderText(w io.Writer) {
	if len(v) == 0 {
		fmt.Fprintln(w, "No pending records")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPAYLOAD")
	for _, rec := range v {
		fmt.Fprintf(tw, "%d\t%s\n", rec.ID, rec.Payload)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d pending record(s)\n", len(v))
}

type flushView ir.FlushReport

func (v flushView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Flush %s: %d delivered, %d failed\n", v.FlushID, v.Delivered, v.Failed)
}
