package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vacatrack/internal/assetcache"
	"github.com/roach88/vacatrack/internal/ir"
)

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Populate the current asset snapshot from the manifest",
		Long: `Fetch every manifest resource from the origin into the snapshot named
by cache_prefix + version. Resources that fail are reported and skipped.`,
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

			report, err := a.Cache().Install(cmd.Context())
			if err != nil {
				return outputError(f, classify(err), "install failed", err, ExitFailure)
			}
			return f.Success(installView(report))
		},
	}
}

// NewActivateCommand creates the activate command.
func NewActivateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "activate",
		Short:         "Delete stale snapshots and make the current one control requests",
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

			report, err := a.Cache().Activate(cmd.Context())
			if err != nil {
				return outputError(f, classify(err), "activate failed", err, ExitFailure)
			}
			return f.Success(activateView(report))
		},
	}
}

// NewCacheCommand creates the cache command.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cache",
		Short:         "List stored asset snapshots",
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

			snapshots, err := a.Store().Snapshots(cmd.Context())
			if err != nil {
				return outputError(f, classify(err), "list snapshots failed", err, ExitFailure)
			}
			if snapshots == nil {
				snapshots = []ir.SnapshotInfo{}
			}
			return f.Success(cacheView{
				Current:     a.Cache().Name(),
				Controlling: a.Cache().Controlling(),
				Snapshots:   snapshots,
			})
		},
	}
}

type installView assetcache.InstallReport

func (v installView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Installed %d asset(s) into %s\n", len(v.Stored), v.Snapshot)
	for _, p := range v.Failed {
		fmt.Fprintf(w, "  failed: %s\n", p)
	}
}

type activateView assetcache.ActivateReport

func (v activateView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Activated %s\n", v.Current)
	for _, name := range v.Deleted {
		fmt.Fprintf(w, "  deleted: %s\n", name)
	}
}

type cacheView struct {
	Current     string            `json:"current"`
	Controlling bool              `json:"controlling"`
	Snapshots   []ir.SnapshotInfo `json:"snapshots"`
}

func (v cacheView) RenderText(w io.Writer) {
	if len(v.Snapshots) == 0 {
		fmt.Fprintln(w, "No snapshots")
		return
	}
	for _, s := range v.Snapshots {
		marker := " "
		if s.Name == v.Current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s (%d entries)\n", marker, s.Name, s.Entries)
	}
	if !v.Controlling {
		fmt.Fprintln(w, "Current snapshot is not controlling; run activate.")
	}
}
