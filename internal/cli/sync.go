package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/comande/internal/engine"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation tick against the shared store",
		Long: `Read the shared store once and merge what other devices published.

New orders are added, statuses only move forward and the menu follows
the latest publisher. If the merged result is ahead of the shared copy,
it is published again.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			f := newFormatter(opts, cmd)
			res, err := d.engine.Sync(cmd.Context())
			if err != nil {
				return fail(f, "sync failed", err)
			}
			if opts.Format == "json" {
				return f.Success(res)
			}
			writeSyncResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func writeSyncResult(w io.Writer, res engine.SyncResult) {
	if !res.Merged() {
		fmt.Fprintf(w, "Nothing to merge (%s).\n", res.Skipped)
		return
	}
	fmt.Fprintf(w, "New orders:  %d %v\n", len(res.NewOrders), res.NewOrders)
	fmt.Fprintf(w, "Advanced:    %d %v\n", len(res.Advanced), res.Advanced)
	if len(res.Collisions) > 0 {
		fmt.Fprintf(w, "Collisions:  %d %v\n", len(res.Collisions), res.Collisions)
	}
	if res.MenuReplaced {
		fmt.Fprintln(w, "Menu replaced.")
	}
	if res.Republished {
		fmt.Fprintln(w, "Merged state published.")
	}
}
