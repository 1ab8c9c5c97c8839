package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/comande/internal/report"
)

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var out string
	var noSync bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the orders to an Excel workbook",
		Long: `Write every order known to this device to an .xlsx workbook,
one row per order, in the order they are stored.

Example:
  comande export --out ordini.xlsx
  comande export --out ordini.xlsx --no-sync`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return NewExitError(ExitCommandError, "--out is required")
			}

			d, err := openDevice(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			f := newFormatter(opts, cmd)
			if !noSync {
				if _, err := d.engine.Sync(cmd.Context()); err != nil {
					f.VerboseLog("sync failed, exporting local orders: %v", err)
				}
			}

			orders := d.engine.Orders()
			file, err := os.Create(out)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create export file", err)
			}
			if err := report.WriteXLSX(file, orders); err != nil {
				_ = file.Close()
				return WrapExitError(ExitFailure, "failed to write workbook", err)
			}
			if err := file.Close(); err != nil {
				return WrapExitError(ExitFailure, "failed to write workbook", err)
			}

			if opts.Format == "json" {
				return f.Success(map[string]any{"file": out, "orders": len(orders)})
			}
			return f.Success(fmt.Sprintf("%d ordini esportati in %s", len(orders), out))
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "workbook to write (.xlsx)")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "export local orders without checking the shared store")

	return cmd
}
