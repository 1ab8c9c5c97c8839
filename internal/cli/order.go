package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/comande/internal/lifecycle"
	"github.com/roach88/comande/internal/model"
)

// NewOrderCommand creates the order command group.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Submit, serve and list orders",
		Long: `Work with the orders of this device.

A submitted order is published immediately. Its automatic steps run while
"comande run" is active on this device; a step that fell due while the
device was stopped runs as soon as it starts again.

Only one process may use a --db at a time. While "comande run" holds the
database, the other commands fail; stop it first or use another --db.`,
	}

	cmd.AddCommand(newOrderSubmitCommand(rootOpts))
	cmd.AddCommand(newOrderServeCommand(rootOpts))
	cmd.AddCommand(newOrderListCommand(rootOpts))

	return cmd
}

func newOrderSubmitCommand(opts *RootOptions) *cobra.Command {
	var table string
	var dishes, drinks []string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new order",
		Example: `  comande order submit --table "Tavolo 5" --dish "Pizza Margherita" --drink Birra
  comande order submit --table 12 --drink "Acqua Naturale" --drink "Caffè"`,
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
			o, err := d.engine.SubmitOrder(cmd.Context(), table, dishes, drinks)
			if err != nil && o.ID == 0 {
				return fail(f, "order rejected", err)
			}
			if err != nil {
				// Kept locally; the next successful save publishes it.
				f.VerboseLog("order #%d saved locally only: %v", o.ID, err)
			}
			if opts.Format == "json" {
				return f.Success(o)
			}
			return f.Success(lifecycle.Message(o))
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "table name or number")
	cmd.Flags().StringArrayVar(&dishes, "dish", nil, "dish to order (repeatable)")
	cmd.Flags().StringArrayVar(&drinks, "drink", nil, "drink to order (repeatable)")

	return cmd
}

func newOrderServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "serve <order-id>",
		Short:         "Mark a ready order as served",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
			if err != nil || id <= 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid order id %q", args[0]))
			}

			d, err := openDevice(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			f := newFormatter(opts, cmd)
			// Pick up the latest statuses first so an order made ready
			// elsewhere can be served here.
			if _, err := d.engine.Sync(cmd.Context()); err != nil {
				f.VerboseLog("sync before serve failed: %v", err)
			}

			o, err := d.engine.MarkServed(cmd.Context(), id)
			if err != nil && o.ID == 0 {
				return fail(f, "cannot serve order", err)
			}
			if opts.Format == "json" {
				return f.Success(o)
			}
			return f.Success(lifecycle.Message(o))
		},
	}
}

func newOrderListCommand(opts *RootOptions) *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:           "list",
		Aliases:       []string{"ls"},
		Short:         "List the orders known to this device",
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
			if !noSync {
				if _, err := d.engine.Sync(cmd.Context()); err != nil {
					f.VerboseLog("sync failed, listing local orders: %v", err)
				}
			}

			orders := d.engine.Orders()
			if opts.Format == "json" {
				return f.Success(orders)
			}
			writeOrders(cmd.OutOrStdout(), orders, d.engine.DeviceID())
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSync, "no-sync", false, "list local orders without checking the shared store")

	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand(opts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every order and notification from this device",
		Long: `Remove every order and notification from this device.

The reset is local: other devices keep their orders, and orders cleared
here come back when another device publishes them again. Order numbers
are not reused.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to clear without --yes")
			}

			d, err := openDevice(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			f := newFormatter(opts, cmd)
			if err := d.engine.ClearAll(cmd.Context()); err != nil {
				return fail(f, "clear failed", err)
			}
			return f.Success(clearedText)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")

	return cmd
}

const clearedText = "Tutti gli ordini e le notifiche sono stati cancellati"

// writeOrders renders orders as an aligned table. Orders created by other
// devices are marked with an asterisk.
func writeOrders(w io.Writer, orders []model.Order, self string) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "Nessun ordine.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDINE\tTAVOLO\tSTATO\tCREATO\tPIATTI\tBEVANDE")
	for _, o := range orders {
		mark := ""
		if o.DeviceID != self {
			mark = "*"
		}
		fmt.Fprintf(tw, "#%d%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, mark, o.Table, o.Status.Label(),
			o.CreatedAt.Local().Format(time.TimeOnly),
			strings.Join(o.Dishes, ", "), strings.Join(o.Drinks, ", "),
		)
	}
	_ = tw.Flush()
}

// fail reports err in the configured format and wraps it with an exit
// code. Rejected input and invalid transitions exit 1; storage problems
// exit 2.
func fail(f *OutputFormatter, message string, err error) error {
	code := ErrCodeGeneric
	var me *model.Error
	if errors.As(err, &me) {
		code = string(me.Code)
	}
	if f.Format == "json" {
		_ = f.Error(code, model.Message(err), err.Error())
	}

	exit := ExitFailure
	if model.IsStorageError(err) {
		exit = ExitCommandError
	}
	return WrapExitError(exit, message, err)
}
