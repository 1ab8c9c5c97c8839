package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/comande/internal/engine"
)

// menuList is the JSON shape of the menu.
type menuList struct {
	Dishes []string `json:"dishes"`
	Drinks []string `json:"drinks"`
}

// NewMenuCommand creates the menu command group.
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Show and edit the dish and drink lists",
		Long: `Show and edit the menu shared by every device.

Edits are published right away. When two devices edit the menu, the
most recently published menu wins everywhere. Orders already placed
keep the items they were taken with.`,
	}

	cmd.AddCommand(newMenuListCommand(rootOpts))
	cmd.AddCommand(newMenuEditCommand(rootOpts, "add", "Add a dish or drink", true))
	cmd.AddCommand(newMenuEditCommand(rootOpts, "remove", "Remove a dish or drink", false))

	return cmd
}

func newMenuListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Aliases:       []string{"ls"},
		Short:         "Print the menu",
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
			if _, err := d.engine.Sync(cmd.Context()); err != nil {
				f.VerboseLog("sync failed, showing local menu: %v", err)
			}

			dishes, drinks := d.engine.Menu()
			if opts.Format == "json" {
				return f.Success(menuList{Dishes: dishes, Drinks: drinks})
			}
			writeMenu(cmd.OutOrStdout(), dishes, drinks)
			return nil
		},
	}
}

func newMenuEditCommand(opts *RootOptions, use, short string, add bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <dish|drink> <name>",
		Short: short,
		Example: fmt.Sprintf(`  comande menu %s dish "Lasagne"
  comande menu %s drink "Spritz"`, use, use),
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			edit, err := menuEditor(args[0], add)
			if err != nil {
				return err
			}

			d, err := openDevice(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			f := newFormatter(opts, cmd)
			// Edit on top of the latest published menu.
			if _, err := d.engine.Sync(cmd.Context()); err != nil {
				f.VerboseLog("sync before menu edit failed: %v", err)
			}

			if err := edit(d.engine, cmd.Context(), args[1]); err != nil {
				return fail(f, "menu edit rejected", err)
			}

			dishes, drinks := d.engine.Menu()
			if opts.Format == "json" {
				return f.Success(menuList{Dishes: dishes, Drinks: drinks})
			}
			writeMenu(cmd.OutOrStdout(), dishes, drinks)
			return nil
		},
	}
}

type menuEditFunc func(e *engine.Engine, ctx context.Context, name string) error

func menuEditor(kind string, add bool) (menuEditFunc, error) {
	switch strings.ToLower(kind) {
	case "dish", "dishes", "piatto":
		if add {
			return (*engine.Engine).AddDish, nil
		}
		return (*engine.Engine).RemoveDish, nil
	case "drink", "drinks", "bevanda":
		if add {
			return (*engine.Engine).AddDrink, nil
		}
		return (*engine.Engine).RemoveDrink, nil
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown menu list %q: must be dish or drink", kind))
}

func writeMenu(w io.Writer, dishes, drinks []string) {
	fmt.Fprintln(w, "Piatti:")
	for _, d := range dishes {
		fmt.Fprintf(w, "  - %s\n", d)
	}
	fmt.Fprintln(w, "Bevande:")
	for _, d := range drinks {
		fmt.Fprintf(w, "  - %s\n", d)
	}
}
