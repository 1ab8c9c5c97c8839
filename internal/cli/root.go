package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Database is the SQLite file holding this device's local state.
	Database string

	// Shared is the store every device publishes to: a SQLite path or a
	// postgres:// connection string.
	Shared string

	// Config is an optional CUE settings file.
	Config string

	// LogFile sends logs to a rotated file instead of stderr.
	LogFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the comande CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "comande",
		Short: "Comande - restaurant orders across devices",
		Long: `Take table orders on several devices that share one store.

Each device keeps its own copy of the orders and the menu, publishes
every change to the shared store and merges what other devices publish.
Orders move from pending to preparing and ready on their own; any device
can mark a ready order as served.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "comande.db", "path to this device's SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Shared, "shared", "comande-shared.db", "shared store: SQLite path or postgres:// URL")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to a CUE settings file")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "write logs to this rotated file instead of stderr")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))
	cmd.AddCommand(NewMenuCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewDeviceCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
