package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/comande/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Duration stops the device after this long. Zero runs until
	// interrupted.
	Duration time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run this device: poll the shared store and advance orders",
		Long: `Start this device and keep it running.

The device loads its orders, re-arms the automatic steps of its own
unfinished orders and checks the shared store every poll interval.
Every event is printed as it happens. Pushes go to stderr as JSON lines.

Example:
  comande run --db ./tablet.db --shared ./shared.db
  comande run --shared postgres://comande@localhost/comande --format json
  comande run --duration 30s --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

func runDevice(opts *RunOptions, cmd *cobra.Command) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	if opts.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	d, err := openDevice(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer d.Close()

	go func() {
		select {
		case sig := <-sigChan:
			d.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Renewal stops before the deferred Close releases the lease.
	leaseLost := make(chan error, 1)
	kept := make(chan struct{})
	go func() {
		defer close(kept)
		if err := d.lease.Keep(ctx, leaseRenewInterval); err != nil {
			leaseLost <- err
			cancel()
		}
	}()

	out := cmd.OutOrStdout()
	if opts.Format != "json" {
		fmt.Fprintf(out, "Device %s started. Polling every %s.\n", d.engine.DeviceID(), d.config.PollInterval)
		fmt.Fprintln(out, "Press Ctrl-C to stop.")
	}

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printEvents(d.engine, out, opts.Format)
	}()

	err = d.engine.Run(ctx)
	cancel()
	<-kept
	d.engine.Stop()
	<-printed

	select {
	case lerr := <-leaseLost:
		return WrapExitError(ExitFailure, "lost the database lease", lerr)
	default:
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "device error", err)
	}
	d.logger.Info("device stopped gracefully")
	return nil
}

// printEvents writes the event feed until the engine is stopped, then
// flushes what is left.
func printEvents(e *engine.Engine, w io.Writer, format string) {
	for range e.Wait() {
		for _, ev := range e.Events() {
			writeEvent(w, format, ev)
		}
	}
	for _, ev := range e.Events() {
		writeEvent(w, format, ev)
	}
}

func writeEvent(w io.Writer, format string, ev engine.Event) {
	if format == "json" {
		_ = json.NewEncoder(w).Encode(ev)
		return
	}
	fmt.Fprintf(w, "%s  %-16s %s\n", ev.At.Format(time.TimeOnly), ev.Type, ev.Message)
}
