package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/comande/internal/clock"
	"github.com/roach88/comande/internal/config"
	"github.com/roach88/comande/internal/engine"
	"github.com/roach88/comande/internal/gateway"
	"github.com/roach88/comande/internal/identity"
	"github.com/roach88/comande/internal/notify"
	"github.com/roach88/comande/internal/store"
	"github.com/roach88/comande/internal/store/pgstore"
)

// deviceLease is the lease name that keeps one process per local database.
const deviceLease = "device"

// A running device renews its lease every leaseRenewInterval. A process
// that died without releasing it blocks the database for at most
// leaseTTL.
const (
	leaseTTL           = 30 * time.Second
	leaseRenewInterval = 10 * time.Second
)

// device is one started engine plus everything it holds open.
type device struct {
	engine *engine.Engine
	config *config.Config
	logger *slog.Logger
	lease  *store.Lease

	closers []io.Closer
}

// openDevice loads settings, opens both stores, resolves the device id and
// starts an engine. Pushes are written as JSON lines to errOut when push
// is enabled. The caller must Close the device.
//
// Only one process may hold a local database at a time: while another
// process has it open, openDevice fails with ExitCommandError.
func openDevice(ctx context.Context, opts *RootOptions, errOut io.Writer) (*device, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	d := &device{config: cfg}
	d.logger = d.newLogger(opts, cfg, errOut)

	local, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	d.closers = append(d.closers, local)

	d.lease, err = local.AcquireLease(ctx, deviceLease, uuid.NewString(), leaseTTL)
	if err != nil {
		d.Close()
		if errors.Is(err, store.ErrLeaseHeld) {
			return nil, WrapExitError(ExitCommandError,
				fmt.Sprintf("database %s is in use by another comande process (stop it or use another --db)", opts.Database), err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to lock database", err)
	}

	shared, err := openShared(ctx, opts.Shared)
	if err != nil {
		d.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open shared store", err)
	}
	d.closers = append(d.closers, shared)

	id, err := identity.NewProvider(local, nil, identity.WithLogger(d.logger)).DeviceID(ctx)
	if err != nil {
		d.Close()
		return nil, WrapExitError(ExitCommandError, "failed to resolve device id", err)
	}

	wall := clock.Wall{}
	gw := gateway.New(local, shared, id, wall,
		gateway.WithDefaultMenu(cfg.Dishes, cfg.Drinks),
		gateway.WithLogger(d.logger),
	)

	notifyOpts := []notify.Option{
		notify.WithCapacity(cfg.NotificationCapacity),
		notify.WithTTL(cfg.NotificationExpiry),
		notify.WithTitle(cfg.PushTitle),
		notify.WithLogger(d.logger),
	}
	if cfg.PushEnabled {
		rule, err := notify.CompileRule(cfg.PushRule)
		if err != nil {
			d.Close()
			return nil, WrapExitError(ExitCommandError, "invalid push rule", err)
		}
		notifyOpts = append(notifyOpts,
			notify.WithPusher(&notify.WriterPusher{W: errOut}),
			notify.WithRule(rule),
		)
	}

	d.engine = engine.New(gw, wall,
		engine.WithPollInterval(cfg.PollInterval),
		engine.WithDelays(cfg.Delays),
		engine.WithNotifier(notify.New(wall, notifyOpts...)),
		engine.WithLogger(d.logger),
	)
	if err := d.engine.Start(ctx); err != nil {
		d.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start device", err)
	}
	return d, nil
}

// Close stops the engine, releases the database lease and closes the
// stores and the log file in reverse opening order.
func (d *device) Close() error {
	if d.engine != nil {
		d.engine.Stop()
	}
	var errs []error
	if d.lease != nil {
		if err := d.lease.Release(context.Background()); err != nil {
			errs = append(errs, err)
		}
		d.lease = nil
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// newLogger builds the process logger and installs it as the slog
// default. --verbose forces debug level; --log-file routes output through
// a size-rotated file.
func (d *device) newLogger(opts *RootOptions, cfg *config.Config, errOut io.Writer) *slog.Logger {
	level := cfg.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}

	w := errOut
	if opts.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    32, // megabytes
			MaxBackups: 2,
			MaxAge:     28, // days
			Compress:   true,
		}
		d.closers = append(d.closers, lj)
		w = lj
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openShared opens a PostgreSQL store for postgres URLs and a SQLite file
// for anything else.
func openShared(ctx context.Context, target string) (store.KV, error) {
	if strings.HasPrefix(target, "postgres://") || strings.HasPrefix(target, "postgresql://") {
		return pgstore.Open(ctx, target)
	}
	return store.Open(target)
}

// deviceInfo is the JSON shape of the device command.
type deviceInfo struct {
	DeviceID      string `json:"deviceId"`
	Watermark     int64  `json:"watermark"`
	Counter       int    `json:"orderIdCounter"`
	Orders        int    `json:"orders"`
	PendingTimers int    `json:"pendingTimers"`
}

// NewDeviceCommand creates the device command.
func NewDeviceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Show this device's identity and sync position",
		Long: `Show the identifier this device publishes under, the timestamp of
the last envelope it merged and the next order number it will use.

The identifier is created on first use and kept in the local database.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer d.Close()

			st := d.engine.State()
			info := deviceInfo{
				DeviceID:      d.engine.DeviceID(),
				Watermark:     d.engine.Watermark(),
				Counter:       st.Counter,
				Orders:        len(st.Orders),
				PendingTimers: d.engine.PendingTimers(),
			}

			if opts.Format == "json" {
				return newFormatter(opts, cmd).Success(info)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Device:     %s\n", info.DeviceID)
			fmt.Fprintf(w, "Watermark:  %d\n", info.Watermark)
			fmt.Fprintf(w, "Next order: #%d\n", info.Counter)
			fmt.Fprintf(w, "Orders:     %d\n", info.Orders)
			fmt.Fprintf(w, "Timers:     %d\n", info.PendingTimers)
			return nil
		},
	}
}
