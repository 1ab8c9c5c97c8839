package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLeaseHeld is returned when another holder owns an unexpired lease.
var ErrLeaseHeld = errors.New("lease held by another process")

// Lease is a named, expiring claim on a SQLite store. Only one holder
// owns a given name at a time; a lease whose holder stopped renewing it
// can be taken over once it expires.
type Lease struct {
	s      *Store
	name   string
	holder string
	ttl    time.Duration
}

// AcquireLease claims name for holder until ttl from now. Re-acquiring a
// lease the holder already owns extends it. When another holder owns an
// unexpired lease, the error wraps ErrLeaseHeld.
func (s *Store) AcquireLease(ctx context.Context, name, holder string, ttl time.Duration) (*Lease, error) {
	l := &Lease{s: s, name: name, holder: holder, ttl: ttl}
	if err := l.claim(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Renew extends the lease by its ttl. It fails with ErrLeaseHeld if the
// lease expired and another holder took it in the meantime.
func (l *Lease) Renew(ctx context.Context) error {
	return l.claim(ctx)
}

// Release gives the lease up. Releasing a lease that was taken over is a
// no-op.
func (l *Lease) Release(ctx context.Context) error {
	_, err := l.s.db.ExecContext(ctx, `DELETE FROM leases WHERE name = ? AND holder = ?`, l.name, l.holder)
	if err != nil {
		return fmt.Errorf("release lease %q: %w", l.name, err)
	}
	return nil
}

// Keep renews the lease every interval until ctx is done. It returns nil
// on cancellation and the renewal error if the lease is lost.
func (l *Lease) Keep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.Renew(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (l *Lease) claim(ctx context.Context) error {
	now := time.Now().UnixMilli()
	res, err := l.s.db.ExecContext(ctx, `
		INSERT INTO leases (name, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE leases.holder = excluded.holder OR leases.expires_at <= ?
	`, l.name, l.holder, now+l.ttl.Milliseconds(), now)
	if err != nil {
		return fmt.Errorf("claim lease %q: %w", l.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim lease %q: %w", l.name, err)
	}
	if n > 0 {
		return nil
	}

	var holder string
	var expires int64
	err = l.s.db.QueryRowContext(ctx, `SELECT holder, expires_at FROM leases WHERE name = ?`, l.name).Scan(&holder, &expires)
	if err != nil {
		return fmt.Errorf("lease %q: %w", l.name, ErrLeaseHeld)
	}
	return fmt.Errorf("lease %q: %w (holder %s until %s)", l.name, ErrLeaseHeld,
		holder, time.UnixMilli(expires).Format(time.RFC3339))
}
