// Package views holds read models derived from the transaction set. They are
// dropped on every invalidation and rebuilt on the next read.
package views

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"finviz/internal/cache"
	"finviz/internal/core"

	"golang.org/x/sync/singleflight"
)

const listKey = "transactions"

// Lister is the read side of the transaction service.
type Lister interface {
	List(ctx context.Context) ([]core.Transaction, error)
}

// ListerFunc adapts a store's ListByDateDesc to Lister.
type ListerFunc func(ctx context.Context) ([]core.Transaction, error)

func (f ListerFunc) List(ctx context.Context) ([]core.Transaction, error) {
	return f(ctx)
}

// Options tune the dashboard caches.
type Options struct {
	// TTL bounds staleness when an invalidation is lost.
	TTL time.Duration
}

// Dashboard serves the transaction list and monthly chart snapshots.
type Dashboard struct {
	lister Lister
	lists  *cache.LRUCache[[]core.Transaction]
	charts *cache.LRUCache[core.MonthlySummary]
	group  singleflight.Group

	version atomic.Uint64
	mu      sync.Mutex
	last    core.Invalidation
}

func NewDashboard(lister Lister, opts Options) *Dashboard {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	return &Dashboard{
		lister: lister,
		lists:  cache.NewLRUCache[[]core.Transaction](1, opts.TTL),
		charts: cache.NewLRUCache[core.MonthlySummary](2, opts.TTL),
	}
}

// Caches exposes the snapshot caches for periodic expiry.
func (d *Dashboard) Caches() []cache.Cleaner {
	return []cache.Cleaner{d.lists, d.charts}
}

// Transactions returns the list snapshot, fetching it on a miss.
func (d *Dashboard) Transactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := d.transactions(ctx)
	if err != nil {
		return nil, err
	}
	return append([]core.Transaction(nil), txs...), nil
}

func (d *Dashboard) transactions(ctx context.Context) ([]core.Transaction, error) {
	if txs, ok := d.lists.Get(listKey); ok {
		return txs, nil
	}

	gen := d.lists.Generation()
	// The flight is shared; one caller going away must not fail the others.
	v, err, _ := d.group.Do(fmt.Sprintf("list:%d", gen), func() (any, error) {
		txs, err := d.lister.List(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		d.lists.SetIfGeneration(listKey, txs, gen)
		return txs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.Transaction), nil
}

// Chart returns the monthly summary in the requested order.
func (d *Dashboard) Chart(ctx context.Context, order core.SortOrder) (core.MonthlySummary, error) {
	key := string(order)
	if s, ok := d.charts.Get(key); ok {
		return s, nil
	}

	gen := d.charts.Generation()
	v, err, _ := d.group.Do(fmt.Sprintf("chart:%s:%d", key, gen), func() (any, error) {
		txs, err := d.transactions(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s := core.AggregateMonthly(core.EntriesFrom(txs), order)
		if s.Skipped > 0 {
			slog.WarnContext(ctx, "Skipped transactions with unparseable dates", "count", s.Skipped)
		}
		d.charts.SetIfGeneration(key, s, gen)
		return s, nil
	})
	if err != nil {
		return core.MonthlySummary{}, err
	}
	return v.(core.MonthlySummary), nil
}

// Invalidate drops every snapshot.
func (d *Dashboard) Invalidate(inv core.Invalidation) {
	d.lists.Purge()
	d.charts.Purge()
	d.version.Add(1)

	d.mu.Lock()
	d.last = inv
	d.mu.Unlock()
}

// Version counts invalidations seen so far.
func (d *Dashboard) Version() uint64 {
	return d.version.Load()
}

// LastInvalidation returns the most recent invalidation, if any.
func (d *Dashboard) LastInvalidation() (core.Invalidation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, !d.last.At.IsZero()
}

// Notify implements ports.Notifier. The service calls it synchronously, so
// a read issued after a mutation returns never sees the old snapshot.
func (d *Dashboard) Notify(ctx context.Context, inv core.Invalidation) error {
	d.Invalidate(inv)
	slog.DebugContext(ctx, "Dashboard invalidated", "op", inv.Op, "id", inv.ID, "version", d.Version())
	return nil
}
