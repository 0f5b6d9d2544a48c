package sweeper

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"calzados-be/internal/inventory"
	"calzados-be/internal/logger"
	"calzados-be/internal/order"

	"go.uber.org/zap"
)

// Summary reports one sweep pass. Restored is aggregated per (shoe, size)
// across all deleted orders.
type Summary struct {
	Deleted  int                      `json:"deleted"`
	Restored []inventory.RestoredItem `json:"restored"`
	Failed   int                      `json:"failed"`
}

// Sweeper periodically deletes unpaid orders older than the reservation
// window and gives their stock back. Each order is handled in its own
// transaction so one bad order never blocks the rest of the pass, and a
// restore is never committed without the matching delete.
type Sweeper struct {
	db       *sql.DB
	orders   order.Repository
	ledger   inventory.Ledger
	window   time.Duration
	interval time.Duration
}

func New(db *sql.DB, orders order.Repository, ledger inventory.Ledger, window, interval time.Duration) *Sweeper {
	return &Sweeper{
		db:       db,
		orders:   orders,
		ledger:   ledger,
		window:   window,
		interval: interval,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. One pass runs
// immediately on startup to catch orders that expired while the process
// was down.
func (s *Sweeper) Run(ctx context.Context) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "sweeper"))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil {
			log.Error("sweep pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass over all expired unpaid orders.
func (s *Sweeper) Sweep(ctx context.Context) (*Summary, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "sweeper"))

	cutoff := time.Now().Add(-s.window)
	ids, err := s.orders.ListExpiredUnpaid(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	restored := map[inventory.RestoredItem]int{}

	for _, id := range ids {
		deleted, items, err := s.sweepOne(ctx, id)
		if err != nil {
			log.Error("failed to sweep order",
				zap.Uint("order_id", id),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}
		if !deleted {
			// A payment or another sweep got there between the listing
			// and the lock.
			continue
		}

		sum.Deleted++
		for _, it := range items {
			key := inventory.RestoredItem{ShoeID: it.ShoeID, Size: it.Size}
			restored[key] += it.Quantity
		}
	}

	for key, qty := range restored {
		key.Quantity = qty
		sum.Restored = append(sum.Restored, key)
	}
	sort.Slice(sum.Restored, func(i, j int) bool {
		a, b := sum.Restored[i], sum.Restored[j]
		if a.ShoeID != b.ShoeID {
			return a.ShoeID < b.ShoeID
		}
		return a.Size < b.Size
	})

	if sum.Deleted > 0 || sum.Failed > 0 {
		log.Info("sweep pass done",
			zap.Int("deleted", sum.Deleted),
			zap.Int("failed", sum.Failed),
			zap.Int("restored_lines", len(sum.Restored)),
		)
	}
	return sum, nil
}

// sweepOne restores and deletes a single order in one transaction. A
// false deleted flag with nil error means the order was already paid or
// gone by the time the lock was taken.
func (s *Sweeper) sweepOne(ctx context.Context, id uint) (bool, []inventory.RestoredItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("begin sweep: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// The same row lock payment confirmation takes, so the two can never
	// both win: whoever locks first decides the order's fate.
	locked, err := s.orders.LockUnpaidTx(ctx, tx, id)
	if err != nil {
		return false, nil, err
	}
	if !locked {
		return false, nil, nil
	}

	items, err := s.ledger.RestoreTx(ctx, tx, id)
	if err != nil {
		return false, nil, err
	}

	if err := s.orders.DeleteTx(ctx, tx, id); err != nil {
		return false, nil, err
	}

	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("commit sweep: %w", err)
	}
	committed = true
	return true, items, nil
}
