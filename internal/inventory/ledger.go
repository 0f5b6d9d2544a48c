package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"calzados-be/internal/logger"

	"go.uber.org/zap"
)

// maxLineQuantity rejects implausibly large requests before they ever
// touch a stock row.
const maxLineQuantity = 10000

// Ledger owns all mutation of stock counters. Every check re-reads the row
// under an exclusive lock; stock counts are never cached across requests.
type Ledger interface {
	// Reserve decrements stock for every line in its own transaction.
	Reserve(ctx context.Context, lines []CartLine) error

	// ReserveTx decrements stock inside a caller-owned transaction, so a
	// failure later in the caller's work (order insert, code collision)
	// rolls the reservation back too. All referenced rows are locked
	// before any of them is mutated: either every line is reserved or
	// none is.
	ReserveTx(ctx context.Context, tx *sql.Tx, lines []CartLine) error

	// RestoreTx adds the given order's reserved quantities back, inside
	// the caller's transaction. The caller must hold the order row lock
	// and delete the order in the same transaction, which is what makes
	// restore structurally idempotent per order. Stock rows deleted by
	// catalog management since reservation are skipped, not failed.
	RestoreTx(ctx context.Context, tx *sql.Tx, orderID uint) ([]RestoredItem, error)
}

type ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) Reserve(ctx context.Context, lines []CartLine) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reserve: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := l.ReserveTx(ctx, tx, lines); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reserve: %w", err)
	}
	committed = true
	return nil
}

func (l *ledger) ReserveTx(ctx context.Context, tx *sql.Tx, lines []CartLine) error {
	if err := validateLines(lines); err != nil {
		return err
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "inventory"),
		zap.Int("line_count", len(lines)),
	)

	// Lock rows in deterministic (shoe, size) order so two concurrent
	// reservations over overlapping carts cannot deadlock.
	ordered := make([]CartLine, len(lines))
	copy(ordered, lines)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ShoeID != ordered[j].ShoeID {
			return ordered[i].ShoeID < ordered[j].ShoeID
		}
		return ordered[i].Size < ordered[j].Size
	})

	// Phase 1: lock and validate every row before mutating any of them.
	for _, line := range ordered {
		var available int
		err := tx.QueryRowContext(ctx, `
			SELECT stock
			FROM stock_units
			WHERE shoe_id = $1 AND size = $2
			FOR UPDATE
		`, line.ShoeID, line.Size).Scan(&available)

		if errors.Is(err, sql.ErrNoRows) {
			return &UnknownSizeError{ShoeID: line.ShoeID, Size: line.Size}
		}
		if err != nil {
			return fmt.Errorf("lock stock row (%d/%d): %w", line.ShoeID, line.Size, err)
		}

		if available < line.Quantity {
			log.Debug("insufficient stock",
				zap.Uint("shoe_id", line.ShoeID),
				zap.Int("size", line.Size),
				zap.Int("available", available),
				zap.Int("requested", line.Quantity),
			)
			return &InsufficientStockError{
				ShoeID:    line.ShoeID,
				Size:      line.Size,
				Available: available,
				Requested: line.Quantity,
			}
		}
	}

	// Phase 2: every row is locked and covered, deduct.
	for _, line := range ordered {
		_, err := tx.ExecContext(ctx, `
			UPDATE stock_units
			SET stock = stock - $1
			WHERE shoe_id = $2 AND size = $3
		`, line.Quantity, line.ShoeID, line.Size)
		if err != nil {
			return fmt.Errorf("deduct stock (%d/%d): %w", line.ShoeID, line.Size, err)
		}
	}

	log.Debug("stock reserved")
	return nil
}

func (l *ledger) RestoreTx(ctx context.Context, tx *sql.Tx, orderID uint) ([]RestoredItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT shoe_id, size, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY shoe_id, size
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query items for restore: %w", err)
	}
	defer rows.Close()

	var items []RestoredItem
	for rows.Next() {
		var it RestoredItem
		if err := rows.Scan(&it.ShoeID, &it.Size, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan restore item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var restored []RestoredItem
	for _, it := range items {
		var current int
		err := tx.QueryRowContext(ctx, `
			SELECT stock
			FROM stock_units
			WHERE shoe_id = $1 AND size = $2
			FOR UPDATE
		`, it.ShoeID, it.Size).Scan(&current)

		if errors.Is(err, sql.ErrNoRows) {
			// Size was deleted from the catalog since reservation.
			logger.FromCtx(ctx).Warn("stock row gone, skipping restore",
				zap.Uint("shoe_id", it.ShoeID),
				zap.Int("size", it.Size),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock stock row for restore (%d/%d): %w", it.ShoeID, it.Size, err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE stock_units
			SET stock = stock + $1
			WHERE shoe_id = $2 AND size = $3
		`, it.Quantity, it.ShoeID, it.Size)
		if err != nil {
			return nil, fmt.Errorf("restore stock (%d/%d): %w", it.ShoeID, it.Size, err)
		}

		restored = append(restored, it)
	}

	return restored, nil
}

func validateLines(lines []CartLine) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}
	for _, line := range lines {
		if line.Quantity <= 0 || line.Quantity > maxLineQuantity {
			return fmt.Errorf("%w: shoe %d size %d quantity %d",
				ErrInvalidQuantity, line.ShoeID, line.Size, line.Quantity)
		}
	}
	return nil
}
