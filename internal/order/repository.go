package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calzados-be/internal/inventory"
	"calzados-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// maxCodeAttempts bounds the retry loop on order-code collisions.
const maxCodeAttempts = 5

type Repository interface {
	// CreateOrder reserves stock and persists the order with its item
	// snapshots inside one transaction. A code collision rolls the whole
	// transaction back (reservation included) and retries with a fresh
	// code, up to maxCodeAttempts.
	CreateOrder(ctx context.Context, o *Order, cart []inventory.CartLine) (*Order, error)

	// FindForSession loads an unpaid order by code, enforcing ownership:
	// an order with an owner is invisible to a different authenticated
	// caller. Guest orders are reachable by code alone.
	FindForSession(ctx context.Context, code string, callerID *uint) (*Order, error)

	// FindByCode loads any order (paid or not) with its items.
	FindByCode(ctx context.Context, code string) (*Order, error)

	UpdateContact(ctx context.Context, id uint, f ContactForm) error
	UpdateShipping(ctx context.Context, id uint, f AddressForm) error
	UpdateBilling(ctx context.Context, id uint, f AddressForm) error
	UpdatePaymentMethod(ctx context.Context, id uint, m PaymentMethod) error

	// GetForUpdateTx locks the order row inside the caller's transaction.
	// Payment confirmation and the sweeper both go through this lock, so
	// at most one of them wins for any given order.
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint) (*Order, error)
	MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint) error

	// ListExpiredUnpaid returns ids of unpaid orders created before cutoff.
	ListExpiredUnpaid(ctx context.Context, cutoff time.Time) ([]uint, error)

	// LockUnpaidTx locks the order row if it still exists and is unpaid;
	// false means another sweep or a payment confirmation got there first.
	LockUnpaidTx(ctx context.Context, tx *sql.Tx, id uint) (bool, error)

	// DeleteTx removes the order and its items inside the caller's
	// transaction (the same one that restored the stock).
	DeleteTx(ctx context.Context, tx *sql.Tx, id uint) error
}

type repository struct {
	db     *sql.DB
	ledger inventory.Ledger
}

func NewRepository(db *sql.DB, ledger inventory.Ledger) Repository {
	return &repository{db: db, ledger: ledger}
}

func (r *repository) CreateOrder(ctx context.Context, o *Order, cart []inventory.CartLine) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateOrder"),
		zap.Int("item_count", len(o.Items)),
	)

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		o.Code = GenerateCode()

		err := r.createOrderOnce(ctx, o, cart)
		if err == nil {
			log.Info("order created",
				zap.Uint("order_id", o.ID),
				zap.String("code", o.Code),
			)
			return o, nil
		}

		if isUniqueViolation(err) {
			log.Warn("order code collision, retrying",
				zap.String("code", o.Code),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		return nil, err
	}

	return nil, ErrCodeGenerationExhausted
}

// createOrderOnce runs one full attempt: reservation, order insert, item
// snapshots, all in a single transaction so any failure unwinds the
// reservation too.
func (r *repository) createOrderOnce(ctx context.Context, o *Order, cart []inventory.CartLine) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := r.ledger.ReserveTx(ctx, tx, cart); err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			code, user_id, paid, payment_method,
			subtotal, tax, delivery_cost, total, discount,
			first_name, last_name, email, phone,
			shipping_address, shipping_city, shipping_postal_code,
			billing_address, billing_city, billing_postal_code
		) VALUES (
			$1,$2,false,'',
			$3,$4,$5,$6,$7,
			'','','','',
			'','','',
			'','',''
		)
		RETURNING id, created_at
	`,
		o.Code, o.UserID,
		o.Subtotal, o.Tax, o.DeliveryCost, o.Total, o.Discount,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return err
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (
				order_id, shoe_id, shoe_name, size,
				quantity, unit_price, total, discount
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING id
		`,
			item.OrderID, item.ShoeID, item.ShoeName, item.Size,
			item.Quantity, item.UnitPrice, item.Total, item.Discount,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	committed = true
	return nil
}

const orderColumns = `
	id, code, user_id, created_at, updated_at, paid, payment_method,
	subtotal, tax, delivery_cost, total, discount,
	first_name, last_name, email, phone,
	shipping_address, shipping_city, shipping_postal_code,
	billing_address, billing_city, billing_postal_code
`

func scanOrder(row *sql.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.Code, &o.UserID, &o.CreatedAt, &o.UpdatedAt, &o.Paid, &o.PaymentMethod,
		&o.Subtotal, &o.Tax, &o.DeliveryCost, &o.Total, &o.Discount,
		&o.FirstName, &o.LastName, &o.Email, &o.Phone,
		&o.ShippingAddress, &o.ShippingCity, &o.ShippingPostalCode,
		&o.BillingAddress, &o.BillingCity, &o.BillingPostalCode,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) FindForSession(ctx context.Context, code string, callerID *uint) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE code = $1 AND paid = false
	`, code)

	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if o.UserID != nil && callerID != nil && *o.UserID != *callerID {
		return nil, ErrOwnershipMismatch
	}

	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE code = $1
	`, code)

	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, shoe_id, shoe_name, size, quantity, unit_price, total, discount
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, o.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ShoeID, &it.ShoeName, &it.Size,
			&it.Quantity, &it.UnitPrice, &it.Total, &it.Discount,
		); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *repository) UpdateContact(ctx context.Context, id uint, f ContactForm) error {
	return r.exec(ctx, `
		UPDATE orders
		SET first_name = $1, last_name = $2, email = $3, phone = $4, updated_at = NOW()
		WHERE id = $5 AND paid = false
	`, f.FirstName, f.LastName, f.Email, f.Phone, id)
}

func (r *repository) UpdateShipping(ctx context.Context, id uint, f AddressForm) error {
	return r.exec(ctx, `
		UPDATE orders
		SET shipping_address = $1, shipping_city = $2, shipping_postal_code = $3, updated_at = NOW()
		WHERE id = $4 AND paid = false
	`, f.Address, f.City, f.PostalCode, id)
}

func (r *repository) UpdateBilling(ctx context.Context, id uint, f AddressForm) error {
	return r.exec(ctx, `
		UPDATE orders
		SET billing_address = $1, billing_city = $2, billing_postal_code = $3, updated_at = NOW()
		WHERE id = $4 AND paid = false
	`, f.Address, f.City, f.PostalCode, id)
}

func (r *repository) UpdatePaymentMethod(ctx context.Context, id uint, m PaymentMethod) error {
	return r.exec(ctx, `
		UPDATE orders
		SET payment_method = $1, updated_at = NOW()
		WHERE id = $2 AND paid = false
	`, m, id)
}

func (r *repository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *repository) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint) (*Order, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanOrder(row)
}

func (r *repository) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET paid = true, updated_at = NOW()
		WHERE id = $1 AND paid = false
	`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrAlreadyPaid
	}
	return nil
}

func (r *repository) ListExpiredUnpaid(ctx context.Context, cutoff time.Time) ([]uint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id
		FROM orders
		WHERE paid = false AND created_at < $1
		ORDER BY id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	defer rows.Close()

	var ids []uint
	for rows.Next() {
		var id uint
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) LockUnpaidTx(ctx context.Context, tx *sql.Tx, id uint) (bool, error) {
	var got uint
	err := tx.QueryRowContext(ctx, `
		SELECT id
		FROM orders
		WHERE id = $1 AND paid = false
		FOR UPDATE
	`, id).Scan(&got)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) DeleteTx(ctx context.Context, tx *sql.Tx, id uint) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
