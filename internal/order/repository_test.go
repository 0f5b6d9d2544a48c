package order

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"calzados-be/internal/inventory"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Reserve(ctx context.Context, lines []inventory.CartLine) error {
	return m.Called(ctx, lines).Error(0)
}

func (m *mockLedger) ReserveTx(ctx context.Context, tx *sql.Tx, lines []inventory.CartLine) error {
	return m.Called(ctx, tx, lines).Error(0)
}

func (m *mockLedger) RestoreTx(ctx context.Context, tx *sql.Tx, orderID uint) ([]inventory.RestoredItem, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.RestoredItem), args.Error(1)
}

const (
	insertOrderQuery = `INSERT INTO orders`
	insertItemQuery  = `INSERT INTO order_items`
	sessionQuery     = `WHERE code = \$1 AND paid = false`
	itemsQuery       = `FROM order_items`
	markPaidQuery    = `SET paid = true`
	lockUnpaidQuery  = `WHERE id = \$1 AND paid = false`
)

var orderCols = []string{
	"id", "code", "user_id", "created_at", "updated_at", "paid", "payment_method",
	"subtotal", "tax", "delivery_cost", "total", "discount",
	"first_name", "last_name", "email", "phone",
	"shipping_address", "shipping_city", "shipping_postal_code",
	"billing_address", "billing_city", "billing_postal_code",
}

func orderRow(id uint, code string, userID any, paid bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderCols).AddRow(
		id, code, userID, now, now, paid, "",
		21000, 4515, 500, 26015, 4000,
		"", "", "", "",
		"", "", "",
		"", "", "",
	)
}

func newTestRepository(t *testing.T) (Repository, sqlmock.Sqlmock, *mockLedger) {
	t.Helper()
	db, dbMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledger := new(mockLedger)
	return NewRepository(db, ledger), dbMock, ledger
}

func TestCreateOrder_ReservesAndPersistsInOneTransaction(t *testing.T) {
	repo, dbMock, ledger := newTestRepository(t)

	cart := []inventory.CartLine{{ShoeID: 3, Size: 42, Quantity: 2}}
	o := &Order{
		Subtotal: 21000, Tax: 4515, DeliveryCost: 500, Total: 26015, Discount: 4000,
		Items: []OrderItem{{ShoeID: 3, ShoeName: "Urban Runner", Size: 42, Quantity: 2, UnitPrice: 8500, Total: 17000}},
	}

	dbMock.ExpectBegin()
	ledger.On("ReserveTx", mock.Anything, mock.Anything, cart).Return(nil)
	dbMock.ExpectQuery(insertOrderQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, time.Now()))
	dbMock.ExpectQuery(insertItemQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(101))
	dbMock.ExpectCommit()

	created, err := repo.CreateOrder(context.Background(), o, cart)

	require.NoError(t, err)
	assert.Equal(t, uint(11), created.ID)
	assert.Len(t, created.Code, 10)
	assert.Equal(t, uint(11), created.Items[0].OrderID)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateOrder_RetriesOnCodeCollision(t *testing.T) {
	repo, dbMock, ledger := newTestRepository(t)

	cart := []inventory.CartLine{{ShoeID: 3, Size: 42, Quantity: 1}}
	ledger.On("ReserveTx", mock.Anything, mock.Anything, cart).Return(nil)

	// First attempt collides on the unique code index and rolls the whole
	// transaction back, reservation included.
	dbMock.ExpectBegin()
	dbMock.ExpectQuery(insertOrderQuery).
		WillReturnError(&pq.Error{Code: "23505"})
	dbMock.ExpectRollback()

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(insertOrderQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(12, time.Now()))
	dbMock.ExpectCommit()

	created, err := repo.CreateOrder(context.Background(), &Order{}, cart)

	require.NoError(t, err)
	assert.Equal(t, uint(12), created.ID)
	ledger.AssertNumberOfCalls(t, "ReserveTx", 2)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateOrder_GivesUpAfterRepeatedCollisions(t *testing.T) {
	repo, dbMock, ledger := newTestRepository(t)

	cart := []inventory.CartLine{{ShoeID: 3, Size: 42, Quantity: 1}}
	ledger.On("ReserveTx", mock.Anything, mock.Anything, cart).Return(nil)

	for i := 0; i < maxCodeAttempts; i++ {
		dbMock.ExpectBegin()
		dbMock.ExpectQuery(insertOrderQuery).
			WillReturnError(&pq.Error{Code: "23505"})
		dbMock.ExpectRollback()
	}

	_, err := repo.CreateOrder(context.Background(), &Order{}, cart)

	assert.ErrorIs(t, err, ErrCodeGenerationExhausted)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateOrder_InsufficientStockDoesNotRetry(t *testing.T) {
	repo, dbMock, ledger := newTestRepository(t)

	cart := []inventory.CartLine{{ShoeID: 3, Size: 42, Quantity: 99}}
	stockErr := &inventory.InsufficientStockError{ShoeID: 3, Size: 42, Available: 1, Requested: 99}

	dbMock.ExpectBegin()
	ledger.On("ReserveTx", mock.Anything, mock.Anything, cart).Return(stockErr)
	dbMock.ExpectRollback()

	_, err := repo.CreateOrder(context.Background(), &Order{}, cart)

	var got *inventory.InsufficientStockError
	assert.ErrorAs(t, err, &got)
	ledger.AssertNumberOfCalls(t, "ReserveTx", 1)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestFindForSession_GuestOrderReachableByCode(t *testing.T) {
	repo, dbMock, _ := newTestRepository(t)

	dbMock.ExpectQuery(sessionQuery).
		WithArgs("AB12CD34EF").
		WillReturnRows(orderRow(11, "AB12CD34EF", nil, false))
	dbMock.ExpectQuery(itemsQuery).
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "shoe_id", "shoe_name", "size", "quantity", "unit_price", "total", "discount",
		}).AddRow(101, 11, 3, "Urban Runner", 42, 2, 8500, 17000, 0))

	caller := uint(9)
	o, err := repo.FindForSession(context.Background(), "AB12CD34EF", &caller)

	require.NoError(t, err)
	assert.Equal(t, "AB12CD34EF", o.Code)
	assert.Len(t, o.Items, 1)
}

func TestFindForSession_OwnedOrderHiddenFromOtherCaller(t *testing.T) {
	repo, dbMock, _ := newTestRepository(t)

	dbMock.ExpectQuery(sessionQuery).
		WithArgs("AB12CD34EF").
		WillReturnRows(orderRow(11, "AB12CD34EF", 5, false))

	caller := uint(9)
	_, err := repo.FindForSession(context.Background(), "AB12CD34EF", &caller)

	assert.ErrorIs(t, err, ErrOwnershipMismatch)
}

func TestFindForSession_PaidOrderIsGone(t *testing.T) {
	repo, dbMock, _ := newTestRepository(t)

	// The session query filters on paid = false, so a settled order
	// simply yields no row.
	dbMock.ExpectQuery(sessionQuery).
		WithArgs("AB12CD34EF").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := repo.FindForSession(context.Background(), "AB12CD34EF", nil)

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateContact_MissingOrder(t *testing.T) {
	repo, dbMock, _ := newTestRepository(t)

	dbMock.ExpectExec(`UPDATE orders`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateContact(context.Background(), 11, ContactForm{
		FirstName: "Ana", LastName: "García", Email: "ana@example.com", Phone: "600111222",
	})

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMarkPaidTx_SecondCallReportsAlreadyPaid(t *testing.T) {
	db, rawMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db, new(mockLedger))

	rawMock.ExpectBegin()
	rawMock.ExpectExec(markPaidQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	rawMock.ExpectExec(markPaidQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	rawMock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	require.NoError(t, repo.MarkPaidTx(context.Background(), tx, 11))
	assert.ErrorIs(t, repo.MarkPaidTx(context.Background(), tx, 11), ErrAlreadyPaid)

	require.NoError(t, tx.Commit())
}

func TestLockUnpaidTx_GoneOrPaidOrderIsNotAnError(t *testing.T) {
	db, rawMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db, new(mockLedger))

	rawMock.ExpectBegin()
	rawMock.ExpectQuery(lockUnpaidQuery).
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	rawMock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	locked, err := repo.LockUnpaidTx(context.Background(), tx, 11)

	assert.NoError(t, err)
	assert.False(t, locked)
}

func TestListExpiredUnpaid(t *testing.T) {
	repo, dbMock, _ := newTestRepository(t)

	cutoff := time.Now().Add(-20 * time.Minute)
	dbMock.ExpectQuery(`WHERE paid = false AND created_at < \$1`).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4).AddRow(7))

	ids, err := repo.ListExpiredUnpaid(context.Background(), cutoff)

	require.NoError(t, err)
	assert.Equal(t, []uint{4, 7}, ids)
}
