package sweeper

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"calzados-be/internal/inventory"
	"calzados-be/internal/order"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOrderRepo struct{ mock.Mock }

func (m *mockOrderRepo) CreateOrder(ctx context.Context, o *order.Order, cart []inventory.CartLine) (*order.Order, error) {
	args := m.Called(ctx, o, cart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockOrderRepo) FindForSession(ctx context.Context, code string, callerID *uint) (*order.Order, error) {
	args := m.Called(ctx, code, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockOrderRepo) FindByCode(ctx context.Context, code string) (*order.Order, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockOrderRepo) UpdateContact(ctx context.Context, id uint, f order.ContactForm) error {
	return m.Called(ctx, id, f).Error(0)
}

func (m *mockOrderRepo) UpdateShipping(ctx context.Context, id uint, f order.AddressForm) error {
	return m.Called(ctx, id, f).Error(0)
}

func (m *mockOrderRepo) UpdateBilling(ctx context.Context, id uint, f order.AddressForm) error {
	return m.Called(ctx, id, f).Error(0)
}

func (m *mockOrderRepo) UpdatePaymentMethod(ctx context.Context, id uint, method order.PaymentMethod) error {
	return m.Called(ctx, id, method).Error(0)
}

func (m *mockOrderRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint) (*order.Order, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockOrderRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *mockOrderRepo) ListExpiredUnpaid(ctx context.Context, cutoff time.Time) ([]uint, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

func (m *mockOrderRepo) LockUnpaidTx(ctx context.Context, tx *sql.Tx, id uint) (bool, error) {
	args := m.Called(ctx, tx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint) error {
	return m.Called(ctx, tx, id).Error(0)
}

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

func newTestSweeper(t *testing.T) (*Sweeper, sqlmock.Sqlmock, *mockOrderRepo, *mockLedger) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := new(mockOrderRepo)
	ledger := new(mockLedger)
	return New(db, repo, ledger, 20*time.Minute, 5*time.Minute), dbMock, repo, ledger
}

func TestSweep_RestoresAndDeletesExpiredOrders(t *testing.T) {
	s, dbMock, repo, ledger := newTestSweeper(t)

	repo.On("ListExpiredUnpaid", mock.Anything, mock.Anything).Return([]uint{4, 7}, nil)

	dbMock.ExpectBegin()
	repo.On("LockUnpaidTx", mock.Anything, mock.Anything, uint(4)).Return(true, nil)
	ledger.On("RestoreTx", mock.Anything, mock.Anything, uint(4)).Return([]inventory.RestoredItem{
		{ShoeID: 3, Size: 42, Quantity: 2},
	}, nil)
	repo.On("DeleteTx", mock.Anything, mock.Anything, uint(4)).Return(nil)
	dbMock.ExpectCommit()

	dbMock.ExpectBegin()
	repo.On("LockUnpaidTx", mock.Anything, mock.Anything, uint(7)).Return(true, nil)
	ledger.On("RestoreTx", mock.Anything, mock.Anything, uint(7)).Return([]inventory.RestoredItem{
		{ShoeID: 3, Size: 42, Quantity: 1},
		{ShoeID: 5, Size: 38, Quantity: 1},
	}, nil)
	repo.On("DeleteTx", mock.Anything, mock.Anything, uint(7)).Return(nil)
	dbMock.ExpectCommit()

	sum, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, sum.Deleted)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, []inventory.RestoredItem{
		{ShoeID: 3, Size: 42, Quantity: 3},
		{ShoeID: 5, Size: 38, Quantity: 1},
	}, sum.Restored)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSweep_SkipsOrdersPaidSinceListing(t *testing.T) {
	s, dbMock, repo, ledger := newTestSweeper(t)

	repo.On("ListExpiredUnpaid", mock.Anything, mock.Anything).Return([]uint{4}, nil)

	dbMock.ExpectBegin()
	repo.On("LockUnpaidTx", mock.Anything, mock.Anything, uint(4)).Return(false, nil)
	dbMock.ExpectRollback()

	sum, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, sum.Deleted)
	assert.Equal(t, 0, sum.Failed)
	ledger.AssertNotCalled(t, "RestoreTx", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "DeleteTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_OneBadOrderDoesNotBlockTheRest(t *testing.T) {
	s, dbMock, repo, ledger := newTestSweeper(t)

	repo.On("ListExpiredUnpaid", mock.Anything, mock.Anything).Return([]uint{4, 7}, nil)

	dbMock.ExpectBegin()
	repo.On("LockUnpaidTx", mock.Anything, mock.Anything, uint(4)).Return(true, nil)
	ledger.On("RestoreTx", mock.Anything, mock.Anything, uint(4)).
		Return(nil, errors.New("deadlock detected"))
	dbMock.ExpectRollback()

	dbMock.ExpectBegin()
	repo.On("LockUnpaidTx", mock.Anything, mock.Anything, uint(7)).Return(true, nil)
	ledger.On("RestoreTx", mock.Anything, mock.Anything, uint(7)).Return([]inventory.RestoredItem{
		{ShoeID: 5, Size: 38, Quantity: 1},
	}, nil)
	repo.On("DeleteTx", mock.Anything, mock.Anything, uint(7)).Return(nil)
	dbMock.ExpectCommit()

	sum, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, sum.Deleted)
	assert.Equal(t, 1, sum.Failed)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestSweep_NothingExpired(t *testing.T) {
	s, _, repo, _ := newTestSweeper(t)

	repo.On("ListExpiredUnpaid", mock.Anything, mock.Anything).Return([]uint{}, nil)

	sum, err := s.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, sum.Deleted)
	assert.Empty(t, sum.Restored)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s, _, repo, _ := newTestSweeper(t)
	s.interval = 10 * time.Millisecond

	repo.On("ListExpiredUnpaid", mock.Anything, mock.Anything).Return([]uint{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// The startup pass plus at least one ticker pass.
	assert.GreaterOrEqual(t, len(repo.Calls), 2)
}
