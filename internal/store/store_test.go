package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_ClaimEmergency(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name             string
		orderID          int64
		tecID            int64
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedResult   ClaimResult
		expectedErr      bool
	}{
		{
			name:    "unclaimed order is granted",
			orderID: 6645,
			tecID:   3,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "emergency_orders" SET`)).
					WithArgs(int64(3), false, Any{}, int64(6645), int64(3)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "technicians" SET`)).
					WithArgs(int64(6645), Any{}, int64(3)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedResult: ClaimResult{Status: ClaimGranted},
		},
		{
			name:    "owner reclaim is granted again",
			orderID: 6645,
			tecID:   3,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				// The conditional UPDATE matches when the caller already
				// holds the order, so a remount or retry stays granted.
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "emergency_orders" SET`)).
					WithArgs(int64(3), false, Any{}, int64(6645), int64(3)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "technicians" SET`)).
					WithArgs(int64(6645), Any{}, int64(3)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedResult: ClaimResult{Status: ClaimGranted},
		},
		{
			name:    "order held by another technician is denied with attribution",
			orderID: 6645,
			tecID:   3,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "emergency_orders" SET`)).
					WithArgs(int64(3), false, Any{}, int64(6645), int64(3)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "emergency_orders"`)).
					WithArgs(int64(6645), 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "claimed_by_id", "notify_pending", "closed", "created_at"}).
						AddRow(6645, 1, 7, false, false, now))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "technicians"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "name", "on_call", "active"}).
						AddRow(7, "Marcos", true, true))
				mock.ExpectCommit()
			},
			expectedResult: ClaimResult{Status: ClaimDenied, OwnerID: 7, OwnerName: "Marcos"},
		},
		{
			name:    "closed order is not claimable, even by its former owner",
			orderID: 6645,
			tecID:   3,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "emergency_orders" SET`)).
					WithArgs(int64(3), false, Any{}, int64(6645), int64(3)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "emergency_orders"`)).
					WithArgs(int64(6645), 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "claimed_by_id", "notify_pending", "closed", "created_at"}).
						AddRow(6645, 1, 3, false, true, now))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "technicians"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "name", "on_call", "active"}).
						AddRow(3, "Ana", true, true))
				mock.ExpectCommit()
			},
			// Not denied: a denial would attribute ownership, and for the
			// ex-owner that names the caller themselves.
			expectedResult: ClaimResult{Status: ClaimNotFound},
		},
		{
			name:    "unknown order",
			orderID: 99,
			tecID:   3,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "emergency_orders" SET`)).
					WithArgs(int64(3), false, Any{}, int64(99), int64(3)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "emergency_orders"`)).
					WithArgs(int64(99), 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
				mock.ExpectCommit()
			},
			expectedResult: ClaimResult{Status: ClaimNotFound},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			result, err := store.ClaimEmergency(context.Background(), tc.orderID, tc.tecID)

			if tc.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedResult, result)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_SetOnCall(t *testing.T) {
	t.Run("updates the flag", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "technicians" SET`)).
			WithArgs(false, Any{}, int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.SetOnCall(context.Background(), 3, false)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown technician", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "technicians" SET`)).
			WithArgs(true, Any{}, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := store.SetOnCall(context.Background(), 42, true)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestGormStore_PendingEmergency(t *testing.T) {
	t.Run("returns the newest alerting order", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		// Eligibility must mirror the open-order fan-out: on call, active,
		// and not already mid-emergency.
		mock.ExpectQuery(regexp.QuoteMeta(`t.on_call AND t.active AND t.current_order_id IS NULL`)).
			WithArgs(int64(3), 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "notify_pending", "closed"}).
				AddRow(6645, 1, true, false))

		pending, err := store.PendingEmergency(context.Background(), 3)
		assert.NoError(t, err)
		assert.Equal(t, &PendingAlert{OrderID: 6645, NotifyPending: true}, pending)
	})

	t.Run("no pending alert", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT emergency_orders.* FROM "emergency_orders"`)).
			WithArgs(int64(3), 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		pending, err := store.PendingEmergency(context.Background(), 3)
		assert.NoError(t, err)
		assert.Nil(t, pending)
	})
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
