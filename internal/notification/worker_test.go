package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// mockSender is a mock implementation of the AlertSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

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

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	// Dispatch a job
	wp.Dispatch(AlertJob{OrderID: 6645, TechnicianIDs: []int64{3}})

	// Check if the job is in the channel
	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(6645), job.OrderID)
		assert.Equal(t, []int64{3}, job.TechnicianIDs)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	// --- Test Case: One token found, alert sent with the emergency payload ---
	t.Run("sends emergency payload to a registered device", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)

				var decoded map[string]any
				assert.NoError(t, json.Unmarshal(payload, &decoded))
				assert.Equal(t, "emergency", decoded["type"])
				assert.Equal(t, "6645", decoded["SAT"])
				assert.Equal(t, "Hospital Central", decoded["client"])

				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_tokens" WHERE technician_id IN`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "technician_id", "created_at"}).
				AddRow("https://example.com/push", "test_p256dh", "test_auth", 3, time.Now()))

		mock.ExpectQuery(`SELECT .* FROM "emergency_orders" WHERE "emergency_orders"."id" = \$1`).
			WithArgs(int64(6645), 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "notify_pending"}).
				AddRow(6645, 1, true))
		mock.ExpectQuery(`SELECT .* FROM "clients" WHERE "clients"."id" = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Hospital Central"))

		wp.Dispatch(AlertJob{OrderID: 6645, TechnicianIDs: []int64{3}})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	// --- Test Case: Expired token, should be deleted ---
	t.Run("deletes expired push token", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_tokens" WHERE technician_id IN`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "technician_id", "created_at"}).
				AddRow("https://example.com/expired", "p", "a", 4, time.Now()))

		mock.ExpectQuery(`SELECT .* FROM "emergency_orders" WHERE "emergency_orders"."id" = \$1`).
			WithArgs(int64(9001), 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "client_id", "notify_pending"}).
				AddRow(9001, 1, true))
		mock.ExpectQuery(`SELECT .* FROM "clients" WHERE "clients"."id" = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Hospital Central"))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_tokens" WHERE "push_tokens"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(AlertJob{OrderID: 9001, TechnicianIDs: []int64{4}})

		// A short sleep to allow the worker to process the job
		time.Sleep(100 * time.Millisecond)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	// --- Test Case: Order lookup fails, alert still goes out without the client name ---
	t.Run("falls back to bare payload when order lookup fails", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				var decoded map[string]any
				assert.NoError(t, json.Unmarshal(payload, &decoded))
				assert.Equal(t, "emergency", decoded["type"])
				assert.Equal(t, "7777", decoded["SAT"])
				assert.NotContains(t, decoded, "client")

				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_tokens" WHERE technician_id IN`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "technician_id", "created_at"}).
				AddRow("https://example.com/fallback", "p", "a", 5, time.Now()))

		mock.ExpectQuery(`SELECT .* FROM "emergency_orders" WHERE "emergency_orders"."id" = \$1`).
			WithArgs(int64(7777), 1).
			WillReturnError(gorm.ErrRecordNotFound)

		wp.Dispatch(AlertJob{OrderID: 7777, TechnicianIDs: []int64{5}})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	// --- Test Case: Empty technician list never touches the database ---
	t.Run("no eligible technicians is a no-op", func(t *testing.T) {
		wp.Dispatch(AlertJob{OrderID: 42})
		time.Sleep(50 * time.Millisecond)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
