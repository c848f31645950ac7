package notification

import (
	"bytes"
	"context"
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

	"seating-backend/internal/logging"
	"seating-backend/internal/model"
	"seating-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
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

func claimed(seatID string) model.SeatChange {
	return model.SeatChange{EventID: "gala", SeatID: seatID, Action: model.ActionClaimed, Token: "tok-a"}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, 1, store.NewGormStore(db, 0), &webpush.Options{}, logging.Discard())

	wp.SeatChanged(context.Background(), claimed("T1-S2"))
	// Dropped, the queue holds one job.
	wp.Dispatch(claimed("T1-S3"))

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "T1-S2", job.SeatID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
	assert.Len(t, wp.Jobs(), 0)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Table 1, Seat 2 claimed", Message(claimed("T1-S2")))
	assert.Equal(t, "Table 3, Seat 8 released",
		Message(model.SeatChange{SeatID: "T3-S8", Action: model.ActionReleased}))
	assert.Equal(t, "Table 2, Seat 1 details updated",
		Message(model.SeatChange{SeatID: "T2-S1", Action: model.ActionUpdated}))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, 4, store.NewGormStore(gormDB, 0), &webpush.Options{}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "test_p256dh", sub.Keys.P256dh)
				assert.Equal(t, "Table 1, Seat 2 claimed", string(payload))
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE event_id = \$1 AND token = \$2`).
			WithArgs("gala", "tok-a").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "event_id", "token", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", "gala", "tok-a", "test_p256dh", "test_auth", time.Now()))

		wp.Dispatch(claimed("T1-S2"))
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE event_id = \$1 AND token = \$2`).
			WithArgs("gala", "tok-a").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "event_id", "token", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/expired", "gala", "tok-a", "p", "a", time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(claimed("T1-S3"))

		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil },
			time.Second, 10*time.Millisecond)
	})

	t.Run("no subscriptions sends nothing", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				t.Error("unexpected send")
				return nil, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE event_id = \$1 AND token = \$2`).
			WithArgs("gala", "tok-a").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "event_id", "token", "p256dh", "auth", "created_at"}))

		wp.Dispatch(claimed("T2-S1"))

		assert.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil },
			time.Second, 10*time.Millisecond)
	})
}

func TestWorkerPool_IgnoresChangesWithoutToken(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, 1, store.NewGormStore(db, 0), &webpush.Options{}, logging.Discard())

	wp.SeatChanged(context.Background(), model.SeatChange{EventID: "gala", SeatID: "T1-S1"})
	assert.Len(t, wp.Jobs(), 0)
}
