package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozpay/webpay-server/pkg/pointer"
	"github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
)

func RunTests(t *testing.T, s transaction.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s transaction.Store){
		testHappyPath,
		testStatusTransitions,
		testCounting,
	} {
		tf(t, s)
		teardown()
	}
}

func newTestRecord(uuid string, status transaction.Status) *transaction.Record {
	return &transaction.Record{
		Uuid:      uuid,
		Type:      transaction.TypePayment,
		Status:    status,
		IssuerKey: "app.example.com-1",

		Amount:   "0.99",
		Currency: "USD",

		ProductName:        "Magical Unicorn",
		ProductDescription: "A unicorn to call your own",

		JSONRequest: `{"pricePoint":"1"}`,
		NotifyURL:   "https://app.example.com/postback",
	}
}

func testHappyPath(t *testing.T, s transaction.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		record := newTestRecord("abc-123", transaction.StatusPending)
		cloned := record.Clone()

		_, err := s.GetByUuid(ctx, record.Uuid)
		assert.Equal(t, transaction.ErrNotFound, err)
		assert.Equal(t, transaction.ErrNotFound, s.Update(ctx, record))

		require.NoError(t, s.Put(ctx, record))
		assert.Equal(t, transaction.ErrAlreadyExists, s.Put(ctx, record))

		actual, err := s.GetByUuid(ctx, record.Uuid)
		require.NoError(t, err)
		assert.True(t, actual.Id > 0)
		assert.True(t, actual.CreatedAt.After(start))
		assertEquivalentRecords(t, &cloned, actual)

		record.Status = transaction.StatusCompleted
		record.PayURL = pointer.String("https://provider.example.com/pay/abc-123")
		record.BillingID = pointer.String("billing-1")
		cloned = record.Clone()
		require.NoError(t, s.Update(ctx, record))

		actual, err = s.GetByUuid(ctx, record.Uuid)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
		assert.True(t, actual.UpdatedAt.After(actual.CreatedAt) || actual.UpdatedAt.Equal(actual.CreatedAt))
	})
}

func testStatusTransitions(t *testing.T, s transaction.Store) {
	t.Run("testStatusTransitions", func(t *testing.T) {
		ctx := context.Background()

		record := newTestRecord("def-456", transaction.StatusPending)
		require.NoError(t, s.Put(ctx, record))

		record.Status = transaction.StatusReceived
		require.NoError(t, s.Update(ctx, record))

		// Can't move backwards
		record.Status = transaction.StatusPending
		assert.Equal(t, transaction.ErrInvalidStatusTransition, s.Update(ctx, record))

		record.Status = transaction.StatusCompleted
		require.NoError(t, s.Update(ctx, record))

		// Terminal statuses never change
		record.Status = transaction.StatusFailed
		assert.Equal(t, transaction.ErrInvalidStatusTransition, s.Update(ctx, record))

		actual, err := s.GetByUuid(ctx, record.Uuid)
		require.NoError(t, err)
		assert.Equal(t, transaction.StatusCompleted, actual.Status)
	})
}

func testCounting(t *testing.T, s transaction.Store) {
	t.Run("testCounting", func(t *testing.T) {
		ctx := context.Background()

		statuses := []transaction.Status{
			transaction.StatusPending,
			transaction.StatusPending,
			transaction.StatusCompleted,
			transaction.StatusFailed,
		}
		for i, status := range statuses {
			require.NoError(t, s.Put(ctx, newTestRecord(fmt.Sprintf("uuid%d", i), status)))
		}

		count, err := s.CountByStatus(ctx, transaction.StatusPending)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)

		count, err = s.CountByStatus(ctx, transaction.StatusCompleted)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		count, err = s.CountByStatus(ctx, transaction.StatusErrored)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *transaction.Record) {
	assert.Equal(t, obj1.Uuid, obj2.Uuid)
	assert.Equal(t, obj1.Type, obj2.Type)
	assert.Equal(t, obj1.Status, obj2.Status)
	assert.Equal(t, obj1.IssuerKey, obj2.IssuerKey)
	assert.Equal(t, obj1.Amount, obj2.Amount)
	assert.Equal(t, obj1.Currency, obj2.Currency)
	assert.Equal(t, obj1.ProductName, obj2.ProductName)
	assert.Equal(t, obj1.ProductDescription, obj2.ProductDescription)
	assert.Equal(t, obj1.JSONRequest, obj2.JSONRequest)
	assert.Equal(t, obj1.NotifyURL, obj2.NotifyURL)
	assert.EqualValues(t, obj1.PayURL, obj2.PayURL)
	assert.EqualValues(t, obj1.BillingID, obj2.BillingID)
}
