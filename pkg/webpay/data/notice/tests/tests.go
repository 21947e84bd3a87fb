package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozpay/webpay-server/pkg/webpay/data/notice"
)

func RunTests(t *testing.T, s notice.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s notice.Store){
		testHappyPath,
		testAppendOnly,
		testCounting,
	} {
		tf(t, s)
		teardown()
	}
}

func newTestRecord(noticeId, transactionUuid string, success bool) *notice.Record {
	record := &notice.Record{
		NoticeId:        noticeId,
		TransactionUuid: transactionUuid,
		Url:             "https://app.example.com/postback",
		Kind:            notice.KindPayment,

		Success:  success,
		Attempts: 1,
	}
	if !success {
		record.Attempts = 5
		record.LastError = "ConnectionError: dial tcp: connection refused"
	}
	return record
}

func testHappyPath(t *testing.T, s notice.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		record := newTestRecord("notice-1", "abc-123", true)
		cloned := record.Clone()

		_, err := s.GetAllByTransaction(ctx, record.TransactionUuid)
		assert.Equal(t, notice.ErrNotFound, err)

		require.NoError(t, s.Put(ctx, record))
		assert.Equal(t, notice.ErrAlreadyExists, s.Put(ctx, record))

		actual, err := s.GetAllByTransaction(ctx, record.TransactionUuid)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assert.True(t, actual[0].Id > 0)
		assert.True(t, actual[0].CreatedAt.After(start))
		assertEquivalentRecords(t, &cloned, actual[0])
	})
}

func testAppendOnly(t *testing.T, s notice.Store) {
	t.Run("testAppendOnly", func(t *testing.T) {
		ctx := context.Background()

		records := []*notice.Record{
			newTestRecord("notice-1", "abc-123", false),
			newTestRecord("notice-2", "abc-123", true),
			newTestRecord("notice-3", "def-456", true),
		}
		for _, record := range records {
			require.NoError(t, s.Put(ctx, record))
		}

		actual, err := s.GetAllByTransaction(ctx, "abc-123")
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, records[0], actual[0])
		assertEquivalentRecords(t, records[1], actual[1])

		actual, err = s.GetAllByTransaction(ctx, "def-456")
		require.NoError(t, err)
		require.Len(t, actual, 1)
	})
}

func testCounting(t *testing.T, s notice.Store) {
	t.Run("testCounting", func(t *testing.T) {
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			record := newTestRecord(fmt.Sprintf("notice-%d", i), fmt.Sprintf("uuid-%d", i), i%2 == 0)
			require.NoError(t, s.Put(ctx, record))
		}

		count, err := s.CountBySuccess(ctx, true)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)

		count, err = s.CountBySuccess(ctx, false)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *notice.Record) {
	assert.Equal(t, obj1.NoticeId, obj2.NoticeId)
	assert.Equal(t, obj1.TransactionUuid, obj2.TransactionUuid)
	assert.Equal(t, obj1.Url, obj2.Url)
	assert.Equal(t, obj1.Kind, obj2.Kind)
	assert.Equal(t, obj1.Success, obj2.Success)
	assert.Equal(t, obj1.Attempts, obj2.Attempts)
	assert.Equal(t, obj1.LastError, obj2.LastError)
}
