package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozpay/webpay-server/pkg/webpay/data/issuer"
)

func RunTests(t *testing.T, s issuer.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s issuer.Store){
		testHappyPath,
		testCounting,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s issuer.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		record := &issuer.Record{
			IssuerKey: "app.example.com-1",
			Domain:    "app.example.com",

			PostbackPath:   "/mozpay/postback",
			ChargebackPath: "/mozpay/chargeback",
			RequireHTTPS:   true,

			EncryptedSecret: []byte("sealed-secret"),
			KeyTimestamp:    1000,

			Access: issuer.AccessPurchase,
			Active: true,
		}
		cloned := record.Clone()

		_, err := s.GetByIssuerKey(ctx, record.IssuerKey)
		assert.Equal(t, issuer.ErrNotFound, err)
		assert.Equal(t, issuer.ErrNotFound, s.Update(ctx, record))

		require.NoError(t, s.Put(ctx, record))
		assert.Equal(t, issuer.ErrAlreadyExists, s.Put(ctx, record))

		actual, err := s.GetByIssuerKey(ctx, record.IssuerKey)
		require.NoError(t, err)
		assert.True(t, actual.Id > 0)
		assert.True(t, actual.CreatedAt.After(start))
		assertEquivalentRecords(t, &cloned, actual)

		record.Access = issuer.AccessBoth
		record.Active = false
		record.EncryptedSecret = []byte("resealed-secret")
		record.KeyTimestamp = 2000
		cloned = record.Clone()
		require.NoError(t, s.Update(ctx, record))

		actual, err = s.GetByIssuerKey(ctx, record.IssuerKey)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
	})
}

func testCounting(t *testing.T, s issuer.Store) {
	t.Run("testCounting", func(t *testing.T) {
		ctx := context.Background()

		count, err := s.CountActive(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		for i := 0; i < 5; i++ {
			record := &issuer.Record{
				IssuerKey: fmt.Sprintf("key%d", i),
				Domain:    fmt.Sprintf("app%d.example.com", i),

				PostbackPath:   "/postback",
				ChargebackPath: "/chargeback",

				EncryptedSecret: []byte("sealed-secret"),
				KeyTimestamp:    1000,

				Access: issuer.AccessPurchase,
				Active: i%2 == 0,
			}
			require.NoError(t, s.Put(ctx, record))
		}

		count, err = s.CountActive(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *issuer.Record) {
	assert.Equal(t, obj1.IssuerKey, obj2.IssuerKey)
	assert.Equal(t, obj1.Domain, obj2.Domain)
	assert.Equal(t, obj1.PostbackPath, obj2.PostbackPath)
	assert.Equal(t, obj1.ChargebackPath, obj2.ChargebackPath)
	assert.Equal(t, obj1.RequireHTTPS, obj2.RequireHTTPS)
	assert.Equal(t, obj1.EncryptedSecret, obj2.EncryptedSecret)
	assert.Equal(t, obj1.KeyTimestamp, obj2.KeyTimestamp)
	assert.Equal(t, obj1.Access, obj2.Access)
	assert.Equal(t, obj1.Active, obj2.Active)
}
