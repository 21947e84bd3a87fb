package solitude

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_TransactionLifecycle(t *testing.T) {
	transactions := make(map[string]*Transaction)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/generic/transaction/":
			var args CreateTransactionArgs
			require.NoError(t, json.NewDecoder(r.Body).Decode(&args))

			created := &Transaction{
				UUID:     args.UUID,
				Status:   StatusPending,
				Amount:   args.Amount,
				Currency: args.Currency,
			}
			transactions[args.UUID] = created
			json.NewEncoder(w).Encode(created)

		case r.Method == http.MethodGet:
			txn, ok := transactions[r.URL.Path[len("/generic/transaction/"):len(r.URL.Path)-1]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(txn)

		case r.Method == http.MethodPatch:
			var args UpdateTransactionArgs
			require.NoError(t, json.NewDecoder(r.Body).Decode(&args))

			txn := transactions[r.URL.Path[len("/generic/transaction/"):len(r.URL.Path)-1]]
			if args.Status != "" {
				txn.Status = args.Status
			}
			if args.PayURL != "" {
				txn.PayURL = args.PayURL
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "{}")
		}
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	ctx := context.Background()

	_, err := client.GetTransaction(ctx, "missing")
	assert.Equal(t, ErrTransactionNotFound, err)

	created, err := client.CreateTransaction(ctx, &CreateTransactionArgs{
		UUID:       "abc-123",
		SellerUUID: "seller-1",
		Amount:     "0.99",
		Currency:   "USD",
		Product:    "Magical Unicorn",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, created.Status)

	require.NoError(t, client.UpdateTransaction(ctx, "abc-123", &UpdateTransactionArgs{
		Status: StatusCompleted,
		PayURL: "https://provider.example.com/pay/abc-123",
	}))

	actual, err := client.GetTransaction(ctx, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, actual.Status)
	assert.Equal(t, "https://provider.example.com/pay/abc-123", actual.PayURL)
}

func TestClient_ConfigureProductForBilling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/webpay/configure/", r.URL.Path)

		var args ConfigureProductArgs
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))

		if args.SellerUUID == "unconfigured" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"seller":["seller does not exist"]}`)
			return
		}

		json.NewEncoder(w).Encode(&ConfiguredBilling{
			BillingID:         "billing-1",
			SellerProductUUID: "seller-product-1",
			PayURL:            "https://provider.example.com/pay/abc-123",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	ctx := context.Background()

	configured, err := client.ConfigureProductForBilling(ctx, &ConfigureProductArgs{
		TransactionUUID: "abc-123",
		SellerUUID:      "seller-1",
		ProductName:     "Magical Unicorn",
		ExternalID:      "product-1",
		PricePoint:      "1",
		MCC:             "214",
		MNC:             "07",
	})
	require.NoError(t, err)
	assert.Equal(t, "billing-1", configured.BillingID)
	assert.Equal(t, "https://provider.example.com/pay/abc-123", configured.PayURL)

	_, err = client.ConfigureProductForBilling(ctx, &ConfigureProductArgs{
		TransactionUUID: "abc-123",
		SellerUUID:      "unconfigured",
		ProductName:     "Magical Unicorn",
		ExternalID:      "product-1",
		PricePoint:      "1",
	})
	assert.Equal(t, ErrSellerNotConfigured, err)
}

func TestStatus_IsRetryOK(t *testing.T) {
	for status, expected := range map[Status]bool{
		StatusPending:   false,
		StatusChecked:   false,
		StatusReceived:  false,
		StatusCompleted: false,
		StatusFailed:    true,
		StatusCancelled: true,
		StatusErrored:   true,
	} {
		assert.Equal(t, expected, status.IsRetryOK(), status)
	}
}
