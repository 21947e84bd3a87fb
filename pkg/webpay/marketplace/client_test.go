package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetPrice(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/api/v1/webpay/prices/1/":
			fmt.Fprint(w, `{"price_point":"1","name":"Tier 1","prices":[{"amount":"0.99","currency":"USD"},{"amount":"0.89","currency":"EUR"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)

	tier, err := client.GetPrice(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "1", tier.PricePoint)
	assert.False(t, tier.IsFree())
	assert.Equal(t, "0.89", tier.PriceFor("EUR").Amount)
	assert.Equal(t, "0.99", tier.PriceFor("JPY").Amount)

	// Second lookup is served from cache
	_, err = client.GetPrice(context.Background(), "1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_GetPrice_UnknownPricePoint(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)

	_, err := client.GetPrice(context.Background(), "999")
	assert.ErrorIs(t, err, ErrUnknownPricePoint)

	// Unknown price points are terminal, not retried
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_GetPrice_RetriesConnectionFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)

	_, err := client.GetPrice(context.Background(), "1")
	assert.ErrorIs(t, err, ErrConnection)
	assert.EqualValues(t, maxPriceAttempts, atomic.LoadInt32(&calls))
}

func TestClient_GetPrice_FreeTier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price_point":"0","name":"Free","prices":[{"amount":"0.00","currency":"USD"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)

	tier, err := client.GetPrice(context.Background(), "0")
	require.NoError(t, err)
	assert.True(t, tier.IsFree())
}

func TestClient_GetIconURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		src := r.URL.Query().Get("src")
		fmt.Fprintf(w, `{"url":"https://cdn.example.com/cached?src=%s"}`, src)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)

	icons := map[string]string{
		"32":  "https://app.example.com/icon32.png",
		"64":  "https://app.example.com/icon64.png",
		"128": "https://app.example.com/icon128.png",
	}

	// Exact size preferred
	url := client.GetIconURL(context.Background(), icons, 64)
	assert.Contains(t, url, "icon64.png")

	// Otherwise the largest wins
	url = client.GetIconURL(context.Background(), icons, 256)
	assert.Contains(t, url, "icon128.png")

	assert.Empty(t, client.GetIconURL(context.Background(), nil, 64))
}

func TestClient_GetIconURL_BestEffort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)

	url := client.GetIconURL(context.Background(), map[string]string{"64": "https://app.example.com/icon64.png"}, 64)
	assert.Empty(t, url)
}
