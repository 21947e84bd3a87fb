package solitude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/mozpay/webpay-server/pkg/metrics"
)

const (
	transactionEndpointName = "generic/transaction"
	configureEndpointName   = "webpay/configure"

	metricsStructName = "solitude.client"
)

var (
	// ErrTransactionNotFound indicates the billing backend has no such transaction
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSellerNotConfigured indicates the seller has no usable billing setup
	ErrSellerNotConfigured = errors.New("seller is not configured for billing")
)

// Status of a transaction as reported by the billing backend.
type Status string

const (
	StatusPending   Status = "pending"
	StatusChecked   Status = "checked"
	StatusReceived  Status = "received"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusErrored   Status = "errored"
)

// RetryOKStatuses are terminal statuses that allow a buyer to start the
// purchase over with a freshly minted transaction.
var RetryOKStatuses = map[Status]struct{}{
	StatusFailed:    {},
	StatusCancelled: {},
	StatusErrored:   {},
}

// IsRetryOK reports whether a new transaction may replace one in this status.
func (s Status) IsRetryOK() bool {
	_, ok := RetryOKStatuses[s]
	return ok
}

// Transaction is the billing backend's view of a purchase.
type Transaction struct {
	UUID      string `json:"uuid"`
	Status    Status `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	PayURL    string `json:"pay_url,omitempty"`
	BillingID string `json:"billing_id,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

// CreateTransactionArgs describes a new billing backend transaction.
type CreateTransactionArgs struct {
	UUID       string `json:"uuid"`
	SellerUUID string `json:"seller_uuid"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Product    string `json:"product"`
}

// UpdateTransactionArgs carries the mutable transaction fields.
type UpdateTransactionArgs struct {
	Status    Status `json:"status,omitempty"`
	PayURL    string `json:"pay_url,omitempty"`
	BillingID string `json:"billing_id,omitempty"`
}

// ConfigureProductArgs describes a product to set up with a billing provider.
type ConfigureProductArgs struct {
	TransactionUUID string `json:"transaction_uuid"`
	SellerUUID      string `json:"seller_uuid"`
	ProductName     string `json:"product_name"`
	ExternalID      string `json:"external_id"`
	PricePoint      string `json:"price_point"`
	Icon            string `json:"icon,omitempty"`

	// Carrier network used for provider selection
	MCC string `json:"mcc,omitempty"`
	MNC string `json:"mnc,omitempty"`
}

// ConfiguredBilling is the outcome of a successful provider configuration.
type ConfiguredBilling struct {
	BillingID         string `json:"billing_id"`
	SellerProductUUID string `json:"seller_product_uuid"`
	PayURL            string `json:"pay_url"`
}

type Client struct {
	baseUrl    string
	httpClient *http.Client
}

// NewClient returns a new client against the billing backend API. Every call
// is bounded by the provided timeout.
func NewClient(baseUrl string, timeout time.Duration) *Client {
	return &Client{
		baseUrl: baseUrl,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetTransaction gets a transaction by uuid.
func (c *Client) GetTransaction(ctx context.Context, uuid string) (*Transaction, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetTransaction")
	defer tracer.End()

	var res Transaction
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s%s/%s/", c.baseUrl, transactionEndpointName, uuid), nil, &res)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return &res, nil
}

// CreateTransaction creates a new transaction.
func (c *Client) CreateTransaction(ctx context.Context, args *CreateTransactionArgs) (*Transaction, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateTransaction")
	defer tracer.End()

	var res Transaction
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s%s/", c.baseUrl, transactionEndpointName), args, &res)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return &res, nil
}

// UpdateTransaction patches a transaction's status, pay url or billing id.
func (c *Client) UpdateTransaction(ctx context.Context, uuid string, args *UpdateTransactionArgs) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "UpdateTransaction")
	defer tracer.End()

	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("%s%s/%s/", c.baseUrl, transactionEndpointName, uuid), args, nil)
	if err != nil {
		tracer.OnError(err)
	}
	return err
}

// ConfigureProductForBilling sets up the seller's product with a billing
// provider and returns the provider artifacts needed to start payment.
func (c *Client) ConfigureProductForBilling(ctx context.Context, args *ConfigureProductArgs) (*ConfiguredBilling, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ConfigureProductForBilling")
	defer tracer.End()

	var res ConfiguredBilling
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s%s/", c.baseUrl, configureEndpointName), args, &res)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, url string, reqBody, respDest interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return errors.Wrap(err, "error marshalling request body")
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return errors.Wrap(err, "error creating http request")
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "error executing http request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrTransactionNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeFieldErrors(resp.StatusCode, respBody)
	}

	if respDest != nil {
		err = json.Unmarshal(respBody, respDest)
		if err != nil {
			return errors.Wrap(err, "error unmarshalling json response")
		}
	}
	return nil
}

// decodeFieldErrors maps the backend's structured field error payload to
// sentinel errors where a caller can act on them.
func decodeFieldErrors(statusCode int, respBody []byte) error {
	var parsed map[string][]string
	if err := json.Unmarshal(respBody, &parsed); err == nil {
		if _, ok := parsed["seller"]; ok {
			return ErrSellerNotConfigured
		}
		if _, ok := parsed["seller_uuid"]; ok {
			return ErrSellerNotConfigured
		}
	}
	return errors.Errorf("received http status %d: %s", statusCode, string(respBody))
}
