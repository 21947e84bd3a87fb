package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mozpay/webpay-server/pkg/cache"
	"github.com/mozpay/webpay-server/pkg/metrics"
	"github.com/mozpay/webpay-server/pkg/retry"
	"github.com/mozpay/webpay-server/pkg/retry/backoff"
)

const (
	priceEndpointName = "api/v1/webpay/prices"
	iconEndpointName  = "api/v1/webpay/icons"

	metricsStructName = "marketplace.client"

	maxPriceAttempts = 5
	priceRetryDelay  = 500 * time.Millisecond

	priceCacheBudget = 256
)

var (
	// ErrUnknownPricePoint indicates the catalog has no tier for the point
	ErrUnknownPricePoint = errors.New("unknown price point")

	// ErrConnection indicates the catalog could not be reached after retries
	ErrConnection = errors.New("error communicating with marketplace")
)

// Price is a localized amount within a tier.
type Price struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// PriceTier is a purchasable tier from the marketplace catalog.
type PriceTier struct {
	PricePoint string  `json:"price_point"`
	Name       string  `json:"name"`
	Prices     []Price `json:"prices"`
}

// IsFree reports whether every localized amount in the tier is zero.
func (t *PriceTier) IsFree() bool {
	for _, price := range t.Prices {
		value, err := strconv.ParseFloat(price.Amount, 64)
		if err != nil || value != 0 {
			return false
		}
	}
	return len(t.Prices) > 0
}

// PriceFor returns the amount for a currency, falling back to the first
// listed price.
func (t *PriceTier) PriceFor(currency string) *Price {
	for i, price := range t.Prices {
		if price.Currency == currency {
			return &t.Prices[i]
		}
	}
	if len(t.Prices) > 0 {
		return &t.Prices[0]
	}
	return nil
}

type Client struct {
	baseUrl    string
	httpClient *http.Client
	priceCache cache.Cache
}

// NewClient returns a new client against the marketplace catalog API
func NewClient(baseUrl string, timeout time.Duration) *Client {
	return &Client{
		baseUrl: baseUrl,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		priceCache: cache.NewCache(priceCacheBudget),
	}
}

// GetPrice gets the price tier for a price point. Connection failures are
// retried a bounded number of times before giving up with ErrConnection.
// Unknown price points are not retried.
func (c *Client) GetPrice(ctx context.Context, pricePoint string) (*PriceTier, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetPrice")
	defer tracer.End()

	if cached, ok := c.priceCache.Retrieve(pricePoint); ok {
		return cached.(*PriceTier), nil
	}

	var tier *PriceTier
	_, err := retry.Retry(
		func() error {
			var err error
			tier, err = c.getPrice(ctx, pricePoint)
			return err
		},
		retry.NonRetriableErrors(ErrUnknownPricePoint, context.Canceled),
		retry.Limit(maxPriceAttempts),
		retry.Backoff(backoff.Constant(priceRetryDelay), priceRetryDelay),
	)
	if err != nil {
		if errors.Is(err, ErrUnknownPricePoint) {
			tracer.OnError(err)
			return nil, err
		}
		tracer.OnError(ErrConnection)
		return nil, errors.Wrap(ErrConnection, err.Error())
	}

	c.priceCache.Insert(pricePoint, tier, 1)
	return tier, nil
}

// GetIconURL resolves a product icon from the marketplace icon cache. The
// icons map keys are pixel sizes. An exact match on preferredSize wins,
// otherwise the largest cached icon is used. Failures are swallowed and an
// empty string is returned; icons are cosmetic.
func (c *Client) GetIconURL(ctx context.Context, icons map[string]string, preferredSize int) string {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetIconURL")
	defer tracer.End()

	if len(icons) == 0 {
		return ""
	}

	sourceUrl, ok := icons[strconv.Itoa(preferredSize)]
	if !ok {
		largest := -1
		for key, value := range icons {
			size, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			if size > largest {
				largest = size
				sourceUrl = value
			}
		}
		if largest < 0 {
			return ""
		}
	}

	cached, err := c.getCachedIcon(ctx, sourceUrl)
	if err != nil {
		// Best effort. The purchase flow renders without an icon.
		return ""
	}
	return cached
}

func (c *Client) getPrice(ctx context.Context, pricePoint string) (*PriceTier, error) {
	url := fmt.Sprintf("%s%s/%s/", c.baseUrl, priceEndpointName, pricePoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "error executing http request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnknownPricePoint
	} else if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("received http status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed PriceTier
	err = json.Unmarshal(respBody, &parsed)
	if err != nil {
		return nil, errors.Wrap(err, "error unmarshalling json response")
	}
	if len(parsed.PricePoint) == 0 {
		parsed.PricePoint = pricePoint
	}

	return &parsed, nil
}

func (c *Client) getCachedIcon(ctx context.Context, sourceUrl string) (string, error) {
	url := fmt.Sprintf("%s%s/?src=%s", c.baseUrl, iconEndpointName, sourceUrl)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "error creating http request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "error executing http request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("received http status %d", resp.StatusCode)
	}

	var parsed struct {
		Url string `json:"url"`
	}
	err = json.Unmarshal(respBody, &parsed)
	if err != nil {
		return "", errors.Wrap(err, "error unmarshalling json response")
	}
	return parsed.Url, nil
}
