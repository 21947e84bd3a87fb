package notice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mozpay/webpay-server/pkg/metrics"
	"github.com/mozpay/webpay-server/pkg/retry"
	"github.com/mozpay/webpay-server/pkg/retry/backoff"
	"github.com/mozpay/webpay-server/pkg/webpay/data"
	notice_data "github.com/mozpay/webpay-server/pkg/webpay/data/notice"
	"github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
	"github.com/mozpay/webpay-server/pkg/webpay/issuer"
)

const (
	metricsStructName = "notice.notifier"

	contentTypeHeaderName  = "Content-Type"
	contentTypeHeaderValue = "application/jwt"
)

// Transport-class delivery failures, retried with a fixed delay. Everything
// else is terminal for the delivery as a whole.
var (
	// ErrConnection indicates the POST itself failed (network, timeout)
	ErrConnection = errors.New("connection failure")

	// ErrBadStatus indicates the issuer answered with a non-2xx status
	ErrBadStatus = errors.New("bad http status")

	// ErrBadResponse indicates the issuer's echoed body did not match the
	// transaction uuid. The HTTP layer succeeded, the acknowledgment
	// contract did not, so retrying would not help.
	ErrBadResponse = errors.New("bad echo response")
)

// Result is the outcome of a single Notify call.
type Result struct {
	Success   bool
	Attempts  uint8
	LastError string
}

type Notifier struct {
	log        *logrus.Entry
	conf       *conf
	data       data.Provider
	httpClient *http.Client
}

// NewNotifier returns a notifier that delivers signed outcome notices to
// issuers and records each outcome in the notice ledger.
func NewNotifier(dataProvider data.Provider, configProvider ConfigProvider) *Notifier {
	return &Notifier{
		log:        logrus.StandardLogger().WithField("service", "notifier"),
		conf:       configProvider(),
		data:       dataProvider,
		httpClient: http.DefaultClient,
	}
}

// Notify builds, signs and delivers an outcome notice for the transaction.
// Transport failures are retried with a fixed delay up to the attempt cap.
// Exactly one ledger row is appended per call, whatever the outcome. An
// unsupported kind aborts with an error before anything is sent or recorded.
func (n *Notifier) Notify(
	ctx context.Context,
	txn *transaction.Record,
	resolved *issuer.Resolved,
	kind notice_data.Kind,
	extraResponse map[string]interface{},
) (*Result, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Notify")
	defer tracer.End()

	log := n.log.WithFields(logrus.Fields{
		"method":      "Notify",
		"transaction": txn.Uuid,
		"kind":        kind.String(),
	})

	signed, err := buildPayload(n.conf.notifyIssuer.Get(ctx), txn, resolved, kind, extraResponse)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	originalRequest, err := parseOriginalRequest(txn)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	destination, err := destinationForKind(kind, resolved, originalRequest)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}

	attempts, deliveryErr := retry.Retry(
		func() error {
			return n.deliver(ctx, destination, signed, txn.Uuid)
		},
		retry.RetriableErrors(ErrConnection, ErrBadStatus),
		retry.Limit(uint(n.conf.maxAttempts.Get(ctx))),
		retry.Backoff(backoff.Constant(n.conf.retryDelay.Get(ctx)), n.conf.retryDelay.Get(ctx)),
	)

	result := &Result{
		Success:  deliveryErr == nil,
		Attempts: uint8(attempts),
	}
	if deliveryErr != nil {
		result.LastError = formatDeliveryError(deliveryErr)
		log.WithError(deliveryErr).WithField("attempts", attempts).Warn("failure delivering notice")
	}

	record := &notice_data.Record{
		NoticeId:        uuid.New().String(),
		TransactionUuid: txn.Uuid,
		Url:             destination,
		Kind:            kind,

		Success:   result.Success,
		Attempts:  result.Attempts,
		LastError: result.LastError,
	}
	if err := n.data.PutNotice(ctx, record); err != nil {
		log.WithError(err).Warn("failure recording notice ledger row")
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error recording notice")
	}

	return result, nil
}

// deliver executes a single POST of the raw signed token. Success requires a
// 2xx status AND a response body exactly equal to the transaction uuid. The
// echoed body is the real acknowledgment; no trimming or normalization is
// applied.
func (n *Notifier) deliver(ctx context.Context, destination, signedToken, transactionUuid string) error {
	req, err := http.NewRequest(http.MethodPost, destination, strings.NewReader(signedToken))
	if err != nil {
		return errors.Wrap(ErrConnection, err.Error())
	}
	req.Header.Set(contentTypeHeaderName, contentTypeHeaderValue)

	deliveryCtx, cancel := context.WithTimeout(ctx, n.conf.deliveryTimeout.Get(ctx))
	defer cancel()
	req = req.WithContext(deliveryCtx)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(ErrConnection, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(ErrConnection, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrap(ErrBadStatus, fmt.Sprintf("received http status %d", resp.StatusCode))
	}

	if string(respBody) != transactionUuid {
		return errors.Wrap(ErrBadResponse, fmt.Sprintf("body %q does not equal transaction uuid", string(respBody)))
	}

	return nil
}

// formatDeliveryError renders a failure as "<TypeName>: <message>", bounded
// to the ledger's column width.
func formatDeliveryError(err error) string {
	var class string
	switch {
	case errors.Is(err, ErrBadResponse):
		class = "BadResponseError"
	case errors.Is(err, ErrBadStatus):
		class = "BadStatusError"
	case errors.Is(err, ErrConnection):
		class = "ConnectionError"
	default:
		class = "Error"
	}

	formatted := fmt.Sprintf("%s: %s", class, err.Error())
	if len(formatted) > notice_data.MaxLastErrorLength {
		formatted = formatted[:notice_data.MaxLastErrorLength]
	}
	return formatted
}
