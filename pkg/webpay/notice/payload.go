package notice

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	notice_data "github.com/mozpay/webpay-server/pkg/webpay/data/notice"
	"github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
	"github.com/mozpay/webpay-server/pkg/webpay/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/token"
)

const (
	// Notice typ strings, fixed by the notice protocol
	TypPostback   = "mozilla/payments/pay/postback/v1"
	TypChargeback = "mozilla/payments/pay/chargeback/v1"

	// Validity window for outbound notices
	noticeValidity = time.Hour
)

// ErrUnsupportedKind indicates a caller asked for a notice kind the protocol
// doesn't define. This is a contract violation, not a delivery failure.
var ErrUnsupportedKind = errors.New("unsupported notice kind")

func typForKind(kind notice_data.Kind) (string, error) {
	switch kind {
	case notice_data.KindPayment:
		return TypPostback, nil
	case notice_data.KindChargeback:
		return TypChargeback, nil
	}
	return "", ErrUnsupportedKind
}

// destinationForKind picks the issuer callback URL for a notice kind. The
// registered issuer's resolved URLs win; the marketplace falls back to the
// URLs carried in the original pay request.
func destinationForKind(kind notice_data.Kind, resolved *issuer.Resolved, originalRequest map[string]interface{}) (string, error) {
	var fromIssuer, fromRequest string
	switch kind {
	case notice_data.KindPayment:
		fromIssuer = resolved.PostbackURL
		fromRequest, _ = originalRequest["postbackURL"].(string)
	case notice_data.KindChargeback:
		fromIssuer = resolved.ChargebackURL
		fromRequest, _ = originalRequest["chargebackURL"].(string)
	default:
		return "", ErrUnsupportedKind
	}

	if len(fromIssuer) > 0 {
		return fromIssuer, nil
	}
	if len(fromRequest) > 0 {
		return fromRequest, nil
	}
	return "", errors.Errorf("no %s url available", kind)
}

// buildPayload constructs and signs the outbound notice token. The original
// request object is mirrored back so the issuer can correlate, and the
// response carries the transaction id plus whatever the kind requires.
func buildPayload(
	notifyIssuer string,
	txn *transaction.Record,
	resolved *issuer.Resolved,
	kind notice_data.Kind,
	extraResponse map[string]interface{},
) (string, error) {
	typ, err := typForKind(kind)
	if err != nil {
		return "", err
	}

	originalRequest, err := parseOriginalRequest(txn)
	if err != nil {
		return "", err
	}

	response := map[string]interface{}{
		"transactionID": txn.Uuid,
	}
	if len(txn.Amount) > 0 {
		response["price"] = map[string]interface{}{
			"amount":   txn.Amount,
			"currency": txn.Currency,
		}
	}
	for key, value := range extraResponse {
		response[key] = value
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":      notifyIssuer,
		"aud":      resolved.IssuerKey,
		"typ":      typ,
		"iat":      now.Unix(),
		"exp":      now.Add(noticeValidity).Unix(),
		"request":  originalRequest,
		"response": response,
	}

	return token.Encode(claims, resolved.Secret)
}

func parseOriginalRequest(txn *transaction.Record) (map[string]interface{}, error) {
	res := make(map[string]interface{})
	if len(txn.JSONRequest) == 0 {
		return res, nil
	}

	if err := json.Unmarshal([]byte(txn.JSONRequest), &res); err != nil {
		return nil, errors.Wrap(err, "error parsing original request json")
	}
	return res, nil
}
