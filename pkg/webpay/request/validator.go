package request

import (
	"context"
	"strconv"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mozpay/webpay-server/pkg/metrics"
	"github.com/mozpay/webpay-server/pkg/netutil"
	"github.com/mozpay/webpay-server/pkg/webpay/issuer"
	issuer_data "github.com/mozpay/webpay-server/pkg/webpay/data/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/marketplace"
	"github.com/mozpay/webpay-server/pkg/webpay/token"
)

const (
	metricsStructName = "request.validator"

	truncationMarker = "..."
)

// requiredClaims every pay request must carry, as dotted paths.
var requiredClaims = []string{
	"iss",
	"aud",
	"typ",
	"iat",
	"exp",
	"request.id",
	"request.pricePoint",
	"request.name",
	"request.description",
	"request.postbackURL",
	"request.chargebackURL",
}

// IssuerResolver resolves an issuer key to its secret and access level.
type IssuerResolver interface {
	Resolve(ctx context.Context, issuerKey string) (*issuer.Resolved, error)
}

// PriceChecker confirms price points against the marketplace catalog.
type PriceChecker interface {
	GetPrice(ctx context.Context, pricePoint string) (*marketplace.PriceTier, error)
}

type Validator struct {
	log         *logrus.Entry
	conf        *conf
	resolver    IssuerResolver
	priceSource PriceChecker
}

// NewValidator returns a validator for inbound signed payment requests.
func NewValidator(resolver IssuerResolver, priceSource PriceChecker, configProvider ConfigProvider) *Validator {
	return &Validator{
		log:         logrus.StandardLogger().WithField("service", "request_validator"),
		conf:        configProvider(),
		resolver:    resolver,
		priceSource: priceSource,
	}
}

// Validate runs the full check sequence over a raw signed pay request. The
// returned Failure carries a stable error code; callers must not retry
// failures.
func (v *Validator) Validate(ctx context.Context, rawToken string) (*Validated, *Failure) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Validate")
	defer tracer.End()

	log := v.log.WithField("method", "Validate")

	// Phase 1: unverified peek at iss to find the signing secret
	issuerKey, err := token.PeekIssuer(rawToken)
	if err != nil {
		return nil, failure(CodeInvalidJWTOrUnknownIssuer, err)
	}

	resolved, err := v.resolver.Resolve(ctx, issuerKey)
	if err != nil {
		return nil, failure(CodeInvalidJWTOrUnknownIssuer, err)
	}

	// Phase 2: authenticated decode with the resolved secret
	payload, err := token.Decode(rawToken, v.conf.audience.Get(ctx), resolved.Secret, requiredClaims)
	switch {
	case err == nil:
	case errors.Is(err, token.ErrExpired):
		return nil, failure(CodeExpiredJWT, err)
	default:
		return nil, failure(CodeInvalidJWT, err)
	}

	payRequest, err := parsePayRequest(payload.Request)
	if err != nil {
		return nil, failure(CodeInvalidJWT, err)
	}

	// Simulated flows bypass the callback scheme allow-list only; every
	// URL must still be absolute, since simulated notices are delivered
	// to it. The semantic simulation checks run in order further down.
	simulating := payRequest.Simulate != nil || resolved.Access == issuer_data.AccessSimulate

	allowedSchemes := v.conf.allowedSchemes.Get(ctx)
	if simulating {
		allowedSchemes = nil
	}

	if err := netutil.ValidateCallbackUrl(payRequest.PostbackURL, allowedSchemes); err != nil {
		return nil, failure(CodeMalformedURL, errors.Wrap(err, "postbackURL"))
	}
	if err := netutil.ValidateCallbackUrl(payRequest.ChargebackURL, allowedSchemes); err != nil {
		return nil, failure(CodeMalformedURL, errors.Wrap(err, "chargebackURL"))
	}

	for size, iconUrl := range payRequest.Icons {
		if _, err := strconv.Atoi(size); err != nil {
			return nil, failure(CodeBadIconKey, errors.Errorf("icon key %q is not a size", size))
		}
		if err := netutil.ValidateCallbackUrl(iconUrl, allowedSchemes); err != nil {
			return nil, failure(CodeMalformedURL, errors.Wrapf(err, "icon %s", size))
		}
	}

	if len(payRequest.Locales) > 0 && len(payRequest.DefaultLocale) == 0 {
		return nil, failure(CodeNoDefaultLocale, errors.New("locales without defaultLocale"))
	}

	// Over-length fields are repaired, not rejected
	maxName := int(v.conf.maxNameLength.Get(ctx))
	maxDescription := int(v.conf.maxDescriptionLength.Get(ctx))
	payRequest.Name = truncate(payRequest.Name, maxName)
	payRequest.Description = truncate(payRequest.Description, maxDescription)
	for tag, entry := range payRequest.Locales {
		entry.Name = truncate(entry.Name, maxName)
		entry.Description = truncate(entry.Description, maxDescription)
		payRequest.Locales[tag] = entry
	}

	if payRequest.Simulate != nil {
		switch payRequest.Simulate.Result {
		case SimResultPostback:
		case SimResultChargeback:
			if len(payRequest.Simulate.Reason) == 0 {
				return nil, failure(CodeNoSimReason, errors.New("simulated chargeback requires a reason"))
			}
		default:
			return nil, failure(CodeBadSimResult, errors.Errorf("unsupported simulate result %q", payRequest.Simulate.Result))
		}

		if !v.conf.simulateEnabled.Get(ctx) {
			return nil, failure(CodeSimDisabled, errors.New("simulations are disabled"))
		}
		if !resolved.Access.AllowsSimulate() {
			return nil, failure(CodeSimDisabled, errors.Errorf("issuer access %s does not allow simulations", resolved.Access))
		}
	} else {
		if resolved.Access == issuer_data.AccessSimulate {
			return nil, failure(CodeSimOnlyKey, errors.New("issuer key is restricted to simulations"))
		}
		if !v.conf.payEnabled.Get(ctx) {
			return nil, failure(CodePayDisabled, errors.New("payments are disabled"))
		}
	}

	if _, err := v.priceSource.GetPrice(ctx, payRequest.PricePoint); err != nil {
		if errors.Is(err, marketplace.ErrUnknownPricePoint) {
			return nil, failure(CodeBadPricePoint, err)
		}

		log.WithError(err).Warn("failure confirming price point")
		tracer.OnError(err)
		return nil, failure(CodeConnectionFailed, err)
	}

	return &Validated{
		Issuer:    resolved,
		Payload:   payload,
		Request:   payRequest,
		Simulated: simulating,
	}, nil
}

// truncate repairs an over-length field without splitting a multi-byte rune.
func truncate(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}

	marker := truncationMarker
	if max <= len(marker) {
		marker = ""
	}

	limit := max - len(marker)
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	return value[:limit] + marker
}
