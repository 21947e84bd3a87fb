package request

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	issuer_data "github.com/mozpay/webpay-server/pkg/webpay/data/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/marketplace"
)

var testSecret = []byte("issuer-secret")

type fakeResolver struct {
	issuers map[string]*issuer.Resolved
}

func (r *fakeResolver) Resolve(_ context.Context, issuerKey string) (*issuer.Resolved, error) {
	resolved, ok := r.issuers[issuerKey]
	if !ok {
		return nil, issuer.ErrUnknownIssuer
	}
	return resolved, nil
}

type fakePrices struct {
	tiers map[string]*marketplace.PriceTier
	err   error
}

func (p *fakePrices) GetPrice(_ context.Context, pricePoint string) (*marketplace.PriceTier, error) {
	if p.err != nil {
		return nil, p.err
	}
	tier, ok := p.tiers[pricePoint]
	if !ok {
		return nil, marketplace.ErrUnknownPricePoint
	}
	return tier, nil
}

type testEnv struct {
	ctx       context.Context
	resolver  *fakeResolver
	prices    *fakePrices
	validator *Validator
}

func setup(t *testing.T, overrides *testOverrides) *testEnv {
	if overrides == nil {
		overrides = &testOverrides{
			simulateEnabled: true,
			payEnabled:      true,
		}
	}

	resolver := &fakeResolver{
		issuers: map[string]*issuer.Resolved{
			"app.example.com-1": {
				IssuerKey: "app.example.com-1",
				Secret:    testSecret,
				Access:    issuer_data.AccessPurchase,
			},
			"simonly.example.com-1": {
				IssuerKey: "simonly.example.com-1",
				Secret:    testSecret,
				Access:    issuer_data.AccessSimulate,
			},
			"both.example.com-1": {
				IssuerKey: "both.example.com-1",
				Secret:    testSecret,
				Access:    issuer_data.AccessBoth,
			},
		},
	}
	prices := &fakePrices{
		tiers: map[string]*marketplace.PriceTier{
			"1": {PricePoint: "1", Prices: []marketplace.Price{{Amount: "0.99", Currency: "USD"}}},
		},
	}

	return &testEnv{
		ctx:       context.Background(),
		resolver:  resolver,
		prices:    prices,
		validator: NewValidator(resolver, prices, withManualTestOverrides(overrides)),
	}
}

func payClaims(issuerKey string, mutate func(claims jwt.MapClaims, request map[string]interface{})) jwt.MapClaims {
	now := time.Now().Unix()
	request := map[string]interface{}{
		"id":            "product-1",
		"pricePoint":    "1",
		"name":          "Magical Unicorn",
		"description":   "A unicorn to call your own",
		"postbackURL":   "https://app.example.com/postback",
		"chargebackURL": "https://app.example.com/chargeback",
	}
	claims := jwt.MapClaims{
		"iss":     issuerKey,
		"aud":     defaultAudience,
		"typ":     "mozilla/payments/pay/v1",
		"iat":     now,
		"exp":     now + 3600,
		"request": request,
	}
	if mutate != nil {
		mutate(claims, request)
	}
	return claims
}

func signed(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return raw
}

func TestValidator_HappyPath(t *testing.T) {
	env := setup(t, nil)

	validated, fail := env.validator.Validate(env.ctx, signed(t, payClaims("app.example.com-1", nil), testSecret))
	require.Nil(t, fail)

	assert.Equal(t, "app.example.com-1", validated.Issuer.IssuerKey)
	assert.Equal(t, "product-1", validated.Request.ID)
	assert.Equal(t, "1", validated.Request.PricePoint)
	assert.Equal(t, "Magical Unicorn", validated.Request.Name)
	assert.False(t, validated.Simulated)
}

func TestValidator_UnknownIssuer(t *testing.T) {
	env := setup(t, nil)

	_, fail := env.validator.Validate(env.ctx, signed(t, payClaims("nobody", nil), testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeInvalidJWTOrUnknownIssuer, fail.Code)

	_, fail = env.validator.Validate(env.ctx, "not.a.token")
	require.NotNil(t, fail)
	assert.Equal(t, CodeInvalidJWTOrUnknownIssuer, fail.Code)
}

func TestValidator_BadSignature(t *testing.T) {
	env := setup(t, nil)

	_, fail := env.validator.Validate(env.ctx, signed(t, payClaims("app.example.com-1", nil), []byte("wrong-secret")))
	require.NotNil(t, fail)
	assert.Equal(t, CodeInvalidJWT, fail.Code)
}

func TestValidator_ExpiredJWT(t *testing.T) {
	env := setup(t, nil)

	claims := payClaims("app.example.com-1", func(claims jwt.MapClaims, _ map[string]interface{}) {
		claims["iat"] = time.Now().Unix() - 7200
		claims["exp"] = time.Now().Unix() - 3600
	})

	_, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeExpiredJWT, fail.Code)
}

func TestValidator_MissingPricePoint(t *testing.T) {
	env := setup(t, nil)

	claims := payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		delete(request, "pricePoint")
	})

	_, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeInvalidJWT, fail.Code)
}

func TestValidator_MalformedCallbackURL(t *testing.T) {
	env := setup(t, nil)

	for _, badUrl := range []string{"fooey!", "ftp://app.example.com/postback", "/relative/path"} {
		claims := payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
			request["postbackURL"] = badUrl
		})

		_, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
		require.NotNil(t, fail, badUrl)
		assert.Equal(t, CodeMalformedURL, fail.Code, badUrl)
	}
}

func TestValidator_Icons(t *testing.T) {
	env := setup(t, nil)

	claims := payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["icons"] = map[string]interface{}{"huge": "https://app.example.com/icon.png"}
	})
	_, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeBadIconKey, fail.Code)

	claims = payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["icons"] = map[string]interface{}{"64": "ftp://app.example.com/icon.png"}
	})
	_, fail = env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeMalformedURL, fail.Code)
}

func TestValidator_LocalesRequireDefault(t *testing.T) {
	env := setup(t, nil)

	claims := payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["locales"] = map[string]interface{}{
			"es": map[string]interface{}{"name": "Unicornio Mágico"},
		}
	})
	_, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeNoDefaultLocale, fail.Code)

	claims = payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["defaultLocale"] = "en"
		request["locales"] = map[string]interface{}{
			"es": map[string]interface{}{"name": "Unicornio Mágico"},
		}
	})
	validated, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.Nil(t, fail)

	// Exact tag > bare language > top-level fallback
	assert.Equal(t, "Unicornio Mágico", validated.Request.LocalizedName("es"))
	assert.Equal(t, "Unicornio Mágico", validated.Request.LocalizedName("es-MX"))
	assert.Equal(t, "A unicorn to call your own", validated.Request.LocalizedDescription("es"))
}

func TestValidator_TruncationIsRepair(t *testing.T) {
	env := setup(t, nil)

	longName := strings.Repeat("x", 2*defaultMaxNameLength)
	claims := payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["name"] = longName
	})

	validated, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.Nil(t, fail)
	assert.Len(t, validated.Request.Name, defaultMaxNameLength)
	assert.True(t, strings.HasSuffix(validated.Request.Name, "..."))
}

func TestValidator_TruncationKeepsRunesIntact(t *testing.T) {
	env := setup(t, nil)

	// Two-byte runes force the cut point inside a rune; the repaired
	// value must stay valid UTF-8 and never exceed the limit.
	longName := strings.Repeat("ü", defaultMaxNameLength)
	claims := payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["name"] = longName
	})

	validated, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.Nil(t, fail)
	assert.True(t, utf8.ValidString(validated.Request.Name))
	assert.LessOrEqual(t, len(validated.Request.Name), defaultMaxNameLength)
	assert.True(t, strings.HasSuffix(validated.Request.Name, "..."))
	assert.True(t, strings.HasPrefix(validated.Request.Name, "ü"))
}

func TestValidator_Simulations(t *testing.T) {
	env := setup(t, nil)

	// Bad result value
	claims := payClaims("both.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["simulate"] = map[string]interface{}{"result": "explode"}
	})
	_, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeBadSimResult, fail.Code)

	// Chargeback requires a reason
	claims = payClaims("both.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["simulate"] = map[string]interface{}{"result": "chargeback"}
	})
	_, fail = env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeNoSimReason, fail.Code)

	// Purchase-only keys can't simulate
	claims = payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["simulate"] = map[string]interface{}{"result": "postback"}
	})
	_, fail = env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeSimDisabled, fail.Code)

	// Simulate-only keys must simulate
	_, fail = env.validator.Validate(env.ctx, signed(t, payClaims("simonly.example.com-1", nil), testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeSimOnlyKey, fail.Code)

	// Valid simulated chargeback, bypassing the scheme allow-list
	claims = payClaims("both.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["postbackURL"] = "ftp://app.example.com/postback"
		request["simulate"] = map[string]interface{}{"result": "chargeback", "reason": "refund"}
	})
	validated, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.Nil(t, fail)
	assert.True(t, validated.Simulated)
	assert.Equal(t, "refund", validated.Request.Simulate.Reason)
}

func TestValidator_SimulatedCallbacksMustBeAbsolute(t *testing.T) {
	env := setup(t, nil)

	// Only the scheme allow-list is relaxed for simulations; a URL with
	// no scheme or host still fails, since it is the notice destination.
	for _, badUrl := range []string{"fooey!", "/relative/path"} {
		claims := payClaims("both.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
			request["postbackURL"] = badUrl
			request["simulate"] = map[string]interface{}{"result": "postback"}
		})

		_, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
		require.NotNil(t, fail, badUrl)
		assert.Equal(t, CodeMalformedURL, fail.Code, badUrl)
	}
}

func TestValidator_SimulationsDisabledGlobally(t *testing.T) {
	env := setup(t, &testOverrides{simulateEnabled: false, payEnabled: true})

	claims := payClaims("both.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["simulate"] = map[string]interface{}{"result": "postback"}
	})
	_, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeSimDisabled, fail.Code)
}

func TestValidator_PaymentsDisabledGlobally(t *testing.T) {
	env := setup(t, &testOverrides{simulateEnabled: true, payEnabled: false})

	_, fail := env.validator.Validate(env.ctx, signed(t, payClaims("app.example.com-1", nil), testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodePayDisabled, fail.Code)
}

func TestValidator_BadPricePoint(t *testing.T) {
	env := setup(t, nil)

	claims := payClaims("app.example.com-1", func(_ jwt.MapClaims, request map[string]interface{}) {
		request["pricePoint"] = "999"
	})
	_, fail := env.validator.Validate(env.ctx, signed(t, claims, testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeBadPricePoint, fail.Code)
}

func TestValidator_PriceLookupConnectionFailure(t *testing.T) {
	env := setup(t, nil)
	env.prices.err = marketplace.ErrConnection

	_, fail := env.validator.Validate(env.ctx, signed(t, payClaims("app.example.com-1", nil), testSecret))
	require.NotNil(t, fail)
	assert.Equal(t, CodeConnectionFailed, fail.Code)
}
