package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozpay/webpay-server/pkg/pointer"
	"github.com/mozpay/webpay-server/pkg/webpay/data"
	issuer_data "github.com/mozpay/webpay-server/pkg/webpay/data/issuer"
	transaction_data "github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
	"github.com/mozpay/webpay-server/pkg/webpay/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/localization"
	"github.com/mozpay/webpay-server/pkg/webpay/request"
	"github.com/mozpay/webpay-server/pkg/webpay/token"
	"github.com/mozpay/webpay-server/pkg/webpay/transaction"
)

const testProviderSecret = "provider-secret"

type fakeValidator struct {
	validated *request.Validated
	failure   *request.Failure
}

func (v *fakeValidator) Validate(_ context.Context, _ string) (*request.Validated, *request.Failure) {
	return v.validated, v.failure
}

type fakeConfigurator struct {
	configured chan *transaction.Notes
	err        error
}

func (f *fakeConfigurator) Configure(_ context.Context, notes *transaction.Notes) (bool, error) {
	f.configured <- notes
	return f.err == nil, f.err
}

type dispatched struct {
	kind            string
	transactionUuid string
	reason          string
	sim             *request.Simulation
}

type fakeDispatcher struct {
	calls chan *dispatched
}

func (f *fakeDispatcher) DispatchPayment(_ context.Context, transactionUuid string) error {
	f.calls <- &dispatched{kind: "payment", transactionUuid: transactionUuid}
	return nil
}

func (f *fakeDispatcher) DispatchChargeback(_ context.Context, transactionUuid, reason string) error {
	f.calls <- &dispatched{kind: "chargeback", transactionUuid: transactionUuid, reason: reason}
	return nil
}

func (f *fakeDispatcher) DispatchSimulated(_ context.Context, transactionUuid string, sim *request.Simulation) error {
	f.calls <- &dispatched{kind: "simulated", transactionUuid: transactionUuid, sim: sim}
	return nil
}

type testEnv struct {
	data         data.Provider
	validator    *fakeValidator
	configurator *fakeConfigurator
	dispatcher   *fakeDispatcher
	server       *Server
}

func setup(t *testing.T, overrides *testOverrides) *testEnv {
	localizer, err := localization.NewLocalizer()
	require.NoError(t, err)

	if overrides == nil {
		overrides = &testOverrides{}
	}
	if len(overrides.providerSecret) == 0 {
		overrides.providerSecret = testProviderSecret
	}

	env := &testEnv{
		data:         data.NewTestDataProvider(),
		validator:    &fakeValidator{},
		configurator: &fakeConfigurator{configured: make(chan *transaction.Notes, 16)},
		dispatcher:   &fakeDispatcher{calls: make(chan *dispatched, 16)},
	}
	env.server = NewServer(
		env.data,
		env.validator,
		env.configurator,
		env.dispatcher,
		localizer,
		withManualTestOverrides(overrides),
	)
	return env
}

func validatedRequest(simulated bool) *request.Validated {
	payRequest := &request.PayRequest{
		ID:          "product-1",
		PricePoint:  "1",
		Name:        "Magical Unicorn",
		Description: "A unicorn",

		PostbackURL:   "https://app.example.com/postback",
		ChargebackURL: "https://app.example.com/chargeback",
	}
	if simulated {
		payRequest.Simulate = &request.Simulation{Result: request.SimResultPostback}
	}

	return &request.Validated{
		Issuer: &issuer.Resolved{
			IssuerKey: "app.example.com-1",
			Secret:    []byte("issuer-secret"),
			Access:    issuer_data.AccessBoth,
		},
		Payload: &token.Payload{
			Request: map[string]interface{}{
				"id":            "product-1",
				"pricePoint":    "1",
				"postbackURL":   payRequest.PostbackURL,
				"chargebackURL": payRequest.ChargebackURL,
			},
		},
		Request:   payRequest,
		Simulated: simulated,
	}
}

func doRequest(env *testEnv, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.server.router.ServeHTTP(w, req)
	return w
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func awaitConfigure(t *testing.T, env *testEnv) *transaction.Notes {
	select {
	case notes := <-env.configurator.configured:
		return notes
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for configuration")
		return nil
	}
}

func awaitDispatch(t *testing.T, env *testEnv) *dispatched {
	select {
	case call := <-env.dispatcher.calls:
		return call
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notice dispatch")
		return nil
	}
}

func TestServer_Pay(t *testing.T) {
	env := setup(t, nil)
	env.validator.validated = validatedRequest(false)

	req := httptest.NewRequest(http.MethodGet, "/mozpay?req=token&mcc=260&mnc=02", nil)
	req.Header.Set("Accept-Language", "pl,en-US;q=0.8")
	w := doRequest(env, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", parseBody(t, w)["status"])

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, sessionCookieName, cookies[0].Name)

	notes := awaitConfigure(t, env)
	assert.NotEmpty(t, notes.TransactionUuid)
	assert.Equal(t, "app.example.com-1", notes.IssuerKey)
	assert.Equal(t, "pl", notes.Locale)
	assert.Equal(t, "260", notes.NetworkMCC)
	assert.Equal(t, "02", notes.NetworkMNC)

	record, err := env.data.GetTransactionByUuid(context.Background(), notes.TransactionUuid)
	require.NoError(t, err)
	assert.Equal(t, transaction_data.StatusPending, record.Status)
	assert.Equal(t, "Magical Unicorn", record.ProductName)
	assert.Contains(t, record.JSONRequest, "postbackURL")
}

func TestServer_PayMissingRequestParam(t *testing.T) {
	env := setup(t, nil)

	w := doRequest(env, httptest.NewRequest(http.MethodGet, "/mozpay", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, request.CodeInvalidJWT, parseBody(t, w)["error_code"])
}

func TestServer_PayValidationFailure(t *testing.T) {
	env := setup(t, nil)
	env.validator.failure = &request.Failure{
		Code: request.CodeExpiredJWT,
		Err:  jwt.ErrTokenExpired,
	}

	w := doRequest(env, httptest.NewRequest(http.MethodGet, "/mozpay?req=token", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := parseBody(t, w)
	assert.Equal(t, request.CodeExpiredJWT, body["error_code"])

	// Production mode shows the localized legend text, not the raw error
	assert.Equal(t, "The payment request has expired. Start the purchase again.", body["error"])
}

func TestServer_PayValidationFailureVerbose(t *testing.T) {
	env := setup(t, &testOverrides{verboseErrors: true})
	env.validator.failure = &request.Failure{
		Code: request.CodeExpiredJWT,
		Err:  jwt.ErrTokenExpired,
	}

	w := doRequest(env, httptest.NewRequest(http.MethodGet, "/mozpay?req=token", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, jwt.ErrTokenExpired.Error(), parseBody(t, w)["error"])
}

func TestServer_PaySimulated(t *testing.T) {
	env := setup(t, nil)
	env.validator.validated = validatedRequest(true)

	w := doRequest(env, httptest.NewRequest(http.MethodGet, "/mozpay?req=token", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, request.SimResultPostback, parseBody(t, w)["simulation"])

	call := awaitDispatch(t, env)
	assert.Equal(t, "simulated", call.kind)
	require.NotNil(t, call.sim)
	assert.Equal(t, request.SimResultPostback, call.sim.Result)

	record, err := env.data.GetTransactionByUuid(context.Background(), call.transactionUuid)
	require.NoError(t, err)
	assert.Equal(t, transaction_data.StatusCompleted, record.Status)

	// Simulations never reach billing configuration
	select {
	case <-env.configurator.configured:
		t.Fatal("simulated request must not be configured")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_PayURLLifecycle(t *testing.T) {
	env := setup(t, nil)
	env.validator.validated = validatedRequest(false)

	// No session yet
	w := doRequest(env, httptest.NewRequest(http.MethodGet, "/mozpay/pay-url", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeTransIdNotSet, parseBody(t, w)["error_code"])

	payResp := doRequest(env, httptest.NewRequest(http.MethodGet, "/mozpay?req=token", nil))
	require.Equal(t, http.StatusOK, payResp.Code)
	cookie := payResp.Result().Cookies()[0]
	notes := awaitConfigure(t, env)

	// Still pending, no pay url yet
	req := httptest.NewRequest(http.MethodGet, "/mozpay/pay-url", nil)
	req.AddCookie(cookie)
	w = doRequest(env, req)
	require.Equal(t, http.StatusOK, w.Code)
	body := parseBody(t, w)
	assert.Equal(t, "pending", body["status"])
	assert.Empty(t, body["payURL"])

	// Billing configured
	record, err := env.data.GetTransactionByUuid(context.Background(), notes.TransactionUuid)
	require.NoError(t, err)
	record.PayURL = pointer.String("https://provider.example.com/pay/billing-1")
	require.NoError(t, env.data.UpdateTransaction(context.Background(), record))

	req = httptest.NewRequest(http.MethodGet, "/mozpay/pay-url", nil)
	req.AddCookie(cookie)
	w = doRequest(env, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://provider.example.com/pay/billing-1", parseBody(t, w)["payURL"])

	// Configuration failure surfaces as an error
	record.Status = transaction_data.StatusErrored
	require.NoError(t, env.data.UpdateTransaction(context.Background(), record))

	req = httptest.NewRequest(http.MethodGet, "/mozpay/pay-url", nil)
	req.AddCookie(cookie)
	w = doRequest(env, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeTransConfigFailed, parseBody(t, w)["error_code"])
}

func callbackToken(t *testing.T, claims map[string]interface{}) string {
	now := time.Now()
	signed, err := token.Encode(jwt.MapClaims{
		"iss":     "provider.example.com",
		"aud":     "webpay.firefox.com",
		"typ":     "provider/callback/v1",
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
		"request": claims,
	}, []byte(testProviderSecret))
	require.NoError(t, err)
	return signed
}

func postCallback(env *testEnv, path, notice string) *httptest.ResponseRecorder {
	form := url.Values{}
	if len(notice) > 0 {
		form.Set("notice", notice)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doRequest(env, req)
}

func putPendingTransaction(t *testing.T, env *testEnv, transactionUuid string) {
	require.NoError(t, env.data.PutTransaction(context.Background(), &transaction_data.Record{
		Uuid:      transactionUuid,
		Type:      transaction_data.TypePayment,
		Status:    transaction_data.StatusPending,
		IssuerKey: "app.example.com-1",
	}))
}

func TestServer_CallbackSuccess(t *testing.T) {
	env := setup(t, nil)
	putPendingTransaction(t, env, "abc-123")

	signed := callbackToken(t, map[string]interface{}{
		"transactionID": "abc-123",
		"amount":        "0.99",
		"currency":      "USD",
	})

	w := postCallback(env, "/mozpay/callback/success", signed)
	require.Equal(t, http.StatusNoContent, w.Code)

	record, err := env.data.GetTransactionByUuid(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, transaction_data.StatusCompleted, record.Status)
	assert.Equal(t, "0.99", record.Amount)
	assert.Equal(t, "USD", record.Currency)

	call := awaitDispatch(t, env)
	assert.Equal(t, "payment", call.kind)
	assert.Equal(t, "abc-123", call.transactionUuid)
}

func TestServer_CallbackSuccessReplayDispatchesOnce(t *testing.T) {
	env := setup(t, nil)
	putPendingTransaction(t, env, "abc-123")

	signed := callbackToken(t, map[string]interface{}{
		"transactionID": "abc-123",
		"amount":        "0.99",
		"currency":      "USD",
	})

	w := postCallback(env, "/mozpay/callback/success", signed)
	require.Equal(t, http.StatusNoContent, w.Code)
	call := awaitDispatch(t, env)
	assert.Equal(t, "payment", call.kind)

	// Providers retry delivery; the replay is acknowledged without a
	// second payment notice.
	w = postCallback(env, "/mozpay/callback/success", signed)
	require.Equal(t, http.StatusNoContent, w.Code)

	select {
	case call := <-env.dispatcher.calls:
		t.Fatalf("unexpected %s dispatch for %s", call.kind, call.transactionUuid)
	case <-time.After(100 * time.Millisecond):
	}

	record, err := env.data.GetTransactionByUuid(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, transaction_data.StatusCompleted, record.Status)
	assert.Equal(t, "0.99", record.Amount)
}

func TestServer_CallbackError(t *testing.T) {
	env := setup(t, nil)
	putPendingTransaction(t, env, "abc-123")

	signed := callbackToken(t, map[string]interface{}{
		"transactionID": "abc-123",
	})

	w := postCallback(env, "/mozpay/callback/error", signed)
	require.Equal(t, http.StatusNoContent, w.Code)

	record, err := env.data.GetTransactionByUuid(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, transaction_data.StatusErrored, record.Status)
}

func TestServer_CallbackChargeback(t *testing.T) {
	env := setup(t, nil)
	putPendingTransaction(t, env, "abc-123")

	signed := callbackToken(t, map[string]interface{}{
		"transactionID": "abc-123",
		"reason":        "refund",
	})

	w := postCallback(env, "/mozpay/callback/chargeback", signed)
	require.Equal(t, http.StatusNoContent, w.Code)

	call := awaitDispatch(t, env)
	assert.Equal(t, "chargeback", call.kind)
	assert.Equal(t, "refund", call.reason)
}

func TestServer_CallbackRejectsBadTokens(t *testing.T) {
	env := setup(t, nil)
	putPendingTransaction(t, env, "abc-123")

	// Missing token
	w := postCallback(env, "/mozpay/callback/success", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, request.CodeInvalidJWT, parseBody(t, w)["error_code"])

	// Signed with the wrong secret
	now := time.Now()
	forged, err := token.Encode(jwt.MapClaims{
		"iss":     "provider.example.com",
		"aud":     "webpay.firefox.com",
		"typ":     "provider/callback/v1",
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
		"request": map[string]interface{}{"transactionID": "abc-123"},
	}, []byte("wrong-secret"))
	require.NoError(t, err)

	w = postCallback(env, "/mozpay/callback/success", forged)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, request.CodeInvalidJWT, parseBody(t, w)["error_code"])

	// Unknown transaction
	signed := callbackToken(t, map[string]interface{}{
		"transactionID": "zzz-999",
	})
	w = postCallback(env, "/mozpay/callback/success", signed)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeTransactionNotFound, parseBody(t, w)["error_code"])
}

func TestServer_PayRateLimited(t *testing.T) {
	env := setup(t, &testOverrides{payRateLimit: 1})
	env.validator.validated = validatedRequest(false)

	w := doRequest(env, httptest.NewRequest(http.MethodGet, "/mozpay?req=token", nil))
	require.Equal(t, http.StatusOK, w.Code)
	awaitConfigure(t, env)

	w = doRequest(env, httptest.NewRequest(http.MethodGet, "/mozpay?req=token", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, CodeRateLimited, parseBody(t, w)["error_code"])
}

func TestServer_ErrorLegend(t *testing.T) {
	env := setup(t, nil)

	w := doRequest(env, httptest.NewRequest(http.MethodGet, "/mozpay/error-legend", nil))
	require.Equal(t, http.StatusOK, w.Code)

	legend, ok := parseBody(t, w)["legend"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, legend[request.CodeExpiredJWT])
	assert.NotEmpty(t, legend[CodeTransConfigFailed])
}
