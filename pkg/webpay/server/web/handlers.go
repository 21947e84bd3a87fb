package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mozpay/webpay-server/pkg/metrics"
	"github.com/mozpay/webpay-server/pkg/pointer"
	"github.com/mozpay/webpay-server/pkg/webpay/localization"
	"github.com/mozpay/webpay-server/pkg/webpay/request"
	"github.com/mozpay/webpay-server/pkg/webpay/token"
	"github.com/mozpay/webpay-server/pkg/webpay/transaction"

	transaction_data "github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
)

const (
	metricsStructName = "web.server"

	// Error codes owned by the web surface, on top of the validator's set
	CodeTransIdNotSet       = "TRANS_ID_NOT_SET"
	CodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	CodeTransConfigFailed   = "TRANS_CONFIG_FAILED"
	CodeRateLimited         = "RATE_LIMITED"

	configureTimeout = 2 * time.Minute
)

// rateLimitPay throttles payment requests per client ip. Limiter failures
// never block a buyer.
func (s *Server) rateLimitPay(c *gin.Context) {
	allowed, err := s.payLimiter.Allow(c.ClientIP())
	if err != nil || allowed {
		c.Next()
		return
	}

	c.Abort()
	s.respondError(c, http.StatusTooManyRequests, CodeRateLimited, errors.New("too many payment requests"))
}

// handlePay ingests a signed payment request, mirrors it as a local
// transaction and kicks off billing configuration in the background.
// Simulated requests never reach billing; their notice is dispatched
// immediately.
func (s *Server) handlePay(c *gin.Context) {
	ctx := c.Request.Context()
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "handlePay")
	defer tracer.End()

	raw := c.PostForm("req")
	if len(raw) == 0 {
		raw = c.Query("req")
	}
	if len(raw) == 0 {
		s.respondError(c, http.StatusBadRequest, request.CodeInvalidJWT, errors.New("req parameter is required"))
		return
	}

	validated, failure := s.validator.Validate(ctx, raw)
	if failure != nil {
		tracer.OnError(failure)
		s.respondError(c, http.StatusBadRequest, failure.Code, failure.Err)
		return
	}

	log := s.log.WithFields(logrus.Fields{
		"method": "handlePay",
		"issuer": validated.Issuer.IssuerKey,
	})

	jsonRequest, err := json.Marshal(validated.Payload.Request)
	if err != nil {
		tracer.OnError(err)
		s.respondError(c, http.StatusInternalServerError, localization.CodeUnexpectedError, err)
		return
	}

	record := &transaction_data.Record{
		Uuid:      uuid.New().String(),
		Type:      transaction_data.TypePayment,
		Status:    transaction_data.StatusPending,
		IssuerKey: validated.Issuer.IssuerKey,

		ProductName:        validated.Request.Name,
		ProductDescription: validated.Request.Description,

		JSONRequest: string(jsonRequest),
		NotifyURL:   validated.Request.PostbackURL,
	}
	if validated.Simulated {
		record.Status = transaction_data.StatusCompleted
	}

	if err := s.data.PutTransaction(ctx, record); err != nil {
		tracer.OnError(err)
		s.respondError(c, http.StatusInternalServerError, localization.CodeUnexpectedError, err)
		return
	}

	notes := &transaction.Notes{
		TransactionUuid: record.Uuid,
		IssuerKey:       validated.Issuer.IssuerKey,
		PayRequest:      validated.Request,
		Locale:          preferredLanguage(c),

		NetworkMCC: c.Query("mcc"),
		NetworkMNC: c.Query("mnc"),
	}
	s.saveSession(c, notes)

	if validated.Simulated {
		if err := s.notices.DispatchSimulated(ctx, record.Uuid, validated.Request.Simulate); err != nil {
			log.WithError(err).Warn("failure dispatching simulated notice")
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"simulation": validated.Request.Simulate.Result,
		})
		return
	}

	go s.configureInBackground(notes)

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// handlePayURL polls the transaction backing the session for its pay url.
func (s *Server) handlePayURL(c *gin.Context) {
	ctx := c.Request.Context()

	notes, ok := s.loadSession(c)
	if !ok || len(notes.TransactionUuid) == 0 {
		s.respondError(c, http.StatusBadRequest, CodeTransIdNotSet, errors.New("session has no transaction"))
		return
	}

	record, err := s.data.GetTransactionByUuid(ctx, notes.TransactionUuid)
	if errors.Is(err, transaction_data.ErrNotFound) {
		s.respondError(c, http.StatusBadRequest, CodeTransactionNotFound, err)
		return
	} else if err != nil {
		s.respondError(c, http.StatusInternalServerError, localization.CodeUnexpectedError, err)
		return
	}

	if record.Status == transaction_data.StatusErrored {
		s.respondError(c, http.StatusBadRequest, CodeTransConfigFailed, errors.New("transaction configuration failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": record.Status.String(),
		"payURL": *pointer.StringOrDefault(record.PayURL, ""),
	})
}

// handleErrorLegend returns the localized error code legend.
func (s *Server) handleErrorLegend(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"legend": s.localizer.Legend(preferredLanguage(c)),
	})
}

func (s *Server) handleCallbackSuccess(c *gin.Context) {
	ctx := c.Request.Context()
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "handleCallbackSuccess")
	defer tracer.End()

	payload, record, ok := s.verifyCallback(c)
	if !ok {
		return
	}

	// Providers retry callbacks. A replay for a settled transaction is
	// acknowledged without updating or notifying again.
	if record.Status == transaction_data.StatusCompleted {
		c.Status(http.StatusNoContent)
		return
	}

	record.Status = transaction_data.StatusCompleted
	if amount, found := payload.Request["amount"].(string); found {
		record.Amount = amount
	}
	if currency, found := payload.Request["currency"].(string); found {
		record.Currency = currency
	}

	if err := s.data.UpdateTransaction(ctx, record); err != nil {
		tracer.OnError(err)
		s.respondError(c, http.StatusBadRequest, localization.CodeUnexpectedError, err)
		return
	}

	if err := s.notices.DispatchPayment(ctx, record.Uuid); err != nil {
		s.log.WithError(err).Warn("failure dispatching payment notice")
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) handleCallbackError(c *gin.Context) {
	ctx := c.Request.Context()
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "handleCallbackError")
	defer tracer.End()

	_, record, ok := s.verifyCallback(c)
	if !ok {
		return
	}

	record.Status = transaction_data.StatusErrored
	if err := s.data.UpdateTransaction(ctx, record); err != nil {
		tracer.OnError(err)
		s.respondError(c, http.StatusBadRequest, localization.CodeUnexpectedError, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) handleCallbackChargeback(c *gin.Context) {
	ctx := c.Request.Context()
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "handleCallbackChargeback")
	defer tracer.End()

	payload, record, ok := s.verifyCallback(c)
	if !ok {
		return
	}

	reason, _ := payload.Request["reason"].(string)
	if err := s.notices.DispatchChargeback(ctx, record.Uuid, reason); err != nil {
		tracer.OnError(err)
		s.respondError(c, http.StatusInternalServerError, localization.CodeUnexpectedError, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// verifyCallback authenticates a provider callback token and loads the
// transaction it refers to. Responds with an error itself when verification
// fails. An unconfigured provider secret fails closed.
func (s *Server) verifyCallback(c *gin.Context) (*token.Payload, *transaction_data.Record, bool) {
	ctx := c.Request.Context()

	secret := s.conf.providerSecret.Get(ctx)
	if len(secret) == 0 {
		s.respondError(c, http.StatusBadRequest, request.CodeInvalidJWT, errors.New("provider callbacks are not configured"))
		return nil, nil, false
	}

	raw := c.PostForm("notice")
	if len(raw) == 0 {
		s.respondError(c, http.StatusBadRequest, request.CodeInvalidJWT, errors.New("notice parameter is required"))
		return nil, nil, false
	}

	payload, err := token.Decode(
		raw,
		s.conf.providerAudience.Get(ctx),
		[]byte(secret),
		[]string{"request.transactionID"},
	)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, request.CodeInvalidJWT, err)
		return nil, nil, false
	}

	transactionUuid, _ := payload.Request["transactionID"].(string)
	record, err := s.data.GetTransactionByUuid(ctx, transactionUuid)
	if errors.Is(err, transaction_data.ErrNotFound) {
		s.respondError(c, http.StatusBadRequest, CodeTransactionNotFound, err)
		return nil, nil, false
	} else if err != nil {
		s.respondError(c, http.StatusInternalServerError, localization.CodeUnexpectedError, err)
		return nil, nil, false
	}

	return payload, record, true
}

// configureInBackground runs billing configuration off the request path. A
// failure marks the transaction errored so pay-url polling surfaces it.
func (s *Server) configureInBackground(notes *transaction.Notes) {
	ctx, cancel := context.WithTimeout(context.Background(), configureTimeout)
	defer cancel()

	log := s.log.WithFields(logrus.Fields{
		"method":      "configureInBackground",
		"transaction": notes.TransactionUuid,
	})

	_, err := s.configurator.Configure(ctx, notes)
	if err == nil {
		return
	}
	log.WithError(err).Warn("failure configuring transaction")

	record, getErr := s.data.GetTransactionByUuid(ctx, notes.TransactionUuid)
	if getErr != nil {
		log.WithError(getErr).Warn("failure getting transaction record to mark errored")
		return
	}

	record.Status = transaction_data.StatusErrored
	if updateErr := s.data.UpdateTransaction(ctx, record); updateErr != nil {
		log.WithError(updateErr).Warn("failure marking transaction errored")
	}
}

func (s *Server) respondError(c *gin.Context, status int, code string, err error) {
	message := s.localizer.ForCode(preferredLanguage(c), code)
	if err != nil && s.conf.verboseErrors.Get(c.Request.Context()) {
		message = err.Error()
	}

	c.JSON(status, gin.H{
		"error_code": code,
		"error":      message,
	})
}

func (s *Server) loadSession(c *gin.Context) (*transaction.Notes, bool) {
	sid, err := c.Cookie(sessionCookieName)
	if err != nil {
		return nil, false
	}
	return s.sessions.get(sid)
}

func (s *Server) saveSession(c *gin.Context, notes *transaction.Notes) {
	sid, err := c.Cookie(sessionCookieName)
	if err != nil || len(sid) == 0 {
		sid = newSessionId()
		c.SetCookie(sessionCookieName, sid, 0, "/", "", false, true)
	}
	s.sessions.put(sid, notes)
}

// preferredLanguage picks the first tag from the Accept-Language header.
func preferredLanguage(c *gin.Context) string {
	header := c.GetHeader("Accept-Language")
	if len(header) == 0 {
		return ""
	}

	first := header
	if idx := strings.IndexAny(header, ",;"); idx >= 0 {
		first = header[:idx]
	}
	return strings.TrimSpace(first)
}
