package web

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	rate_util "github.com/mozpay/webpay-server/pkg/rate"
	"github.com/mozpay/webpay-server/pkg/webpay/data"
	"github.com/mozpay/webpay-server/pkg/webpay/localization"
	"github.com/mozpay/webpay-server/pkg/webpay/request"
	"github.com/mozpay/webpay-server/pkg/webpay/transaction"
)

// RequestValidator checks an inbound signed payment request.
type RequestValidator interface {
	Validate(ctx context.Context, rawToken string) (*request.Validated, *request.Failure)
}

// TransactionConfigurator starts the billing flow for a session's transaction.
type TransactionConfigurator interface {
	Configure(ctx context.Context, notes *transaction.Notes) (bool, error)
}

// NoticeDispatcher queues outcome notices for asynchronous delivery.
type NoticeDispatcher interface {
	DispatchPayment(ctx context.Context, transactionUuid string) error
	DispatchChargeback(ctx context.Context, transactionUuid, reason string) error
	DispatchSimulated(ctx context.Context, transactionUuid string, sim *request.Simulation) error
}

// Server is the buyer-facing payment frontend.
type Server struct {
	log          *logrus.Entry
	conf         *conf
	data         data.Provider
	validator    RequestValidator
	configurator TransactionConfigurator
	notices      NoticeDispatcher
	localizer    *localization.Localizer
	sessions     *sessionStore
	payLimiter   rate_util.Limiter
	router       *gin.Engine
}

func NewServer(
	dataProvider data.Provider,
	validator RequestValidator,
	configurator TransactionConfigurator,
	notices NoticeDispatcher,
	localizer *localization.Localizer,
	configProvider ConfigProvider,
) *Server {
	conf := configProvider()

	var payLimiter rate_util.Limiter = &rate_util.NoLimiter{}
	if limit := conf.payRateLimit.Get(context.Background()); limit > 0 {
		payLimiter = rate_util.NewLocalRateLimiter(xrate.Limit(limit))
	}

	s := &Server{
		log:          logrus.StandardLogger().WithField("service", "web_server"),
		conf:         conf,
		data:         dataProvider,
		validator:    validator,
		configurator: configurator,
		notices:      notices,
		localizer:    localizer,
		sessions:     newSessionStore(conf.sessionTTL.Get(context.Background())),
		payLimiter:   payLimiter,
		router:       gin.New(),
	}
	s.router.Use(gin.Recovery())

	s.router.GET("/mozpay", s.rateLimitPay, s.handlePay)
	s.router.POST("/mozpay", s.rateLimitPay, s.handlePay)
	s.router.GET("/mozpay/pay-url", s.handlePayURL)
	s.router.GET("/mozpay/error-legend", s.handleErrorLegend)

	callback := s.router.Group("/mozpay/callback")
	{
		callback.POST("/success", s.handleCallbackSuccess)
		callback.POST("/error", s.handleCallbackError)
		callback.POST("/chargeback", s.handleCallbackChargeback)
	}

	return s
}

// Run starts the server on the configured listen address.
func (s *Server) Run() error {
	return s.router.Run(s.conf.listenAddress.Get(context.Background()))
}
