package async_notice

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	sync_util "github.com/mozpay/webpay-server/pkg/sync"
	"github.com/mozpay/webpay-server/pkg/webpay/async"
	"github.com/mozpay/webpay-server/pkg/webpay/data"
	notice_data "github.com/mozpay/webpay-server/pkg/webpay/data/notice"
	"github.com/mozpay/webpay-server/pkg/webpay/data/transaction"
	"github.com/mozpay/webpay-server/pkg/webpay/issuer"
	"github.com/mozpay/webpay-server/pkg/webpay/notice"
	"github.com/mozpay/webpay-server/pkg/webpay/request"
)

var (
	// ErrQueueFull indicates the dispatch queue has no room. The caller's
	// request flow proceeds; the notice is simply dropped and visible as a
	// gap in the ledger.
	ErrQueueFull = errors.New("notice queue is full")

	// ErrUnknownSimResult indicates a simulation result with no notice mapping
	ErrUnknownSimResult = errors.New("unknown simulation result")
)

type job struct {
	transactionUuid string
	kind            notice_data.Kind
	extraResponse   map[string]interface{}
}

// NoticeSender delivers a signed outcome notice and records it.
type NoticeSender interface {
	Notify(
		ctx context.Context,
		txn *transaction.Record,
		resolved *issuer.Resolved,
		kind notice_data.Kind,
		extraResponse map[string]interface{},
	) (*notice.Result, error)
}

// IssuerResolver resolves an issuer key to its secret and callback URLs.
type IssuerResolver interface {
	Resolve(ctx context.Context, issuerKey string) (*issuer.Resolved, error)
}

// Service consumes queued notice jobs so web handlers can dispatch
// fire-and-forget without waiting out the delivery retry schedule. The queue
// is striped by transaction uuid, so notices for the same transaction never
// interleave.
type Service struct {
	log      *logrus.Entry
	conf     *conf
	data     data.Provider
	notifier NoticeSender
	resolver IssuerResolver
	queue    *sync_util.StripedChannel

	metricsMu         sync.Mutex
	successfulNotices int
	failedNotices     int
}

func New(dataProvider data.Provider, notifier NoticeSender, resolver IssuerResolver, configProvider ConfigProvider) *Service {
	conf := configProvider()
	return &Service{
		log:      logrus.StandardLogger().WithField("service", "notice"),
		conf:     conf,
		data:     dataProvider,
		notifier: notifier,
		resolver: resolver,
		queue: sync_util.NewStripedChannel(
			uint(conf.workerCount.Get(context.Background())),
			uint(conf.queueSize.Get(context.Background())),
		),
	}
}

// Enforce the async service contract at compile time
var _ async.Service = (*Service)(nil)

func (p *Service) Start(ctx context.Context, interval time.Duration) error {
	for id, channel := range p.queue.GetChannels() {
		go func(id int, channel <-chan interface{}) {
			err := p.worker(ctx, channel)
			if err != nil && err != context.Canceled {
				p.log.WithError(err).WithField("worker", id).Warn("notice worker loop terminated unexpectedly")
			}
		}(id, channel)
	}

	go func() {
		err := p.metricsGaugeWorker(ctx, interval)
		if err != nil && err != context.Canceled {
			p.log.WithError(err).Warn("notice metrics gauge loop terminated unexpectedly")
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// DispatchPayment queues a payment notice for a settled transaction.
func (p *Service) DispatchPayment(_ context.Context, transactionUuid string) error {
	return p.enqueue(&job{
		transactionUuid: transactionUuid,
		kind:            notice_data.KindPayment,
	})
}

// DispatchChargeback queues a chargeback notice carrying the provider's reason.
func (p *Service) DispatchChargeback(_ context.Context, transactionUuid, reason string) error {
	return p.enqueue(&job{
		transactionUuid: transactionUuid,
		kind:            notice_data.KindChargeback,
		extraResponse: map[string]interface{}{
			"reason": reason,
		},
	})
}

// DispatchSimulated queues the notice an issuer asked to have simulated. The
// notice is real and signed; only the payment behind it is fake.
func (p *Service) DispatchSimulated(_ context.Context, transactionUuid string, sim *request.Simulation) error {
	switch sim.Result {
	case request.SimResultPostback:
		return p.enqueue(&job{
			transactionUuid: transactionUuid,
			kind:            notice_data.KindPayment,
			extraResponse: map[string]interface{}{
				"simulated": true,
			},
		})
	case request.SimResultChargeback:
		return p.enqueue(&job{
			transactionUuid: transactionUuid,
			kind:            notice_data.KindChargeback,
			extraResponse: map[string]interface{}{
				"simulated": true,
				"reason":    sim.Reason,
			},
		})
	}
	return ErrUnknownSimResult
}

// DispatchFree queues the payment notice for a zero-price purchase.
func (p *Service) DispatchFree(_ context.Context, transactionUuid string) error {
	return p.enqueue(&job{
		transactionUuid: transactionUuid,
		kind:            notice_data.KindPayment,
	})
}

func (p *Service) enqueue(item *job) error {
	if !p.queue.Send([]byte(item.transactionUuid), item) {
		p.log.WithField("transaction", item.transactionUuid).Warn("dropping notice, queue is full")
		return ErrQueueFull
	}
	return nil
}
