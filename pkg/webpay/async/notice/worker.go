package async_notice

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mozpay/webpay-server/pkg/metrics"
)

func (p *Service) worker(ctx context.Context, channel <-chan interface{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case value := <-channel:
			item, ok := value.(*job)
			if !ok {
				continue
			}

			err := p.handleJob(ctx, item)
			if err != nil {
				p.log.WithError(err).WithFields(logrus.Fields{
					"method":      "worker",
					"transaction": item.transactionUuid,
				}).Warn("failure handling notice job")
			}
		}
	}
}

func (p *Service) handleJob(ctx context.Context, item *job) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "handleJob")
	defer tracer.End()

	txn, err := p.data.GetTransactionByUuid(ctx, item.transactionUuid)
	if err != nil {
		tracer.OnError(err)
		return errors.Wrap(err, "error getting transaction record")
	}

	resolved, err := p.resolver.Resolve(ctx, txn.IssuerKey)
	if err != nil {
		tracer.OnError(err)
		return errors.Wrap(err, "error resolving issuer")
	}

	result, err := p.notifier.Notify(ctx, txn, resolved, item.kind, item.extraResponse)
	if err != nil {
		tracer.OnError(err)
		return errors.Wrap(err, "error delivering notice")
	}

	p.metricsMu.Lock()
	if result.Success {
		p.successfulNotices++
	} else {
		p.failedNotices++
	}
	p.metricsMu.Unlock()

	return nil
}
