package async_notice

import (
	"context"
	"time"

	"github.com/mozpay/webpay-server/pkg/metrics"
)

const (
	metricsStructName = "async_notice.service"

	noticeQueueEventName  = "NoticeQueuePollingCheck"
	noticeCallsEventName  = "NoticeCallsPollingCheck"
	noticeLedgerEventName = "NoticeLedgerPollingCheck"
)

func (p *Service) metricsGaugeWorker(ctx context.Context, interval time.Duration) error {
	delay := interval

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			start := time.Now()

			p.recordQueueEvent(ctx)
			p.recordCallsEvent(ctx)
			p.recordLedgerEvent(ctx)

			delay = interval - time.Since(start)
		}
	}
}

func (p *Service) recordQueueEvent(ctx context.Context) {
	var queued int
	for _, channel := range p.queue.GetChannels() {
		queued += len(channel)
	}

	metrics.RecordEvent(ctx, noticeQueueEventName, map[string]interface{}{
		"queued": queued,
	})
}

func (p *Service) recordCallsEvent(ctx context.Context) {
	p.metricsMu.Lock()
	successfulCalls := p.successfulNotices
	failedCalls := p.failedNotices
	p.successfulNotices = 0
	p.failedNotices = 0
	p.metricsMu.Unlock()

	metrics.RecordEvent(ctx, noticeCallsEventName, map[string]interface{}{
		"successes": successfulCalls,
		"failures":  failedCalls,
	})
}

func (p *Service) recordLedgerEvent(ctx context.Context) {
	delivered, err := p.data.CountNoticesBySuccess(ctx, true)
	if err != nil {
		return
	}
	failed, err := p.data.CountNoticesBySuccess(ctx, false)
	if err != nil {
		return
	}

	metrics.RecordEvent(ctx, noticeLedgerEventName, map[string]interface{}{
		"delivered": delivered,
		"failed":    failed,
	})
}
