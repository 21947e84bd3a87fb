package async_notice

import (
	"github.com/mozpay/webpay-server/pkg/config"
	"github.com/mozpay/webpay-server/pkg/config/env"
	"github.com/mozpay/webpay-server/pkg/config/memory"
	"github.com/mozpay/webpay-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "NOTICE_SERVICE_"

	WorkerCountConfigEnvName = envConfigPrefix + "WORKER_COUNT"
	defaultWorkerCount       = 8

	QueueSizeConfigEnvName = envConfigPrefix + "QUEUE_SIZE"
	defaultQueueSize       = 1024
)

type conf struct {
	workerCount config.Uint64
	queueSize   config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			workerCount: env.NewUint64Config(WorkerCountConfigEnvName, defaultWorkerCount),
			queueSize:   env.NewUint64Config(QueueSizeConfigEnvName, defaultQueueSize),
		}
	}
}

type testOverrides struct {
	workerCount uint64
	queueSize   uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	if overrides.workerCount == 0 {
		overrides.workerCount = defaultWorkerCount
	}
	if overrides.queueSize == 0 {
		overrides.queueSize = defaultQueueSize
	}
	return func() *conf {
		return &conf{
			workerCount: wrapper.NewUint64Config(memory.NewConfig(overrides.workerCount), defaultWorkerCount),
			queueSize:   wrapper.NewUint64Config(memory.NewConfig(overrides.queueSize), defaultQueueSize),
		}
	}
}
