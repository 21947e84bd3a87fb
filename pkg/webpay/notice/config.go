package notice

import (
	"time"

	"github.com/mozpay/webpay-server/pkg/config"
	"github.com/mozpay/webpay-server/pkg/config/env"
	"github.com/mozpay/webpay-server/pkg/config/memory"
	"github.com/mozpay/webpay-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "NOTIFIER_"

	NotifyIssuerConfigEnvName = envConfigPrefix + "ISSUER"
	defaultNotifyIssuer       = "marketplace.firefox.com"

	DeliveryTimeoutConfigEnvName = envConfigPrefix + "DELIVERY_TIMEOUT"
	defaultDeliveryTimeout       = 5 * time.Second

	MaxAttemptsConfigEnvName = envConfigPrefix + "MAX_ATTEMPTS"
	defaultMaxAttempts       = 5

	RetryDelayConfigEnvName = envConfigPrefix + "RETRY_DELAY"
	defaultRetryDelay       = 15 * time.Second
)

type conf struct {
	notifyIssuer    config.String
	deliveryTimeout config.Duration
	maxAttempts     config.Uint64
	retryDelay      config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			notifyIssuer:    env.NewStringConfig(NotifyIssuerConfigEnvName, defaultNotifyIssuer),
			deliveryTimeout: env.NewDurationConfig(DeliveryTimeoutConfigEnvName, defaultDeliveryTimeout),
			maxAttempts:     env.NewUint64Config(MaxAttemptsConfigEnvName, defaultMaxAttempts),
			retryDelay:      env.NewDurationConfig(RetryDelayConfigEnvName, defaultRetryDelay),
		}
	}
}

type testOverrides struct {
	deliveryTimeout time.Duration
	retryDelay      time.Duration
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	if overrides.deliveryTimeout == 0 {
		overrides.deliveryTimeout = defaultDeliveryTimeout
	}
	return func() *conf {
		return &conf{
			notifyIssuer:    wrapper.NewStringConfig(memory.NewConfig(defaultNotifyIssuer), defaultNotifyIssuer),
			deliveryTimeout: wrapper.NewDurationConfig(memory.NewConfig(overrides.deliveryTimeout), defaultDeliveryTimeout),
			maxAttempts:     wrapper.NewUint64Config(memory.NewConfig(uint64(defaultMaxAttempts)), defaultMaxAttempts),
			retryDelay:      wrapper.NewDurationConfig(memory.NewConfig(overrides.retryDelay), defaultRetryDelay),
		}
	}
}
