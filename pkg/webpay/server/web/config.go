package web

import (
	"time"

	"github.com/mozpay/webpay-server/pkg/config"
	"github.com/mozpay/webpay-server/pkg/config/env"
	"github.com/mozpay/webpay-server/pkg/config/memory"
	"github.com/mozpay/webpay-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "WEB_SERVER_"

	ListenAddressConfigEnvName = envConfigPrefix + "LISTEN_ADDRESS"
	defaultListenAddress       = ":8080"

	VerboseErrorsConfigEnvName = envConfigPrefix + "VERBOSE_ERRORS"
	defaultVerboseErrors       = false

	ProviderSecretConfigEnvName = envConfigPrefix + "PROVIDER_SECRET"
	defaultProviderSecret       = ""

	ProviderAudienceConfigEnvName = envConfigPrefix + "PROVIDER_AUDIENCE"
	defaultProviderAudience       = "webpay.firefox.com"

	SessionTTLConfigEnvName = envConfigPrefix + "SESSION_TTL"
	defaultSessionTTL       = 30 * time.Minute

	PayRateLimitConfigEnvName = envConfigPrefix + "PAY_RATE_LIMIT"
	defaultPayRateLimit       = 10 // per client ip, per second; 0 disables
)

type conf struct {
	listenAddress    config.String
	verboseErrors    config.Bool
	providerSecret   config.String
	providerAudience config.String
	sessionTTL       config.Duration
	payRateLimit     config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			listenAddress:    env.NewStringConfig(ListenAddressConfigEnvName, defaultListenAddress),
			verboseErrors:    env.NewBoolConfig(VerboseErrorsConfigEnvName, defaultVerboseErrors),
			providerSecret:   env.NewStringConfig(ProviderSecretConfigEnvName, defaultProviderSecret),
			providerAudience: env.NewStringConfig(ProviderAudienceConfigEnvName, defaultProviderAudience),
			sessionTTL:       env.NewDurationConfig(SessionTTLConfigEnvName, defaultSessionTTL),
			payRateLimit:     env.NewUint64Config(PayRateLimitConfigEnvName, defaultPayRateLimit),
		}
	}
}

type testOverrides struct {
	verboseErrors  bool
	providerSecret string
	payRateLimit   uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			listenAddress:    wrapper.NewStringConfig(memory.NewConfig(defaultListenAddress), defaultListenAddress),
			verboseErrors:    wrapper.NewBoolConfig(memory.NewConfig(overrides.verboseErrors), defaultVerboseErrors),
			providerSecret:   wrapper.NewStringConfig(memory.NewConfig(overrides.providerSecret), defaultProviderSecret),
			providerAudience: wrapper.NewStringConfig(memory.NewConfig(defaultProviderAudience), defaultProviderAudience),
			sessionTTL:       wrapper.NewDurationConfig(memory.NewConfig(defaultSessionTTL), defaultSessionTTL),
			payRateLimit:     wrapper.NewUint64Config(memory.NewConfig(overrides.payRateLimit), defaultPayRateLimit),
		}
	}
}
