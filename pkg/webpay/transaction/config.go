package transaction

import (
	"github.com/mozpay/webpay-server/pkg/config"
	"github.com/mozpay/webpay-server/pkg/config/env"
	"github.com/mozpay/webpay-server/pkg/config/memory"
	"github.com/mozpay/webpay-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "TRANSACTION_CONFIGURATOR_"

	IconSizeConfigEnvName = envConfigPrefix + "ICON_SIZE"
	defaultIconSize       = 64

	DefaultLocaleConfigEnvName = envConfigPrefix + "DEFAULT_LOCALE"
	defaultDefaultLocale       = "en-US"
)

type conf struct {
	iconSize      config.Uint64
	defaultLocale config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			iconSize:      env.NewUint64Config(IconSizeConfigEnvName, defaultIconSize),
			defaultLocale: env.NewStringConfig(DefaultLocaleConfigEnvName, defaultDefaultLocale),
		}
	}
}

type testOverrides struct {
	iconSize      uint64
	defaultLocale string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	if overrides.iconSize == 0 {
		overrides.iconSize = defaultIconSize
	}
	if len(overrides.defaultLocale) == 0 {
		overrides.defaultLocale = defaultDefaultLocale
	}
	return func() *conf {
		return &conf{
			iconSize:      wrapper.NewUint64Config(memory.NewConfig(overrides.iconSize), defaultIconSize),
			defaultLocale: wrapper.NewStringConfig(memory.NewConfig(overrides.defaultLocale), defaultDefaultLocale),
		}
	}
}
