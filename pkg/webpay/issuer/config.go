package issuer

import (
	"github.com/mozpay/webpay-server/pkg/config"
	"github.com/mozpay/webpay-server/pkg/config/env"
	"github.com/mozpay/webpay-server/pkg/config/memory"
	"github.com/mozpay/webpay-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "ISSUER_RESOLVER_"

	MarketplaceIssuerKeyConfigEnvName = envConfigPrefix + "MARKETPLACE_ISSUER_KEY"
	defaultMarketplaceIssuerKey       = "marketplace.firefox.com"

	MarketplaceSecretConfigEnvName = envConfigPrefix + "MARKETPLACE_SECRET"
	defaultMarketplaceSecret       = ""

	RequireHTTPSConfigEnvName = envConfigPrefix + "REQUIRE_HTTPS"
	defaultRequireHTTPS       = true
)

type conf struct {
	marketplaceIssuerKey config.String
	marketplaceSecret    config.String
	requireHTTPS         config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			marketplaceIssuerKey: env.NewStringConfig(MarketplaceIssuerKeyConfigEnvName, defaultMarketplaceIssuerKey),
			marketplaceSecret:    env.NewStringConfig(MarketplaceSecretConfigEnvName, defaultMarketplaceSecret),
			requireHTTPS:         env.NewBoolConfig(RequireHTTPSConfigEnvName, defaultRequireHTTPS),
		}
	}
}

type testOverrides struct {
	marketplaceIssuerKey string
	marketplaceSecret    string
	requireHTTPS         bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	if len(overrides.marketplaceIssuerKey) == 0 {
		overrides.marketplaceIssuerKey = defaultMarketplaceIssuerKey
	}
	return func() *conf {
		return &conf{
			marketplaceIssuerKey: wrapper.NewStringConfig(memory.NewConfig(overrides.marketplaceIssuerKey), defaultMarketplaceIssuerKey),
			marketplaceSecret:    wrapper.NewStringConfig(memory.NewConfig(overrides.marketplaceSecret), defaultMarketplaceSecret),
			requireHTTPS:         wrapper.NewBoolConfig(memory.NewConfig(overrides.requireHTTPS), defaultRequireHTTPS),
		}
	}
}
