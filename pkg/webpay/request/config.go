package request

import (
	"github.com/mozpay/webpay-server/pkg/config"
	"github.com/mozpay/webpay-server/pkg/config/env"
	"github.com/mozpay/webpay-server/pkg/config/memory"
	"github.com/mozpay/webpay-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "PAY_REQUEST_"

	AudienceConfigEnvName = envConfigPrefix + "AUDIENCE"
	defaultAudience       = "webpay.firefox.com"

	AllowedSchemesConfigEnvName = envConfigPrefix + "ALLOWED_SCHEMES"

	MaxNameLengthConfigEnvName = envConfigPrefix + "MAX_NAME_LENGTH"
	defaultMaxNameLength       = 50

	MaxDescriptionLengthConfigEnvName = envConfigPrefix + "MAX_DESCRIPTION_LENGTH"
	defaultMaxDescriptionLength       = 255

	SimulateEnabledConfigEnvName = envConfigPrefix + "SIMULATE_ENABLED"
	defaultSimulateEnabled       = true

	PayEnabledConfigEnvName = envConfigPrefix + "PAY_ENABLED"
	defaultPayEnabled       = true
)

var defaultAllowedSchemes = []string{"http", "https"}

type conf struct {
	audience             config.String
	allowedSchemes       config.Strings
	maxNameLength        config.Int64
	maxDescriptionLength config.Int64
	simulateEnabled      config.Bool
	payEnabled           config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			audience:             env.NewStringConfig(AudienceConfigEnvName, defaultAudience),
			allowedSchemes:       env.NewStringsConfig(AllowedSchemesConfigEnvName, defaultAllowedSchemes),
			maxNameLength:        env.NewInt64Config(MaxNameLengthConfigEnvName, defaultMaxNameLength),
			maxDescriptionLength: env.NewInt64Config(MaxDescriptionLengthConfigEnvName, defaultMaxDescriptionLength),
			simulateEnabled:      env.NewBoolConfig(SimulateEnabledConfigEnvName, defaultSimulateEnabled),
			payEnabled:           env.NewBoolConfig(PayEnabledConfigEnvName, defaultPayEnabled),
		}
	}
}

type testOverrides struct {
	allowedSchemes  []string
	simulateEnabled bool
	payEnabled      bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	if len(overrides.allowedSchemes) == 0 {
		overrides.allowedSchemes = defaultAllowedSchemes
	}
	return func() *conf {
		return &conf{
			audience:             wrapper.NewStringConfig(memory.NewConfig(defaultAudience), defaultAudience),
			allowedSchemes:       wrapper.NewStringsConfig(memory.NewConfig(overrides.allowedSchemes), defaultAllowedSchemes),
			maxNameLength:        wrapper.NewInt64Config(memory.NewConfig(int64(defaultMaxNameLength)), defaultMaxNameLength),
			maxDescriptionLength: wrapper.NewInt64Config(memory.NewConfig(int64(defaultMaxDescriptionLength)), defaultMaxDescriptionLength),
			simulateEnabled:      wrapper.NewBoolConfig(memory.NewConfig(overrides.simulateEnabled), defaultSimulateEnabled),
			payEnabled:           wrapper.NewBoolConfig(memory.NewConfig(overrides.payEnabled), defaultPayEnabled),
		}
	}
}
