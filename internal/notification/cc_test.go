package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwire/internal/constants"
	"bookwire/internal/logger"
)

func envLookup(env map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadCCConfig_SplitTrimFilterNormalize(t *testing.T) {
	cfg := LoadCCConfig(envLookup(map[string]string{
		"NOTIFICATION_CC_EMAILS": "a@x.com, ,B@X.com",
	}), logger.NopLogger())

	require.True(t, cfg.Enabled)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, cfg.Emails)
}

func TestLoadCCConfig_MultiValueWinsOverSingle(t *testing.T) {
	cfg := LoadCCConfig(envLookup(map[string]string{
		"NOTIFICATION_CC_EMAILS": "multi@x.com",
		"NOTIFICATION_CC_EMAIL":  "single@x.com",
	}), logger.NopLogger())

	assert.Equal(t, []string{"multi@x.com"}, cfg.Emails)
}

func TestLoadCCConfig_SingleValueFallback(t *testing.T) {
	cfg := LoadCCConfig(envLookup(map[string]string{
		"NOTIFICATION_CC_EMAIL": "single@x.com",
	}), logger.NopLogger())

	assert.Equal(t, []string{"single@x.com"}, cfg.Emails)
}

func TestLoadCCConfig_AllInvalidFallsBackToDefault(t *testing.T) {
	cfg := LoadCCConfig(envLookup(map[string]string{
		"NOTIFICATION_CC_EMAILS": "not-an-email, also bad",
	}), logger.NopLogger())

	require.True(t, cfg.Enabled)
	assert.Equal(t, []string{constants.DefaultCCFallbackEmail}, cfg.Emails)
}

func TestLoadCCConfig_PresentButBlankMeansOff(t *testing.T) {
	// An explicitly blank variable is "CC off", which is different from an
	// unset variable or an all-invalid list.
	cfg := LoadCCConfig(envLookup(map[string]string{
		"NOTIFICATION_CC_EMAILS": "   ",
	}), logger.NopLogger())

	assert.False(t, cfg.Enabled)
	assert.Empty(t, cfg.Emails)
}

func TestLoadCCConfig_UnsetFallsBackToDefault(t *testing.T) {
	cfg := LoadCCConfig(envLookup(map[string]string{}), logger.NopLogger())

	require.True(t, cfg.Enabled)
	assert.Equal(t, []string{constants.DefaultCCFallbackEmail}, cfg.Emails)
}

func TestLoadCCConfig_ExplicitlyDisabled(t *testing.T) {
	cfg := LoadCCConfig(envLookup(map[string]string{
		"NOTIFICATION_CC_ENABLED": "false",
		"NOTIFICATION_CC_EMAILS":  "a@x.com",
	}), logger.NopLogger())

	assert.False(t, cfg.Enabled)
	assert.Empty(t, EffectiveCCEmails(cfg, "ops@x.com"))
}

func TestEffectiveCCEmails_ExcludesPrimary(t *testing.T) {
	cfg := CCConfig{
		Enabled: true,
		Emails:  []string{"a@x.com", "ops@x.com", "b@x.com"},
	}

	assert.Equal(t, []string{"a@x.com", "b@x.com"}, EffectiveCCEmails(cfg, "  OPS@X.COM "))
}
