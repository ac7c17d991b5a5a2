package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pushkit/pkg/config"
)

type testConfig struct {
	Name    string `env:"PUSHKIT_TEST_NAME" envDefault:"pushkit"`
	Retries int    `env:"PUSHKIT_TEST_RETRIES" envDefault:"3"`
}

type requiredConfig struct {
	Token string `env:"PUSHKIT_TEST_REQUIRED_TOKEN,required"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "pushkit", cfg.Name)
	assert.Equal(t, 3, cfg.Retries)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PUSHKIT_TEST_NAME", "custom")
	t.Setenv("PUSHKIT_TEST_RETRIES", "7")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "custom", cfg.Name)
	assert.Equal(t, 7, cfg.Retries)
}

func TestLoad_RequiredMissing(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	err := config.Load[testConfig](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}

func TestLoadEnv_NonExistentFile(t *testing.T) {
	err := config.LoadEnv("testdata/does_not_exist.env")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}
