package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	log, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, log)

	// Defaults come from the environment; info is the fallback level.
	impl, ok := log.(*loggerImpl)
	require.True(t, ok)
	assert.Equal(t, zerolog.InfoLevel, impl.logger.GetLevel())
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "shout"})
	require.Error(t, err)
}

func TestNewDebugOverridesLevel(t *testing.T) {
	log, err := New(&Config{Level: "warn", Debug: true})
	require.NoError(t, err)

	impl, ok := log.(*loggerImpl)
	require.True(t, ok)
	assert.Equal(t, zerolog.DebugLevel, impl.logger.GetLevel())
}

func TestSetDebug(t *testing.T) {
	log, err := New(&Config{Level: "info"})
	require.NoError(t, err)

	log.SetDebug(true)

	impl, ok := log.(*loggerImpl)
	require.True(t, ok)
	assert.Equal(t, zerolog.DebugLevel, impl.logger.GetLevel())

	log.SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, impl.logger.GetLevel())
}

func TestNewTestLoggerDiscards(t *testing.T) {
	log := NewTestLogger()
	require.NotNil(t, log)

	// Must not panic even for the fatal/panic event constructors.
	log.Info().Str("k", "v").Msg("dropped")
	log.Error().Msg("dropped")
}
