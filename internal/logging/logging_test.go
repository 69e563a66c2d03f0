package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"marketpulse/internal/config"
)

func TestNew(t *testing.T) {
	t.Parallel()

	log, err := New(config.Log{Level: "debug"})
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(config.Log{})
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.DebugLevel))
	require.True(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = New(config.Log{Level: "loud"})
	require.Error(t, err)
}
