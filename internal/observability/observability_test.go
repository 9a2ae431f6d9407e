package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_Level(t *testing.T) {
	log := NewLogger("holds-api", "warn")
	assert.False(t, log.Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Core().Enabled(zap.WarnLevel))

	fallback := NewLogger("holds-api", "shouting")
	assert.True(t, fallback.Core().Enabled(zap.InfoLevel))
}

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "holds-api", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
