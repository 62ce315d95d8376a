package telemetry_test

import (
	"testing"

	"github.com/leorit/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "leorit-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresTarget(t *testing.T) {
	tests := []struct {
		name string
		cfg  telemetry.ProfilerConfig
	}{
		{"missing address", telemetry.ProfilerConfig{Enabled: true, ApplicationName: "leorit-test"}},
		{"missing name", telemetry.ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := telemetry.NewProfiler(tt.cfg, nil)
			require.Error(t, err)
			assert.Nil(t, p)
		})
	}
}
