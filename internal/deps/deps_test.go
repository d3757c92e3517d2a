package deps

import (
	"path/filepath"
	"testing"

	"github.com/and161185/dispatch/internal/config"
	"github.com/and161185/dispatch/internal/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewDependencies(t *testing.T) {
	cfg := &config.Config{
		SecretKey:    "secret",
		TraceLogPath: filepath.Join(t.TempDir(), "trace.log"),
		Logger:       zaptest.NewLogger(t).Sugar(),
	}

	d, err := NewDependencies(cfg)
	require.NoError(t, err)
	require.NotNil(t, d.Events)
	require.Same(t, cfg.Logger, d.Logger)

	token, err := d.TokenManager.GenerateToken(model.Staff{ID: 3, Login: "logist", Role: "logist", IsActive: true})
	require.NoError(t, err)
	claims, err := d.TokenManager.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(3), claims.StaffID)
}

func TestNewDependenciesWithoutTrace(t *testing.T) {
	cfg := &config.Config{SecretKey: "secret", Logger: zaptest.NewLogger(t).Sugar()}

	d, err := NewDependencies(cfg)
	require.NoError(t, err)
	d.Events.Tracef("dropped %d", 1)
}
