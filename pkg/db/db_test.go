package db

import (
	"path/filepath"
	"testing"

	"github.com/pulselens/pulselens/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDialect_UnsupportedType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

func TestNew_InstallsPoolMetrics(t *testing.T) {
	cfg := config.Config{
		DBType: "sqlite",
		DBName: filepath.Join(t.TempDir(), "pulselens"),
	}

	conn, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	_, ok := conn.Config.Plugins["gorm:prometheus"]
	assert.True(t, ok)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
