package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/modelrouter/internal/config"
)

func TestNewWritesRotatingFile(t *testing.T) {
	cfg := config.Default()
	cfg.LogFile = filepath.Join(t.TempDir(), "router.log")
	cfg.LogLevel = "debug"

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("route decided")
	_ = logger.Sync()

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"route decided"`)
}

func TestNewRejectsBadSettings(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "loud"
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.LogFormat = "xml"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
