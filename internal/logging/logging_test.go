package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warn"))
	assert.Equal(t, logrus.InfoLevel, parseLevel("verbose"))
}

func TestNewLoggerWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "assistant.log")
	logger, err := NewLogger("info", file)
	require.NoError(t, err)

	Component(logrus.NewEntry(logger), "inspect").WithField("schema", "MyVideos121").Info("classified")
	logger.Debug("hidden")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=inspect")
	assert.Contains(t, string(data), "schema=MyVideos121")
	assert.NotContains(t, string(data), "hidden")
}

func TestComponentNil(t *testing.T) {
	entry := Component(nil, "prober")
	assert.Equal(t, "prober", entry.Data["component"])
	entry.Info("dropped")
}
