package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artemisa_pos/internal/config"
)

func TestNew_Stdout(t *testing.T) {
	for _, mode := range []string{"production", "development"} {
		l, err := New(config.LoggerConfig{Mode: mode})
		require.NoError(t, err, mode)
		assert.NotNil(t, l)
	}
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.log")
	l, err := New(config.LoggerConfig{Mode: "production", FileEnable: true, File: path})
	require.NoError(t, err)

	l.Info("sale saved", zap.Int("consecutive", 7))
	l.Debug("hidden in production")
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "sale saved", entry["msg"])
	assert.EqualValues(t, 7, entry["consecutive"])
}
