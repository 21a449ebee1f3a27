package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iliyamo/book-panel/internal/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	log, closer := New(config.LogConfig{Level: "info", File: file, MaxSize: 1, MaxBackups: 1, MaxAge: 1})

	log.Info("order placed", zap.Int64("order_id", 7))
	log.Debug("hidden")
	_ = log.Sync()
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"order placed"`)
	assert.Contains(t, string(data), `"order_id":7`)
	assert.NotContains(t, string(data), "hidden")
}

// the file should be rotated when it reaches the maximum size
func TestLogRotation(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "foobar.log")
	rotation := &lumberjack.Logger{Filename: filename, MaxSize: 1, MaxBackups: 3, MaxAge: 1}
	defer rotation.Close()
	var console bytes.Buffer
	log := newZap(zapcore.AddSync(&console), zapcore.AddSync(rotation), zapcore.InfoLevel)

	oneMegabyte := 1024 * 1024
	_, err := rotation.Write(make([]byte, oneMegabyte))
	require.NoError(t, err)
	log.Info("this line should be in a new file")

	info, err := os.Stat(filename)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(oneMegabyte))
	assert.Contains(t, console.String(), "this line should be in a new file")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}
