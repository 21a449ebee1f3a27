// Package logger builds the application's zap logger: human readable lines on
// stdout and JSON lines on a size-rotated file.
package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iliyamo/book-panel/internal/config"
)

// New returns a logger writing to stdout and to the rotating file named in
// cfg.  The returned closer flushes and closes the file.
func New(cfg config.LogConfig) (*zap.Logger, io.Closer) {
	rotation := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}
	return newZap(zapcore.AddSync(os.Stdout), zapcore.AddSync(rotation), ParseLevel(cfg.Level)), rotation
}

// ParseLevel maps a level name to a zap level; unknown names mean info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newZap(console, file zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	encodeConfig := zap.NewProductionEncoderConfig()
	encodeConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encodeConfig), console, level)
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encodeConfig), file, level)

	return zap.New(zapcore.NewTee(consoleCore, fileCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
