// Package log is the process-wide structured logger.
package log

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar atomic.Pointer[zap.SugaredLogger]

func init() {
	sugar.Store(zap.NewNop().Sugar())
}

// Init builds the logger. level is a zap level name (debug, info, warn,
// error); format is "console" or "json"; a non-empty outputPath also writes
// to outputPath/ragbench.log.
func Init(level, format, outputPath string) error {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.Encoding = "console"
	}
	zapConfig.Level = logLevel
	// stdout carries progress bars and summaries.
	zapConfig.OutputPaths = []string{"stderr"}
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0755); err != nil {
			return err
		}
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, filepath.Join(outputPath, "ragbench.log"))
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return err
	}
	Set(logger)
	return nil
}

// Set replaces the process logger.
func Set(logger *zap.Logger) {
	sugar.Store(logger.Sugar())
}

// L returns the current logger.
func L() *zap.SugaredLogger {
	return sugar.Load()
}

func Debugw(msg string, keysAndValues ...interface{}) {
	L().Debugw(msg, keysAndValues...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	L().Infow(msg, keysAndValues...)
}

func Infof(template string, args ...interface{}) {
	L().Infof(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	L().Warnw(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	L().Warnf(template, args...)
}

// Errorw logs at error level. Pass the error under the "error" key.
func Errorw(msg string, keysAndValues ...interface{}) {
	L().Errorw(msg, keysAndValues...)
}

// Sync flushes buffered entries. Call it before the process exits.
func Sync() {
	_ = L().Sync()
}
