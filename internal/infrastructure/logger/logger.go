package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Config selects level, encoding and destination of the process logger
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr or a file path
}

// ConfigForEnvironment returns console output for local work and JSON in
// production. level overrides the default "info" when non-empty.
func ConfigForEnvironment(env, level string) Config {
	cfg := Config{Level: "info", Format: "console", Output: "stdout"}
	if env == "production" {
		cfg.Format = "json"
	}
	if level != "" {
		cfg.Level = level
	}
	return cfg
}

// New builds the logger from zap's production preset, or the development
// preset for console output. Stack traces are attached from Error up.
func New(cfg Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.MessageKey = "msg"
	zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	zc.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	out := cfg.Output
	if out == "" {
		out = "stdout"
	}
	zc.OutputPaths = []string{out}
	zc.ErrorOutputPaths = []string{"stderr"}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", out, err)
	}
	return l, nil
}

// Must is New for process start-up, where a broken logger is fatal
func Must(cfg Config) *zap.Logger {
	l, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// parseLevel accepts zap level names in any case plus "warning". Unknown
// names mean info.
func parseLevel(s string) zapcore.Level {
	if strings.EqualFold(s, "warning") {
		return zapcore.WarnLevel
	}
	l, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}
