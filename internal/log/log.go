// Package log provides the structured logger used across the reconciler.
package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel LogLevel  = "debug"
	InfoLevel  LogLevel  = "info"
	TextFormat LogFormat = "console"
	JSONFormat LogFormat = "json"
)

// LogLevel can be DebugLevel or InfoLevel.
type LogLevel string

// LogFormat can be TextFormat or JSONFormat.
type LogFormat string

func (l LogLevel) String() string  { return string(l) }
func (l LogFormat) String() string { return string(l) }

// Logger defines the logging contract used throughout this project.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Debug(msg string, keysAndValues ...any)
	Error(err error, msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// Opts configures a Logger built by New.
type Opts func(*logConfig)

type logConfig struct {
	level  LogLevel
	format LogFormat
}

func WithLevel(level LogLevel) Opts {
	return func(c *logConfig) { c.level = level }
}

func WithFormat(format LogFormat) Opts {
	return func(c *logConfig) { c.format = format }
}

func buildConfig(opts ...Opts) *logConfig {
	cfg := &logConfig{level: InfoLevel, format: TextFormat}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// New builds a Logger backed by zap using the given options.
func New(opts ...Opts) (Logger, error) {
	cfg := buildConfig(opts...)
	level, err := zapcore.ParseLevel(cfg.level.String())
	if err != nil {
		return nil, fmt.Errorf("error parsing log level from configuration: %w", err)
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       false,
		DisableCaller:     true,
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	switch cfg.format {
	case JSONFormat:
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.Encoding = "json"
		zapConfig.EncoderConfig = encoderConfig
	case TextFormat:
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig = encoderConfig
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.format)
	}

	built, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("error building logger: %w", err)
	}
	return &zapLogger{sugar: built.Sugar()}, nil
}

func (l *zapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *zapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *zapLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

func (l *zapLogger) With(keysAndValues ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(keysAndValues...)}
}

// Fake is a no-op Logger implementation used in tests.
type Fake struct{}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Info(string, ...any)          {}
func (f *Fake) Debug(string, ...any)         {}
func (f *Fake) Error(error, string, ...any)  {}
func (f *Fake) With(...any) Logger           { return f }
