// Package logging provides the leveled, structured logger used across
// this module's ambient stack: the DHT node server, the CLI, and any
// background maintenance goroutines log through here rather than the
// standard library's log package.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger with the leveled, key-value-argument
// API the rest of this module logs through.
type Logger struct {
	z *zap.SugaredLogger
}

// Config selects a Logger's running environment ("development" or
// "production"), an optional file to duplicate output to, and whether
// stacktraces should be attached to error-level logs.
type Config struct {
	Environment      string `toml:"env"`
	Path             string `toml:"path,omitempty"`
	EnableStacktrace bool   `toml:"enable_stacktrace,omitempty"`
}

// New builds a Logger from conf. A nil conf selects development defaults.
func New(conf *Config) *Logger {
	if conf == nil {
		conf = &Config{Environment: "development"}
	}

	level := zap.NewAtomicLevel()
	switch {
	case strings.EqualFold("development", conf.Environment):
		level.SetLevel(zap.DebugLevel)
	case strings.EqualFold("production", conf.Environment):
		level.SetLevel(zap.InfoLevel)
	default:
		panic("logging: Environment must be either development or production")
	}

	outputPaths := []string{"stderr"}
	if conf.Path != "" {
		outputPaths = append(outputPaths, conf.Path)
	}

	zconf := &zap.Config{
		Level:             level,
		Development:       false,
		Encoding:          "console",
		DisableStacktrace: !conf.EnableStacktrace,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "path",
			MessageKey:     "msg",
			StacktraceKey:  "stack",
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		OutputPaths: outputPaths,
	}

	z, err := zconf.Build()
	if err != nil {
		panic(err)
	}
	return &Logger{z: z.Sugar()}
}

// Debug logs at debug level with optional key-value context.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(l.z.Debugw, msg, kv) }

// Info logs at info level with optional key-value context.
func (l *Logger) Info(msg string, kv ...interface{}) { l.log(l.z.Infow, msg, kv) }

// Warn logs at warn level with optional key-value context.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.log(l.z.Warnw, msg, kv) }

// Error logs at error level with optional key-value context.
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(l.z.Errorw, msg, kv) }

// Fatal logs at fatal level with optional key-value context, then calls
// os.Exit(1) by way of the underlying zap logger.
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.log(l.z.Fatalw, msg, kv) }

func (l *Logger) log(f func(string, ...interface{}), msg string, kv []interface{}) {
	if len(kv) == 0 {
		f(msg)
		return
	}
	f(msg, kv...)
}
