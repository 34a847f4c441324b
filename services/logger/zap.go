package logsvc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/horarios/core"
)

// ZapLogger writes structured logs. Errors become the "error" field, maps are
// flattened into fields and any other arg is logged under "argN".
type ZapLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZapLogger builds a JSON logger, or a human friendly one in debug mode.
func NewZapLogger(conf *core.Config) (*ZapLogger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(conf.LogLevel))); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", conf.LogLevel)
	}

	zconf := zap.NewProductionConfig()
	if conf.Debug {
		zconf = zap.NewDevelopmentConfig()
	}
	zconf.Level = level
	zconf.EncoderConfig.TimeKey = "time"
	zconf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zconf.InitialFields = map[string]interface{}{"app": conf.AppName, "env": conf.Env}

	zl, err := zconf.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	return &ZapLogger{zl: zl}, nil
}

// WrapZap turns an existing zap logger (e.g. zap.NewNop() in tests) into a core.Logger.
func WrapZap(zl *zap.Logger) *ZapLogger {
	return &ZapLogger{zl: zl}
}

func NewNopLogger() *ZapLogger {
	return WrapZap(zap.NewNop())
}

func (l *ZapLogger) Sync() error {
	return l.zl.Sync()
}

func (l *ZapLogger) fields(args []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case error:
			fields = append(fields, zap.Error(v))
		case map[string]interface{}:
			for k, val := range v {
				fields = append(fields, zap.Any(k, val))
			}
		default:
			fields = append(fields, zap.Any(fmt.Sprintf("arg%d", i), v))
		}
	}
	return fields
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.zl.Debug(msg, l.fields(args)...) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.zl.Info(msg, l.fields(args)...) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.zl.Warn(msg, l.fields(args)...) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.zl.Error(msg, l.fields(args)...) }
func (l *ZapLogger) Fatal(msg string, args ...interface{}) { l.zl.Fatal(msg, l.fields(args)...) }
