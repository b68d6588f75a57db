// Package logging builds the command line logger.
package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level maps a verbosity, the number of -v flags minus the number of -q
// flags, to a level. Zero is warn.
func Level(verbosity int) zapcore.Level {
	lvl := zapcore.WarnLevel - zapcore.Level(verbosity)
	switch {
	case lvl < zapcore.DebugLevel:
		return zapcore.DebugLevel
	case lvl > zapcore.DPanicLevel:
		return zapcore.DPanicLevel
	default:
		return lvl
	}
}

// New returns a console logger writing to stderr.
func New(verbosity int) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(Level(verbosity))
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.DisableStacktrace = true
	config.Sampling = nil

	logger, err := config.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize logger")
	}

	return logger, nil
}
