// Package logger provides opinionated logging capabilities for the camoufox launcher
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FormatJSON selects the JSON encoder. Anything else uses the console encoder.
const FormatJSON = "json"

// Options configures NewLogger.
type Options struct {
	// Debug lowers the level to debug.
	Debug bool

	// Format is "console" (default) or "json".
	Format string

	// Output defaults to stdout.
	Output io.Writer
}

func NewLogger(opts Options) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if opts.Format == FormatJSON {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)

	return zap.New(core, zap.AddCaller())
}
