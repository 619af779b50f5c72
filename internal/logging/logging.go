// Package logging builds the zap loggers used across covefuzz.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger at the given level. level accepts the usual
// zap names ("debug", "info", "warn", "error"); anything else defaults to
// "info". Output uses a console encoder when stderr is a terminal-ish
// stream, and a JSON encoder otherwise so logs stay machine-parseable when
// piped or redirected.
func New(level string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if isTerminal(os.Stderr) {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl)
	return zap.New(core)
}

// Nop returns a logger that discards everything, used as the default for
// constructors that receive no logger so no component ever dereferences nil.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
