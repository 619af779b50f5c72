// Package config resolves the fuzzer's run-time tunables from defaults,
// environment variables, and command-line flags, in that increasing order
// of precedence, layering viper under cobra. No config file is read.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/covefuzz/covefuzz/internal/ferrors"
)

// Config is the immutable, resolved set of tunables passed by value into
// the harness and fuzz loop. Nothing downstream re-reads flags or viper
// state after Resolve returns.
type Config struct {
	BinariesDir  string
	SeedsDir     string
	OutputDir    string

	ExecTimeout  time.Duration
	OuterDeadline time.Duration

	CoverageSize int
	QueueCap     int

	MutateBytesProbability float64
	ProgressInterval        time.Duration

	LogLevel string
}

// Defaults: /binaries, /example_inputs, /fuzzer_output, a 1s per-exec
// timeout, a 60s outer deadline, a 64KiB coverage bitmap, and a
// 1024-entry corpus queue.
func Defaults() Config {
	return Config{
		BinariesDir:             "/binaries",
		SeedsDir:                "/example_inputs",
		OutputDir:               "/fuzzer_output",
		ExecTimeout:             1 * time.Second,
		OuterDeadline:           60 * time.Second,
		CoverageSize:            65536,
		QueueCap:                1024,
		MutateBytesProbability:  0.2,
		ProgressInterval:        4 * time.Second,
		LogLevel:                "info",
	}
}

// BindFlags registers the flags Resolve reads on fs, with defaults
// pre-filled so a caller that never touches viper still gets working
// values straight off the flag set.
func BindFlags(fs *pflag.FlagSet, d Config) {
	fs.String("binaries-dir", d.BinariesDir, "directory of target binaries")
	fs.String("seeds-dir", d.SeedsDir, "directory of per-target seed files")
	fs.String("output-dir", d.OutputDir, "directory to append per-target crash reports into")
	fs.Duration("exec-timeout", d.ExecTimeout, "per-exec wall-clock timeout")
	fs.Duration("deadline", d.OuterDeadline, "outer wall-clock deadline per target")
	fs.Int("cov-size", d.CoverageSize, "coverage bitmap size in bytes")
	fs.Int("queue-cap", d.QueueCap, "maximum corpus queue length")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
}

// Resolve layers viper (defaults < COVEFUZZ_* env < flags) into a Config;
// it reads no config file. MutateBytesProbability and ProgressInterval
// always take their defaults. v must already have BindFlags' flag set bound via
// v.BindPFlags, which the caller does before calling Resolve.
func Resolve(v *viper.Viper) (Config, error) {
	d := Defaults()

	v.SetEnvPrefix("COVEFUZZ")
	v.AutomaticEnv()

	setDefault(v, "binaries-dir", d.BinariesDir)
	setDefault(v, "seeds-dir", d.SeedsDir)
	setDefault(v, "output-dir", d.OutputDir)
	setDefault(v, "exec-timeout", d.ExecTimeout)
	setDefault(v, "deadline", d.OuterDeadline)
	setDefault(v, "cov-size", d.CoverageSize)
	setDefault(v, "queue-cap", d.QueueCap)
	setDefault(v, "log-level", d.LogLevel)

	cfg := Config{
		BinariesDir:            v.GetString("binaries-dir"),
		SeedsDir:               v.GetString("seeds-dir"),
		OutputDir:              v.GetString("output-dir"),
		ExecTimeout:            v.GetDuration("exec-timeout"),
		OuterDeadline:          v.GetDuration("deadline"),
		CoverageSize:           v.GetInt("cov-size"),
		QueueCap:               v.GetInt("queue-cap"),
		MutateBytesProbability: d.MutateBytesProbability,
		ProgressInterval:       d.ProgressInterval,
		LogLevel:               v.GetString("log-level"),
	}

	if cfg.CoverageSize <= 0 {
		return Config{}, ferrors.New(ferrors.CategoryConfig, fmt.Sprintf("cov-size must be positive, got %d", cfg.CoverageSize))
	}
	if cfg.QueueCap <= 0 {
		return Config{}, ferrors.New(ferrors.CategoryConfig, fmt.Sprintf("queue-cap must be positive, got %d", cfg.QueueCap))
	}
	if cfg.ExecTimeout <= 0 {
		return Config{}, ferrors.New(ferrors.CategoryConfig, "exec-timeout must be positive")
	}

	return cfg, nil
}

func setDefault(v *viper.Viper, key string, value interface{}) {
	if !v.IsSet(key) {
		v.SetDefault(key, value)
	}
}
